package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/notemail/internal/dispatch"
	"github.com/dmitrymomot/notemail/internal/store"
	"github.com/dmitrymomot/notemail/pkg/health"
	"github.com/dmitrymomot/notemail/pkg/job"
	"github.com/dmitrymomot/notemail/pkg/logger"
)

// HandlerFunc is a route handler that reports failures as errors.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// API serves the HTTP surface.
type API struct {
	pipeline  *dispatch.Pipeline
	templates *dispatch.Templates
	jobs      job.Enqueuer
	checks    health.Checks
	log       *slog.Logger
	timeout   time.Duration
}

// Option configures API.
type Option func(*API)

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.log = l }
}

// WithEnqueuer enables async=true on send and retry routes.
func WithEnqueuer(e job.Enqueuer) Option {
	return func(a *API) { a.jobs = e }
}

// WithHealthChecks sets the checks served on /readyz.
func WithHealthChecks(c health.Checks) Option {
	return func(a *API) { a.checks = c }
}

// WithRequestTimeout bounds every request. Default: 60s.
func WithRequestTimeout(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// New builds the router.
func New(p *dispatch.Pipeline, t *dispatch.Templates, opts ...Option) http.Handler {
	a := &API{
		pipeline:  p,
		templates: t,
		log:       logger.NewNope(),
		timeout:   60 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}

	r := chi.NewRouter()
	r.Use(RequestID, a.Timeout(a.timeout), a.Recover)
	r.NotFound(a.wrap(func(http.ResponseWriter, *http.Request) error {
		return NewHTTPError(http.StatusNotFound, "route_not_found", "route not found")
	}))
	r.MethodNotAllowed(a.wrap(func(http.ResponseWriter, *http.Request) error {
		return NewHTTPError(http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}))

	r.Get("/livez", health.Liveness())
	r.Get("/readyz", health.Readiness(a.checks, health.WithLogger(a.log)))

	r.Group(func(r chi.Router) {
		r.Use(a.Owner)

		r.Route("/sends", func(r chi.Router) {
			r.Post("/", a.wrap(a.createSend))
			r.Get("/", a.wrap(a.listSends))
			r.Get("/{id}", a.wrap(a.getSend))
			r.Post("/{id}/retry", a.wrap(a.retrySend))
			r.Get("/{id}/archive", a.wrap(a.getArchive))
		})

		r.Route("/templates", func(r chi.Router) {
			r.Post("/", a.wrap(a.createTemplate))
			r.Post("/validate", a.wrap(a.validateTemplate))
			r.Post("/variables", a.wrap(a.extractVariables))
			r.Get("/{id}", a.wrap(a.getTemplate))
			r.Put("/{id}", a.wrap(a.updateTemplate))
			r.Delete("/{id}", a.wrap(a.deactivateTemplate))
			r.Get("/{id}/versions", a.wrap(a.listVersions))
			r.Get("/{id}/versions/{version}", a.wrap(a.getVersion))
			r.Get("/{id}/preview", a.wrap(a.previewTemplate))
		})
	})

	return r
}

func (a *API) wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := wrapWriter(w)
		if err := h(rw, r); err != nil {
			a.handleError(rw, r, err)
		}
	}
}

func (a *API) handleError(w http.ResponseWriter, r *http.Request, err error) {
	rw := wrapWriter(w)
	if rw.Written() {
		a.log.WarnContext(r.Context(), "error after response started", slog.String("error", err.Error()))
		return
	}

	he := toHTTPError(err)
	cause := err
	if he.Err != nil {
		cause = he.Err
	}
	switch he.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		a.log.WarnContext(r.Context(), "request failed upstream",
			slog.Int("status", he.Status),
			slog.String("error", cause.Error()),
		)
	default:
		if he.Status >= http.StatusInternalServerError {
			a.log.ErrorContext(r.Context(), "request failed", slog.String("error", cause.Error()))
		} else {
			a.log.DebugContext(r.Context(), "request rejected",
				slog.Int("status", he.Status),
				slog.String("error", cause.Error()),
			)
		}
	}
	a.writeError(rw, r, he)
}

type errorBody struct {
	Send  *store.SendRecord `json:"send,omitempty"`
	Error *HTTPError        `json:"error"`
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, he *HTTPError) {
	he.RequestID = GetRequestID(r.Context())
	if err := writeJSON(w, he.Status, errorBody{Error: he, Send: he.Send}); err != nil {
		a.log.DebugContext(r.Context(), "failed to write error response", slog.String("error", err.Error()))
	}
}
