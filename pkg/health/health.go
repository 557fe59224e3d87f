package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notemail/pkg/logger"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc reports a dependency's readiness.
type CheckFunc func(ctx context.Context) error

// Checks maps names to check functions. Nil entries are skipped.
type Checks map[string]CheckFunc

// Report is the readiness response body.
type Report struct {
	Checks map[string]Result `json:"checks,omitempty"`
	Status string            `json:"status"`
}

// Result is the outcome of one check.
type Result struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

type config struct {
	log     *slog.Logger
	timeout time.Duration
}

// Option configures Readiness.
type Option func(*config)

// WithTimeout bounds the whole readiness run. Default: 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger logs failed checks at warn level.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// Liveness always answers 200.
func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Report{Status: StatusHealthy})
	}
}

// Readiness answers 200 when every check passes and 503 otherwise.
func Readiness(checks Checks, opts ...Option) http.HandlerFunc {
	cfg := &config{log: logger.NewNope(), timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		report := Run(r.Context(), checks, cfg.timeout, cfg.log)
		status := http.StatusOK
		if report.Status != StatusHealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

// Run executes checks concurrently and aggregates their results.
func Run(ctx context.Context, checks Checks, timeout time.Duration, log *slog.Logger) Report {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]Result, len(checks))
		status  = StatusHealthy
	)

	// Checks never return errors to the group so one failure does not cancel the rest.
	var g errgroup.Group
	for name, check := range checks {
		if check == nil {
			continue
		}
		g.Go(func() error {
			start := time.Now()
			err := check(ctx)
			if err == nil && ctx.Err() != nil {
				err = errors.Join(ErrCheckTimeout, ctx.Err())
			}

			res := Result{Status: StatusHealthy, Duration: time.Since(start).Round(time.Millisecond).String()}
			if err != nil {
				res.Status = StatusUnhealthy
				res.Error = err.Error()
				log.WarnContext(ctx, "health check failed",
					slog.String("check", name),
					slog.String("error", err.Error()),
				)
			}

			mu.Lock()
			results[name] = res
			if err != nil {
				status = StatusUnhealthy
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Report{Checks: results, Status: status}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
