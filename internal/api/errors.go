package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/notemail/internal/dispatch"
	"github.com/dmitrymomot/notemail/internal/store"
	"github.com/dmitrymomot/notemail/pkg/mailer"
	"github.com/dmitrymomot/notemail/pkg/storage"
	"github.com/dmitrymomot/notemail/pkg/templating"
)

var (
	// ErrMissingOwner is returned when a request carries no owner header.
	ErrMissingOwner = errors.New("api: missing owner")

	// ErrBadRequest wraps malformed request bodies and parameters.
	ErrBadRequest = errors.New("api: bad request")

	// ErrAsyncUnavailable is returned for async requests when no job
	// queue is configured.
	ErrAsyncUnavailable = errors.New("api: background dispatch is not configured")
)

// HTTPError is the JSON error body. Err is logged, never serialized.
type HTTPError struct {
	Err       error             `json:"-"`
	Send      *store.SendRecord `json:"-"`
	Fields    map[string]string `json:"fields,omitempty"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Status    int               `json:"-"`
}

func (e *HTTPError) Error() string { return e.Message }

func (e *HTTPError) Unwrap() error { return e.Err }

// NewHTTPError creates an error with an explicit status and code.
func NewHTTPError(status int, code, message string) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message}
}

// toHTTPError classifies err. Unknown errors become a 500 with a generic
// message so internal details never reach the client.
func toHTTPError(err error) *HTTPError {
	var he *HTTPError
	if errors.As(err, &he) {
		return he
	}

	e := &HTTPError{Err: err, Message: err.Error()}
	var syn *templating.SyntaxError
	switch {
	case errors.As(err, &syn):
		e.Status, e.Code = http.StatusUnprocessableEntity, "template_syntax"
		e.Fields = map[string]string{syn.Field: syn.Err.Error()}
	case errors.Is(err, ErrMissingOwner):
		e.Status, e.Code = http.StatusUnauthorized, "missing_owner"
	case errors.Is(err, ErrBadRequest):
		e.Status, e.Code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, store.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		e.Status, e.Code = http.StatusNotFound, "not_found"
	case errors.Is(err, dispatch.ErrNotRetryable):
		e.Status, e.Code = http.StatusConflict, "not_retryable"
	case errors.Is(err, dispatch.ErrKeyInUse):
		e.Status, e.Code = http.StatusConflict, "idempotency_key_in_use"
	case errors.Is(err, dispatch.ErrInvalidRequest):
		e.Status, e.Code = http.StatusUnprocessableEntity, "invalid_request"
	case errors.Is(err, templating.ErrRenderFailed), errors.Is(err, templating.ErrInvalidFrontmatter):
		e.Status, e.Code = http.StatusUnprocessableEntity, "render_failed"
	case errors.Is(err, dispatch.ErrNoAuthorizedProvider):
		e.Status, e.Code = http.StatusServiceUnavailable, "no_authorized_provider"
	case errors.Is(err, mailer.ErrSendFailed):
		e.Status, e.Code = http.StatusBadGateway, "send_failed"
	case errors.Is(err, ErrAsyncUnavailable):
		e.Status, e.Code = http.StatusNotImplemented, "async_unavailable"
	case errors.Is(err, dispatch.ErrArchiveDisabled):
		e.Status, e.Code = http.StatusNotImplemented, "archive_disabled"
	default:
		e.Status, e.Code = http.StatusInternalServerError, "internal"
		e.Message = http.StatusText(http.StatusInternalServerError)
	}
	return e
}
