package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/dmitrymomot/notemail/internal/dispatch"
	"github.com/dmitrymomot/notemail/pkg/id"
	"github.com/dmitrymomot/notemail/pkg/logger"
)

// Request headers.
const (
	HeaderRequestID      = "X-Request-ID"
	HeaderOwnerID        = "X-Owner-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

type (
	requestIDKey struct{}
	ownerIDKey   struct{}
)

// requestIDHeaders are checked in order for an upstream request id.
var requestIDHeaders = []string{"X-Request-ID", "X-Correlation-ID"}

// RequestID reuses an upstream request id or generates one, stores it in
// the request context and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqID string
		for _, h := range requestIDHeaders {
			if v := r.Header.Get(h); v != "" {
				reqID = v
				break
			}
		}
		if reqID == "" {
			reqID = id.NewULID()
		}

		w.Header().Set(HeaderRequestID, reqID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id stored by RequestID.
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// RequestIDExtractor adds request_id to log records.
func RequestIDExtractor() logger.ContextExtractor {
	return logger.StringExtractor(requestIDKey{}, "request_id")
}

// Owner requires the owner header and stores the owner id in the request
// context, where the dispatch log extractor picks it up.
func (a *API) Owner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.Header.Get(HeaderOwnerID)
		if ownerID == "" {
			a.handleError(w, r, ErrMissingOwner)
			return
		}
		ctx := context.WithValue(dispatch.WithOwnerID(r.Context(), ownerID), ownerIDKey{}, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ownerFrom(ctx context.Context) string {
	v, _ := ctx.Value(ownerIDKey{}).(string)
	return v
}

const stackSize = 4096

// Recover turns a handler panic into a logged 500.
func (a *API) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			stack := make([]byte, stackSize)
			stack = stack[:runtime.Stack(stack, false)]
			a.log.ErrorContext(r.Context(), "panic recovered",
				slog.Any("panic", rec),
				slog.String("stack", string(stack)),
			)
			a.handleError(w, r, fmt.Errorf("panic: %v", rec))
		}()
		next.ServeHTTP(w, r)
	})
}

// Timeout bounds the request context. A handler that returns after the
// deadline without writing gets a 504.
func (a *API) Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			rw := wrapWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !rw.Written() {
				a.log.WarnContext(ctx, "request timeout", slog.Duration("timeout", d))
				a.writeError(rw, r, NewHTTPError(http.StatusGatewayTimeout, "timeout",
					fmt.Sprintf("request timeout after %s", d)))
			}
		})
	}
}
