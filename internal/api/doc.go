// Package api exposes the dispatch pipeline and template management over
// HTTP.
//
// Routes are mounted on a chi router. Handlers return errors instead of
// writing failure responses themselves; a single error handler maps
// domain errors to status codes and a JSON body:
//
//	{"error": {"code": "not_found", "message": "...", "request_id": "..."}}
//
// Owner identity is taken from the X-Owner-ID header, which an upstream
// authentication layer is expected to set. Requests without it get 401.
//
// Usage:
//
//	h := api.New(pipeline, templates,
//	    api.WithEnqueuer(jobs),
//	    api.WithLogger(log),
//	    api.WithHealthChecks(health.Checks{"db": db.Healthcheck(pool)}),
//	)
//	srv := &http.Server{Addr: ":8080", Handler: h}
package api
