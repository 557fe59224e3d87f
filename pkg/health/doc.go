// Package health serves liveness and readiness checks.
//
// Readiness runs every named check concurrently under one deadline and
// reports per-check status as JSON:
//
//	r.Get("/livez", health.Liveness())
//	r.Get("/readyz", health.Readiness(health.Checks{
//		"postgres": db.Healthcheck(pool),
//		"jobs":     jobs.Healthcheck(),
//	}, health.WithTimeout(3*time.Second), health.WithLogger(log)))
//
// A failing check turns the response into 503 with the check's error text.
package health
