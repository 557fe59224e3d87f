// Package logger builds slog loggers with context-derived attributes and
// optional Sentry fan-out.
//
// Attributes that live in a request or job context (request id, owner id,
// send record id) are attached by ContextExtractors on every log call, so
// code only passes ctx:
//
//	log, flush := logger.New(cfg,
//		logger.StringExtractor(requestIDKey{}, "request_id"),
//	)
//	defer flush()
//
//	log.InfoContext(ctx, "send finalized", slog.String("status", "sent"))
//
// When Sentry.DSN is set, warnings and errors are forwarded to Sentry as
// well; errors become issues. Without a DSN the logger writes to stdout
// only, so the same wiring works in development.
package logger
