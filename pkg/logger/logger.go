package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// New builds the process logger. The returned flush function drains
// buffered Sentry events and should run before exit.
func New(cfg Config, extractors ...ContextExtractor) (*slog.Logger, func()) {
	return newLogger(os.Stdout, cfg, extractors...)
}

func newLogger(w io.Writer, cfg Config, extractors ...ContextExtractor) (*slog.Logger, func()) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var out slog.Handler
	if cfg.Format == "text" {
		out = slog.NewTextHandler(w, opts)
	} else {
		out = slog.NewJSONHandler(w, opts)
	}

	noop := func() {}
	if cfg.Sentry.DSN == "" {
		return slog.New(NewContextHandler(out, extractors...)), noop
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		EnableLogs:  true,
	}); err != nil {
		slog.New(out).Error("failed to initialize sentry, logging to stdout only", slog.String("error", err.Error()))
		return slog.New(NewContextHandler(out, extractors...)), noop
	}

	logLevels := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.Sentry.ErrorsOnly {
		logLevels = []slog.Level{slog.LevelError}
	}
	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevels,
	}.NewSentryHandler(context.Background())

	flush := func() { sentry.Flush(2 * time.Second) }
	return slog.New(NewContextHandler(fanout{out, sentryHandler}, extractors...)), flush
}

// NewNope returns a logger that discards everything. It is the default for
// components constructed without WithLogger.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
