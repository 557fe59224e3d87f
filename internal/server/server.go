package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/notemail/pkg/logger"
)

const (
	defaultAddress           = ":8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 90 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20
	defaultShutdownTimeout   = 30 * time.Second
)

// Hook runs during startup or shutdown.
type Hook func(context.Context) error

type config struct {
	log             *slog.Logger
	ready           chan<- net.Addr
	address         string
	startupHooks    []Hook
	shutdownHooks   []Hook
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
}

// Option configures Run.
type Option func(*config)

// WithAddress sets the listen address. Default: ":8080".
func WithAddress(addr string) Option {
	return func(c *config) {
		if addr != "" {
			c.address = addr
		}
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithWriteTimeout bounds writing a response. It must exceed the longest
// synchronous dispatch. Default: 90s.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithShutdownTimeout bounds draining plus shutdown hooks. Default: 30s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// WithStartupHook registers fn to run before serving.
func WithStartupHook(fn Hook) Option {
	return func(c *config) {
		if fn != nil {
			c.startupHooks = append(c.startupHooks, fn)
		}
	}
}

// WithShutdownHook registers fn to run after the server stops.
func WithShutdownHook(fn Hook) Option {
	return func(c *config) {
		if fn != nil {
			c.shutdownHooks = append(c.shutdownHooks, fn)
		}
	}
}

// WithReady receives the bound address once the server accepts requests.
func WithReady(ch chan<- net.Addr) Option {
	return func(c *config) { c.ready = ch }
}

// Run serves h until ctx is canceled or the process is signaled.
func Run(ctx context.Context, h http.Handler, opts ...Option) error {
	cfg := &config{
		log:             logger.NewNope(),
		address:         defaultAddress,
		writeTimeout:    defaultWriteTimeout,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, hook := range cfg.startupHooks {
		if err := hook(ctx); err != nil {
			return errors.Join(fmt.Errorf("server: startup hook: %w", err), shutdown(cfg, nil))
		}
	}

	ln, err := net.Listen("tcp", cfg.address)
	if err != nil {
		return errors.Join(fmt.Errorf("server: listen %s: %w", cfg.address, err), shutdown(cfg, nil))
	}

	srv := &http.Server{
		Handler:           h,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      cfg.writeTimeout,
		IdleTimeout:       defaultIdleTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		cfg.log.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	if cfg.ready != nil {
		cfg.ready <- ln.Addr()
	}

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	cfg.log.Info("shutting down server")
	return errors.Join(serveErr, shutdown(cfg, srv))
}

func shutdown(cfg *config, srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer cancel()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server: shutdown: %w", err))
		}
	}
	for _, hook := range cfg.shutdownHooks {
		if err := hook(ctx); err != nil {
			cfg.log.Error("shutdown hook failed", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		cfg.log.Error("shutdown completed with errors")
		return errors.Join(errs...)
	}
	cfg.log.Info("shutdown completed")
	return nil
}
