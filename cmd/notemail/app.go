package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/notemail/internal/config"
	"github.com/dmitrymomot/notemail/internal/dispatch"
	"github.com/dmitrymomot/notemail/internal/store/postgres"
	"github.com/dmitrymomot/notemail/internal/store/postgres/migrations"
	"github.com/dmitrymomot/notemail/pkg/cache"
	"github.com/dmitrymomot/notemail/pkg/db"
	"github.com/dmitrymomot/notemail/pkg/health"
	"github.com/dmitrymomot/notemail/pkg/job"
	"github.com/dmitrymomot/notemail/pkg/mailer"
	"github.com/dmitrymomot/notemail/pkg/mailer/gmail"
	"github.com/dmitrymomot/notemail/pkg/mailer/resend"
	"github.com/dmitrymomot/notemail/pkg/oauth"
	"github.com/dmitrymomot/notemail/pkg/redis"
	"github.com/dmitrymomot/notemail/pkg/storage"
	"github.com/dmitrymomot/notemail/pkg/templating"
)

// app holds the wired dependencies shared by commands.
type app struct {
	pool      *pgxpool.Pool
	redis     goredis.UniversalClient
	store     *postgres.Store
	renderer  *templating.Renderer
	previews  cache.Cache[templating.Result]
	pipeline  *dispatch.Pipeline
	templates *dispatch.Templates
	checks    health.Checks
}

func connect(ctx context.Context, cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, cfg.DB, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool, migrations.FS, ".", cfg.DB.MigrationsTable, log); err != nil {
		pool.Close()
		return nil, err
	}
	if cfg.Jobs.Enabled {
		if err := job.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return pool, nil
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	pool, err := connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		pool:     pool,
		store:    postgres.New(pool),
		renderer: templating.NewRenderer(templating.WithLogger(log)),
		checks:   health.Checks{"postgres": db.Healthcheck(pool)},
	}

	if cfg.Redis.Enabled() {
		a.redis, err = redis.Open(ctx, cfg.Redis.URL, append(cfg.Redis.Options(), redis.WithLogger(log))...)
		if err != nil {
			a.close()
			return nil, err
		}
		a.previews = cache.NewRedis[templating.Result](a.redis, nil, "notemail", cfg.Dispatch.PreviewTTL)
		a.checks["redis"] = redis.Healthcheck(a.redis)
	} else {
		a.previews = cache.NewMemory[templating.Result](cache.WithMaxEntries(1000))
	}

	opts := []dispatch.Option{
		dispatch.WithLogger(log),
		dispatch.WithConfig(cfg.Dispatch),
		dispatch.WithPreviewCache(a.previews),
	}
	if cfg.Storage.Enabled() {
		archive, err := storage.New(cfg.Storage)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("archive: %w", err)
		}
		opts = append(opts, dispatch.WithArchive(archive))
	}

	providers := []mailer.Provider{
		gmail.New(cfg.Gmail, oauth.NewGoogle(cfg.Google)),
		resend.New(cfg.Resend),
	}
	a.pipeline = dispatch.New(a.store, a.renderer, providers, opts...)
	a.templates = dispatch.NewTemplates(a.store, log)
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	if a.previews != nil {
		_ = a.previews.Close()
	}
	if a.renderer != nil {
		_ = a.renderer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.pool.Close()
}
