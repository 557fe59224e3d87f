package main

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/notemail/internal/api"
	"github.com/dmitrymomot/notemail/internal/config"
	"github.com/dmitrymomot/notemail/internal/dispatch"
	"github.com/dmitrymomot/notemail/internal/server"
	"github.com/dmitrymomot/notemail/pkg/job"
)

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	apiOpts := []api.Option{
		api.WithLogger(log),
		api.WithRequestTimeout(cfg.Server.RequestTimeout),
	}
	opts := []server.Option{
		server.WithAddress(cfg.Server.Addr),
		server.WithLogger(log),
		server.WithWriteTimeout(cfg.Server.WriteTimeout),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}

	if cfg.Jobs.Enabled {
		jobs, err := job.NewManager(a.pool,
			job.WithLogger(log),
			job.WithMaxWorkers(cfg.Jobs.MaxWorkers),
			job.WithQueue(dispatch.Queue, cfg.Jobs.DispatchWorkers),
			job.WithTask[dispatch.Request](dispatch.NewSendTask(a.pipeline)),
			job.WithTask[dispatch.RetryPayload](dispatch.NewRetryTask(a.pipeline)),
			job.WithScheduledTask(dispatch.NewSweepTask(a.pipeline)),
		)
		if err != nil {
			a.close()
			return err
		}
		a.checks["jobs"] = jobs.Healthcheck()
		apiOpts = append(apiOpts, api.WithEnqueuer(jobs))
		opts = append(opts,
			server.WithStartupHook(jobs.Start),
			server.WithShutdownHook(jobs.Stop),
		)
	}

	apiOpts = append(apiOpts, api.WithHealthChecks(a.checks))
	opts = append(opts, server.WithShutdownHook(func(context.Context) error {
		// Sends that outlived their request finish before the pool closes.
		a.pipeline.Wait()
		a.close()
		return nil
	}))

	return server.Run(ctx, api.New(a.pipeline, a.templates, apiOpts...), opts...)
}
