package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/notemail/pkg/logger"
)

// Enqueuer submits jobs by task name.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, opts ...EnqueueOption) error
}

// Manager owns the River client and the task registry.
type Manager struct {
	pool     *pgxpool.Pool
	client   *river.Client[pgx.Tx]
	registry *registry
	log      *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewManager builds the River client. Jobs may be enqueued before Start.
func NewManager(pool *pgxpool.Pool, opts ...Option) (*Manager, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}

	cfg := &config{
		registry:   newRegistry(),
		queues:     make(map[string]int),
		log:        logger.NewNope(),
		maxWorkers: 50,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	queues := map[string]river.QueueConfig{
		river.QueueDefault: {MaxWorkers: cfg.maxWorkers},
	}
	for name, n := range cfg.queues {
		queues[name] = river.QueueConfig{MaxWorkers: n}
	}

	periodic := make([]*river.PeriodicJob, 0, len(cfg.schedules))
	for _, task := range cfg.schedules {
		schedule, err := ParseSchedule(task.Schedule())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", task.Name(), err)
		}
		name := task.Name()
		periodic = append(periodic, river.NewPeriodicJob(
			schedule,
			func() (river.JobArgs, *river.InsertOpts) {
				return taskArgs{TaskName: name}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		))
		cfg.registry.register(name, scheduledExecutor{handle: task.Handle})
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &taskWorker{registry: cfg.registry, log: cfg.log})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:       queues,
		Workers:      workers,
		PeriodicJobs: periodic,
		Logger:       cfg.log,
	})
	if err != nil {
		return nil, fmt.Errorf("job: create client: %w", err)
	}

	return &Manager{
		pool:     pool,
		client:   client,
		registry: cfg.registry,
		log:      cfg.log,
	}, nil
}

// Enqueue inserts a job for a registered task.
func (m *Manager) Enqueue(ctx context.Context, name string, payload any, opts ...EnqueueOption) error {
	if _, ok := m.registry.get(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	args, insert, err := buildArgs(name, payload, opts...)
	if err != nil {
		return err
	}
	if _, err := m.client.Insert(ctx, args, insert); err != nil {
		return fmt.Errorf("job: enqueue %s: %w", name, err)
	}
	return nil
}

// Start begins working jobs.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	if err := m.client.Start(ctx); err != nil {
		return fmt.Errorf("job: start client: %w", err)
	}
	m.started = true
	m.log.InfoContext(ctx, "job manager started", slog.Any("tasks", m.registry.names()))
	return nil
}

// Stop waits for running jobs to finish or ctx to expire.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return ErrNotStarted
	}
	if err := m.client.Stop(ctx); err != nil {
		return fmt.Errorf("job: stop client: %w", err)
	}
	m.started = false
	m.log.InfoContext(ctx, "job manager stopped")
	return nil
}

// Healthcheck reports whether the manager runs and its pool answers.
func (m *Manager) Healthcheck() func(context.Context) error {
	return func(ctx context.Context) error {
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()

		if !started {
			return errors.Join(ErrHealthcheckFailed, ErrNotStarted)
		}
		if err := m.pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

type taskWorker struct {
	river.WorkerDefaults[taskArgs]
	registry *registry
	log      *slog.Logger
}

func (w *taskWorker) Work(ctx context.Context, j *river.Job[taskArgs]) error {
	return runTask(ctx, w.registry, w.log, j.Args, j.ID, j.Attempt)
}

func runTask(ctx context.Context, reg *registry, log *slog.Logger, args taskArgs, jobID int64, attempt int) error {
	exec, ok := reg.get(args.TaskName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, args.TaskName)
	}

	attrs := []any{
		slog.String("task", args.TaskName),
		slog.Int64("job_id", jobID),
		slog.Int("attempt", attempt),
	}
	if err := exec.Execute(ctx, args.Payload); err != nil {
		log.ErrorContext(ctx, "task failed", append(attrs, slog.String("error", err.Error()))...)
		if errors.Is(err, ErrInvalidPayload) {
			// Redelivery cannot fix a payload that does not decode.
			return river.JobCancel(err)
		}
		return err
	}
	log.DebugContext(ctx, "task completed", attrs...)
	return nil
}

type cronSchedule struct {
	schedule cron.Schedule
}

func (s cronSchedule) Next(t time.Time) time.Time { return s.schedule.Next(t) }

// ParseSchedule parses a five-field cron expression or a descriptor such as @hourly.
func ParseSchedule(expr string) (river.PeriodicSchedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, expr, err)
	}
	return cronSchedule{schedule: s}, nil
}
