package job

import "log/slog"

type config struct {
	registry   *registry
	queues     map[string]int
	log        *slog.Logger
	schedules  []ScheduledTask
	maxWorkers int
}

// Option configures the Manager.
type Option func(*config)

// WithTask registers a payload task under its Name.
func WithTask[P any](task Task[P]) Option {
	return func(c *config) {
		c.registry.register(task.Name(), typedExecutor[P]{task: task})
	}
}

// WithScheduledTask registers a periodic task. The schedule is validated by NewManager.
func WithScheduledTask(task ScheduledTask) Option {
	return func(c *config) {
		c.schedules = append(c.schedules, task)
	}
}

// WithQueue adds a named queue with its own worker limit.
func WithQueue(name string, workers int) Option {
	return func(c *config) {
		if workers > 0 {
			c.queues[name] = workers
		}
	}
}

// WithMaxWorkers sets the default queue's worker limit. Default: 50.
func WithMaxWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}

// WithLogger sets the logger used by the manager and River.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}
