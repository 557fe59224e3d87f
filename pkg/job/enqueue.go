package job

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/riverqueue/river"
)

// taskArgs is the River payload shared by every task.
type taskArgs struct {
	TaskName  string          `json:"task_name" river:"unique"`
	UniqueKey string          `json:"unique_key,omitempty" river:"unique"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (taskArgs) Kind() string { return "notemail:task" }

type enqueueConfig struct {
	scheduledAt time.Time
	queue       string
	uniqueKey   string
	uniqueFor   time.Duration
	maxAttempts int
	priority    int
}

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueConfig)

// InQueue routes the job to a named queue.
func InQueue(name string) EnqueueOption {
	return func(c *enqueueConfig) { c.queue = name }
}

// ScheduledIn delays the job.
func ScheduledIn(d time.Duration) EnqueueOption {
	return func(c *enqueueConfig) { c.scheduledAt = time.Now().Add(d) }
}

// MaxAttempts caps River retries. Default is River's.
func MaxAttempts(n int) EnqueueOption {
	return func(c *enqueueConfig) { c.maxAttempts = n }
}

// Priority sets the River priority, 1 (highest) to 4.
func Priority(p int) EnqueueOption {
	return func(c *enqueueConfig) { c.priority = p }
}

// UniqueKey makes the insert a no-op while a job with the same task name and
// key is still pending or running.
func UniqueKey(key string) EnqueueOption {
	return func(c *enqueueConfig) { c.uniqueKey = key }
}

// UniqueFor additionally bounds uniqueness to a time window.
func UniqueFor(d time.Duration) EnqueueOption {
	return func(c *enqueueConfig) { c.uniqueFor = d }
}

func buildArgs(name string, payload any, opts ...EnqueueOption) (taskArgs, *river.InsertOpts, error) {
	args := taskArgs{TaskName: name}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return args, nil, fmt.Errorf("job: marshal payload: %w", err)
		}
		args.Payload = raw
	}

	var cfg enqueueConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	insert := &river.InsertOpts{
		Queue:       cfg.queue,
		ScheduledAt: cfg.scheduledAt,
		MaxAttempts: cfg.maxAttempts,
		Priority:    cfg.priority,
	}
	if cfg.uniqueKey != "" {
		args.UniqueKey = cfg.uniqueKey
		insert.UniqueOpts = river.UniqueOpts{ByArgs: true, ByPeriod: cfg.uniqueFor}
	}
	return args, insert, nil
}
