package job

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"sync"
)

// executor runs a task from its raw payload.
type executor interface {
	Execute(ctx context.Context, payload json.RawMessage) error
}

type registry struct {
	executors map[string]executor
	mu        sync.RWMutex
}

func newRegistry() *registry {
	return &registry{executors: make(map[string]executor)}
}

func (r *registry) register(name string, e executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[name] = e
}

func (r *registry) get(name string) (executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[name]
	return e, ok
}

func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := slices.Collect(maps.Keys(r.executors))
	slices.Sort(names)
	return names
}

// Task is a handler for enqueued jobs carrying a payload of type P.
type Task[P any] interface {
	Name() string
	Handle(context.Context, P) error
}

// ScheduledTask is a handler invoked on a cron schedule.
type ScheduledTask interface {
	Name() string
	Schedule() string
	Handle(context.Context) error
}

type typedExecutor[P any] struct {
	task Task[P]
}

func (e typedExecutor[P]) Execute(ctx context.Context, raw json.RawMessage) error {
	var payload P
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return errors.Join(ErrInvalidPayload, err)
		}
	}
	return e.task.Handle(ctx, payload)
}

type scheduledExecutor struct {
	handle func(context.Context) error
}

func (e scheduledExecutor) Execute(ctx context.Context, _ json.RawMessage) error {
	return e.handle(ctx)
}
