package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notemail/internal/store"
	"github.com/dmitrymomot/notemail/pkg/job"
	"github.com/dmitrymomot/notemail/pkg/mailer"
	"github.com/dmitrymomot/notemail/pkg/templating"
)

// Task names.
const (
	TaskSend  = "dispatch_send"
	TaskRetry = "retry_send"
	TaskSweep = "sweep_stale_sends"
)

// Queue is the River queue that runs send and retry jobs.
const Queue = "dispatch"

// SendJobOptions are the enqueue options for TaskSend. The idempotency key
// doubles as the job's unique key, so a repeated async request while the
// first is queued inserts nothing.
func SendJobOptions(idempotencyKey string) []job.EnqueueOption {
	return []job.EnqueueOption{
		job.InQueue(Queue),
		job.Priority(1),
		job.MaxAttempts(5),
		job.UniqueKey(idempotencyKey),
	}
}

// RetryJobOptions are the enqueue options for TaskRetry. A positive delay
// postpones the retry.
func RetryJobOptions(sendID string, delay time.Duration) []job.EnqueueOption {
	opts := []job.EnqueueOption{
		job.InQueue(Queue),
		job.Priority(2),
		job.MaxAttempts(3),
		job.UniqueKey("retry:" + sendID),
		job.UniqueFor(time.Hour),
	}
	if delay > 0 {
		opts = append(opts, job.ScheduledIn(delay))
	}
	return opts
}

// permanent reports errors that a job redelivery cannot fix. Delivery
// failures are permanent for the job because they are already recorded on
// the send and retried explicitly.
func permanent(err error) bool {
	return errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, templating.ErrTemplateSyntax) ||
		errors.Is(err, templating.ErrRenderFailed) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrKeyInUse) ||
		errors.Is(err, ErrNotRetryable) ||
		errors.Is(err, ErrNoAuthorizedProvider) ||
		errors.Is(err, ErrDispatchTimeout) ||
		errors.Is(err, mailer.ErrSendFailed)
}

// SendTask runs Dispatch in the background.
type SendTask struct {
	pipeline *Pipeline
}

func NewSendTask(p *Pipeline) *SendTask { return &SendTask{pipeline: p} }

func (t *SendTask) Name() string { return TaskSend }

func (t *SendTask) Handle(ctx context.Context, req Request) error {
	out, err := t.pipeline.Dispatch(ctx, req)
	if err == nil || permanent(err) {
		if err != nil {
			attrs := []any{slog.String("idempotency_key", req.IdempotencyKey), slog.String("error", err.Error())}
			if out != nil {
				attrs = append(attrs, slog.String("send_id", out.Record.ID))
			}
			t.pipeline.log.WarnContext(WithOwnerID(ctx, req.OwnerID), "background dispatch finished with error", attrs...)
		}
		return nil
	}
	return err
}

// RetryPayload identifies a send to retry.
type RetryPayload struct {
	OwnerID string `json:"owner_id"`
	SendID  string `json:"send_id"`
}

// RetryTask runs Retry in the background.
type RetryTask struct {
	pipeline *Pipeline
}

func NewRetryTask(p *Pipeline) *RetryTask { return &RetryTask{pipeline: p} }

func (t *RetryTask) Name() string { return TaskRetry }

func (t *RetryTask) Handle(ctx context.Context, p RetryPayload) error {
	_, err := t.pipeline.Retry(ctx, p.OwnerID, p.SendID)
	if err != nil && !permanent(err) {
		return err
	}
	return nil
}

// SweepTask fails stale pending sends every five minutes.
type SweepTask struct {
	pipeline *Pipeline
}

func NewSweepTask(p *Pipeline) *SweepTask { return &SweepTask{pipeline: p} }

func (t *SweepTask) Name() string     { return TaskSweep }
func (t *SweepTask) Schedule() string { return "*/5 * * * *" }

func (t *SweepTask) Handle(ctx context.Context) error {
	n, err := t.pipeline.SweepStale(ctx)
	if n > 0 {
		t.pipeline.log.InfoContext(ctx, "stale sends swept", slog.Int("count", n))
	}
	return err
}
