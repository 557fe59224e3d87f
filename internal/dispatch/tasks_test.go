package dispatch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notemail/internal/store"
	"github.com/dmitrymomot/notemail/pkg/mailer"
	"github.com/dmitrymomot/notemail/pkg/templating"
)

func TestPermanent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "not found", err: fmt.Errorf("load: %w", store.ErrNotFound), want: true},
		{name: "syntax", err: &templating.SyntaxError{Field: templating.FieldBody, Err: errors.New("x")}, want: true},
		{name: "render", err: errors.Join(templating.ErrRenderFailed, errors.New("x")), want: true},
		{name: "invalid request", err: ErrInvalidRequest, want: true},
		{name: "key in use", err: ErrKeyInUse, want: true},
		{name: "not retryable", err: ErrNotRetryable, want: true},
		{name: "no provider", err: ErrNoAuthorizedProvider, want: true},
		{name: "timeout", err: ErrDispatchTimeout, want: true},
		{name: "send failed", err: mailer.Failed(mailer.KindGmail, errors.New("x")).Err, want: true},
		{name: "store outage", err: errors.New("connection refused"), want: false},
		{name: "status conflict", err: store.ErrStatusConflict, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, permanent(tt.err))
		})
	}
}

func TestSweepTask_Schedule(t *testing.T) {
	t.Parallel()

	task := NewSweepTask(nil)
	assert.Equal(t, TaskSweep, task.Name())
	assert.Equal(t, "*/5 * * * *", task.Schedule())
}
