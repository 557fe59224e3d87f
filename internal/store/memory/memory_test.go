package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notemail/internal/store"
	"github.com/dmitrymomot/notemail/internal/store/memory"
)

type fakeClock struct {
	t  time.Time
	mu sync.Mutex
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newStore(t *testing.T) (*memory.Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return memory.New(memory.WithClock(clock.Now)), clock
}

func createTemplate(t *testing.T, s *memory.Store, id string) {
	t.Helper()
	require.NoError(t, s.CreateTemplate(context.Background(), &store.Template{
		ID:        id,
		OwnerID:   "owner-1",
		Name:      "digest",
		Subject:   "{{note_title}}",
		Body:      "<p>v1</p>",
		Variables: []string{"note_title"},
	}))
}

func TestTemplates_VersionMonotonicity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, clock := newStore(t)
	createTemplate(t, s, "tpl-1")

	tpl, err := s.GetActiveTemplate(ctx, "owner-1", "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, 1, tpl.Version)

	clock.Advance(time.Minute)
	v, err := s.ApplyUpdate(ctx, "owner-1", "tpl-1", store.TemplateUpdate{Subject: "{{note_title}}", Body: "<p>v2</p>"})
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	clock.Advance(time.Minute)
	v, err = s.ApplyUpdate(ctx, "owner-1", "tpl-1", store.TemplateUpdate{Subject: "{{note_title}}", Body: "<p>v3</p>"})
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	t.Run("identical content is a no-op", func(t *testing.T) {
		v, err := s.ApplyUpdate(ctx, "owner-1", "tpl-1", store.TemplateUpdate{Subject: "{{note_title}}", Body: "<p>v3</p>"})
		require.NoError(t, err)
		assert.Equal(t, 3, v)

		versions, err := s.ListVersions(ctx, "owner-1", "tpl-1")
		require.NoError(t, err)
		assert.Len(t, versions, 2)
	})

	t.Run("snapshots preserve old content newest first", func(t *testing.T) {
		versions, err := s.ListVersions(ctx, "owner-1", "tpl-1")
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, 2, versions[0].Version)
		assert.Equal(t, "<p>v2</p>", versions[0].Body)
		assert.Equal(t, 1, versions[1].Version)
		assert.Equal(t, "<p>v1</p>", versions[1].Body)
		assert.Equal(t, []string{"note_title"}, versions[1].Variables)
	})

	t.Run("get version covers snapshots and live row", func(t *testing.T) {
		v1, err := s.GetVersion(ctx, "owner-1", "tpl-1", 1)
		require.NoError(t, err)
		assert.Equal(t, "<p>v1</p>", v1.Body)

		v3, err := s.GetVersion(ctx, "owner-1", "tpl-1", 3)
		require.NoError(t, err)
		assert.Equal(t, "<p>v3</p>", v3.Body)

		_, err = s.GetVersion(ctx, "owner-1", "tpl-1", 4)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("subject change alone bumps version", func(t *testing.T) {
		v, err := s.ApplyUpdate(ctx, "owner-1", "tpl-1", store.TemplateUpdate{Subject: "New", Body: "<p>v3</p>"})
		require.NoError(t, err)
		assert.Equal(t, 4, v)
	})
}

func TestTemplates_Ownership(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newStore(t)
	createTemplate(t, s, "tpl-1")

	_, err := s.GetActiveTemplate(ctx, "owner-2", "tpl-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.ApplyUpdate(ctx, "owner-2", "tpl-1", store.TemplateUpdate{Body: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.DeactivateTemplate(ctx, "owner-2", "tpl-1"), store.ErrNotFound)

	require.NoError(t, s.DeactivateTemplate(ctx, "owner-1", "tpl-1"))
	_, err = s.GetActiveTemplate(ctx, "owner-1", "tpl-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeactivateTemplate(ctx, "owner-1", "tpl-1"), store.ErrNotFound)

	versions, err := s.ListVersions(ctx, "owner-1", "tpl-1")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestTemplates_ConcurrentUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newStore(t)
	createTemplate(t, s, "tpl-1")

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.ApplyUpdate(ctx, "owner-1", "tpl-1", store.TemplateUpdate{Body: fmt.Sprintf("<p>%d</p>", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	tpl, err := s.GetActiveTemplate(ctx, "owner-1", "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, n+1, tpl.Version)

	versions, err := s.ListVersions(ctx, "owner-1", "tpl-1")
	require.NoError(t, err)
	require.Len(t, versions, n)
	for i, v := range versions {
		assert.Equal(t, n-i, v.Version)
	}
}

func newSend(id, key string) *store.SendRecord {
	return &store.SendRecord{
		ID:              id,
		OwnerID:         "owner-1",
		NoteID:          "note-1",
		TemplateID:      "tpl-1",
		TemplateVersion: 1,
		IdempotencyKey:  key,
		Recipients:      []string{"a@example.com"},
		Subject:         "s",
		HTML:            "<p>x</p>",
		Text:            "x",
		Status:          store.StatusPending,
	}
}

func TestSends_IdempotencyKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.CreateSend(ctx, newSend("send-1", "key-1")))
	assert.ErrorIs(t, s.CreateSend(ctx, newSend("send-2", "key-1")), store.ErrDuplicateKey)

	got, err := s.GetSendByKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "send-1", got.ID)

	_, err = s.GetSendByKey(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSends_ConcurrentCreateSameKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newStore(t)

	var created, dup atomic.Int32
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.CreateSend(ctx, newSend(fmt.Sprintf("send-%d", i), "same"))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, store.ErrDuplicateKey):
				dup.Add(1)
			default:
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(15), dup.Load())
}

func TestSends_Transition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, clock := newStore(t)
	require.NoError(t, s.CreateSend(ctx, newSend("send-1", "key-1")))

	_, err := s.Transition(ctx, "send-1", store.StatusFailed, store.Transition{To: store.StatusPending})
	assert.ErrorIs(t, err, store.ErrStatusConflict)

	rec, err := s.Transition(ctx, "send-1", store.StatusPending, store.Transition{
		To:       store.StatusFailed,
		Provider: "gmail",
		Error:    "boom",
	})
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, rec.Status)
	assert.Equal(t, "boom", rec.Error)

	clock.Advance(time.Second)
	rec, err = s.Transition(ctx, "send-1", store.StatusFailed, store.Transition{To: store.StatusPending})
	require.NoError(t, err)
	assert.Empty(t, rec.Error)

	sentAt := clock.Now()
	rec, err = s.Transition(ctx, "send-1", store.StatusPending, store.Transition{
		To:                store.StatusSent,
		Provider:          "resend",
		ProviderMessageID: "msg-1",
		SentAt:            &sentAt,
	})
	require.NoError(t, err)
	assert.Equal(t, store.StatusSent, rec.Status)
	assert.Equal(t, "msg-1", rec.ProviderMessageID)
	require.NotNil(t, rec.SentAt)
	assert.Equal(t, "<p>x</p>", rec.HTML)

	_, err = s.Transition(ctx, "missing", store.StatusPending, store.Transition{To: store.StatusSent})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSends_Listing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, clock := newStore(t)

	for i := range 3 {
		require.NoError(t, s.CreateSend(ctx, newSend(fmt.Sprintf("send-%d", i), fmt.Sprintf("key-%d", i))))
		clock.Advance(time.Minute)
	}
	other := newSend("other", "key-other")
	other.OwnerID = "owner-2"
	require.NoError(t, s.CreateSend(ctx, other))

	list, err := s.ListSends(ctx, "owner-1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "send-2", list[0].ID)
	assert.Equal(t, "send-1", list[1].ID)

	all, err := s.ListSends(ctx, "owner-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = s.GetSend(ctx, "owner-2", "send-0")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Transition(ctx, "send-1", store.StatusPending, store.Transition{To: store.StatusSent})
	require.NoError(t, err)

	stale, err := s.ListStalePending(ctx, clock.Now().Add(-90*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "send-0", stale[0].ID)
}

func TestCredentials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newStore(t)

	_, err := s.GetCredential(ctx, "owner-1", "gmail")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SaveCredential(ctx, &store.Credential{OwnerID: "owner-1", Provider: "gmail", Token: "t", Authorized: true}))
	c, err := s.GetCredential(ctx, "owner-1", "gmail")
	require.NoError(t, err)
	assert.True(t, c.Authorized)
	assert.Equal(t, "t", c.Token)
}

func TestNotes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.SaveNote(ctx, &store.Note{ID: "note-1", OwnerID: "owner-1", Title: "Trip", Content: "# Hi"}))

	n, err := s.GetNote(ctx, "owner-1", "note-1")
	require.NoError(t, err)
	assert.Equal(t, "Trip", n.Title)

	_, err = s.GetNote(ctx, "owner-2", "note-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.SaveNote(ctx, &store.Note{ID: "note-1", OwnerID: "owner-2"}), store.ErrNotFound)
}
