package id_test

import (
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notemail/pkg/id"
)

func TestNewULID(t *testing.T) {
	t.Parallel()

	t.Run("format", func(t *testing.T) {
		t.Parallel()

		ulid := id.NewULID()
		assert.Len(t, ulid, 26)
		assert.Regexp(t, regexp.MustCompile(`^[0-7][0-9A-HJ-NP-TV-Z]{25}$`), ulid)
	})

	t.Run("sortable across milliseconds", func(t *testing.T) {
		t.Parallel()

		var ids []string
		for range 5 {
			ids = append(ids, id.NewULID())
			time.Sleep(2 * time.Millisecond)
		}
		assert.True(t, sort.StringsAreSorted(ids))
	})

	t.Run("unique under concurrency", func(t *testing.T) {
		t.Parallel()

		const n = 1000
		var mu sync.Mutex
		seen := make(map[string]struct{}, n)

		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v := id.NewULID()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Len(t, seen, n)
	})
}

func TestNewIdempotencyKey(t *testing.T) {
	t.Parallel()

	a, b := id.NewIdempotencyKey(), id.NewIdempotencyKey()
	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
}
