package storage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notemail/pkg/storage"
)

// fakeS3 serves path-style PUT and GET for a single bucket.
type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	mu      sync.Mutex
	deny    bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deny {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/archive/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newArchive(t *testing.T, fake *fakeS3) *storage.S3 {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	arch, err := storage.New(storage.Config{
		Bucket:    "archive",
		AccessKey: "key",
		SecretKey: "secret",
		Endpoint:  srv.URL,
		PathStyle: true,
	}, storage.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return arch
}

func TestS3_PutGet(t *testing.T) {
	t.Parallel()

	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	arch := newArchive(t, fake)
	ctx := context.Background()

	key := storage.SendKey("owner-1", "01JABC")
	require.NoError(t, arch.Put(ctx, key, "text/html; charset=utf-8", []byte("<p>Hi</p>")))

	assert.Equal(t, "<p>Hi</p>", string(fake.objects["sends/owner-1/01JABC.html"]))
	assert.Equal(t, "text/html; charset=utf-8", fake.types["sends/owner-1/01JABC.html"])

	got, err := arch.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi</p>", string(got))
}

func TestS3_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing object", func(t *testing.T) {
		t.Parallel()

		arch := newArchive(t, &fakeS3{objects: map[string][]byte{}, types: map[string]string{}})
		_, err := arch.Get(context.Background(), "sends/x/y.html")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("access denied", func(t *testing.T) {
		t.Parallel()

		arch := newArchive(t, &fakeS3{objects: map[string][]byte{}, types: map[string]string{}, deny: true})
		err := arch.Put(context.Background(), "k", "text/html", []byte("x"))
		require.ErrorIs(t, err, storage.ErrAccessDenied)
	})
}

func TestS3_URL(t *testing.T) {
	t.Parallel()

	arch := newArchive(t, &fakeS3{objects: map[string][]byte{}, types: map[string]string{}})
	u, err := arch.URL(context.Background(), "sends/o/s.html", 10*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "/archive/sends/o/s.html")
	assert.Contains(t, u, "X-Amz-Signature=")
	assert.Contains(t, u, "X-Amz-Expires=600")
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := storage.New(storage.Config{Bucket: "b"})
	require.ErrorIs(t, err, storage.ErrInvalidConfig)
	assert.False(t, storage.Config{}.Enabled())
	assert.True(t, storage.Config{Bucket: "b"}.Enabled())
}

func TestSendKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		owner, id, want string
	}{
		{owner: "owner-1", id: "01J", want: "sends/owner-1/01J.html"},
		{owner: "../etc", id: "passwd", want: "sends/_etc/passwd.html"},
		{owner: "a b@c", id: "x/y", want: "sends/a_b_c/x_y.html"},
		{owner: "", id: "id", want: "sends/_/id.html"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, storage.SendKey(tt.owner, tt.id))
	}
}
