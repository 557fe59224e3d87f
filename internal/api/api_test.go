package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notemail/internal/api"
	"github.com/dmitrymomot/notemail/internal/dispatch"
	"github.com/dmitrymomot/notemail/internal/store"
	"github.com/dmitrymomot/notemail/internal/store/memory"
	"github.com/dmitrymomot/notemail/pkg/health"
	"github.com/dmitrymomot/notemail/pkg/job"
	"github.com/dmitrymomot/notemail/pkg/mailer"
	"github.com/dmitrymomot/notemail/pkg/templating"
)

const owner = "owner-1"

var now = time.Date(2025, time.March, 5, 9, 30, 0, 0, time.UTC)

type stubProvider struct {
	result mailer.Result
	mu     sync.Mutex
	calls  int
}

func (p *stubProvider) Kind() mailer.Kind { return mailer.KindGmail }

func (p *stubProvider) CheckAuthorized(c mailer.Credential) bool { return c.Authorized }

func (p *stubProvider) Send(context.Context, mailer.Credential, mailer.Message) mailer.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if !p.result.Success && p.result.Err == nil {
		return mailer.Sent("msg-1")
	}
	return p.result
}

func (p *stubProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type enqueued struct {
	payload any
	name    string
}

type stubEnqueuer struct {
	err  error
	jobs []enqueued
	mu   sync.Mutex
}

func (e *stubEnqueuer) Enqueue(_ context.Context, name string, payload any, _ ...job.EnqueueOption) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs = append(e.jobs, enqueued{name: name, payload: payload})
	return e.err
}

func (e *stubEnqueuer) list() []enqueued {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]enqueued(nil), e.jobs...)
}

type env struct {
	store    *memory.Store
	provider *stubProvider
	jobs     *stubEnqueuer
	server   *httptest.Server
}

func newEnv(t *testing.T, opts ...api.Option) *env {
	t.Helper()

	ctx := context.Background()
	st := memory.New(memory.WithClock(func() time.Time { return now }))
	require.NoError(t, st.SaveNote(ctx, &store.Note{ID: "note-1", OwnerID: owner, Title: "Trip", Content: "hello"}))
	require.NoError(t, st.CreateTemplate(ctx, &store.Template{
		ID: "tpl-1", OwnerID: owner, Name: "trip", Subject: "{{note_title}}", Body: "<p>{{note_content}} {{current_month}}</p>",
	}))
	require.NoError(t, st.SaveCredential(ctx, &store.Credential{OwnerID: owner, Provider: "gmail", Token: "t", Authorized: true}))

	e := &env{store: st, provider: &stubProvider{}, jobs: &stubEnqueuer{}}
	pipeline := dispatch.New(st, templating.NewRenderer(), []mailer.Provider{e.provider},
		dispatch.WithClock(func() time.Time { return now }))

	opts = append([]api.Option{api.WithEnqueuer(e.jobs)}, opts...)
	e.server = httptest.NewServer(api.New(pipeline, dispatch.NewTemplates(st, nil), opts...))
	t.Cleanup(e.server.Close)
	return e
}

func (e *env) do(t *testing.T, method, path, body string, headers ...string) (*http.Response, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, r)
	require.NoError(t, err)
	req.Header.Set(api.HeaderOwnerID, owner)
	for i := 0; i+1 < len(headers); i += 2 {
		if headers[i+1] == "" {
			req.Header.Del(headers[i])
			continue
		}
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

const sendBody = `{"note_id":"note-1","template_id":"tpl-1","recipients":["a@example.com"]}`

func TestSends(t *testing.T) {
	t.Parallel()

	t.Run("dispatch and replay", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		resp, body := e.do(t, http.MethodPost, "/sends", sendBody, api.HeaderIdempotencyKey, "k-1")
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(api.HeaderRequestID))

		rec := body["record"].(map[string]any)
		assert.Equal(t, "sent", rec["status"])
		assert.Equal(t, "Trip", rec["subject"])
		assert.Equal(t, "k-1", rec["idempotency_key"])
		assert.NotContains(t, rec, "token")

		resp, body = e.do(t, http.MethodPost, "/sends", sendBody, api.HeaderIdempotencyKey, "k-1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["replayed"])
		assert.Equal(t, 1, e.provider.count())

		id := rec["id"].(string)
		resp, body = e.do(t, http.MethodGet, "/sends/"+id, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, id, body["id"])

		resp, body = e.do(t, http.MethodGet, "/sends?limit=10", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, body["sends"], 1)
	})

	t.Run("provider failure carries the record", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.provider.result = mailer.Failed(mailer.KindGmail, errors.New("boom"))

		resp, body := e.do(t, http.MethodPost, "/sends", sendBody)
		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, "send_failed", errorCode(body))
		send := body["send"].(map[string]any)
		assert.Equal(t, "failed", send["status"])

		e.provider.mu.Lock()
		e.provider.result = mailer.Result{}
		e.provider.mu.Unlock()

		resp, body = e.do(t, http.MethodPost, "/sends/"+send["id"].(string)+"/retry", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "sent", body["record"].(map[string]any)["status"])

		resp, body = e.do(t, http.MethodPost, "/sends/"+send["id"].(string)+"/retry", "")
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "not_retryable", errorCode(body))
	})

	t.Run("no authorized provider", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		require.NoError(t, e.store.SaveCredential(context.Background(), &store.Credential{OwnerID: owner, Provider: "gmail"}))

		resp, body := e.do(t, http.MethodPost, "/sends", sendBody)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "no_authorized_provider", errorCode(body))
		assert.Equal(t, "failed", body["send"].(map[string]any)["status"])
	})

	t.Run("async enqueues with the key", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		resp, body := e.do(t, http.MethodPost, "/sends?async=true", sendBody, api.HeaderIdempotencyKey, "k-async")
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "k-async", body["idempotency_key"])

		jobs := e.jobs.list()
		require.Len(t, jobs, 1)
		assert.Equal(t, dispatch.TaskSend, jobs[0].name)
		req := jobs[0].payload.(dispatch.Request)
		assert.Equal(t, owner, req.OwnerID)
		assert.Equal(t, "k-async", req.IdempotencyKey)
		assert.Zero(t, e.provider.count())
	})

	t.Run("async retry of a sent record conflicts", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, body := e.do(t, http.MethodPost, "/sends", sendBody)
		id := body["record"].(map[string]any)["id"].(string)

		resp, body := e.do(t, http.MethodPost, "/sends/"+id+"/retry?async=1", "")
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "sent", body["send"].(map[string]any)["status"])
		assert.Empty(t, e.jobs.list())
	})

	t.Run("async retry of a failed record", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.provider.result = mailer.Failed(mailer.KindGmail, errors.New("boom"))
		_, body := e.do(t, http.MethodPost, "/sends", sendBody)
		id := body["send"].(map[string]any)["id"].(string)

		resp, body := e.do(t, http.MethodPost, "/sends/"+id+"/retry?async=true&delay=soon", "")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "bad_request", errorCode(body))

		resp, body = e.do(t, http.MethodPost, "/sends/"+id+"/retry?async=true&delay=30s", "")
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, id, body["send_id"])

		jobs := e.jobs.list()
		require.Len(t, jobs, 1)
		assert.Equal(t, dispatch.TaskRetry, jobs[0].name)
		assert.Equal(t, dispatch.RetryPayload{OwnerID: owner, SendID: id}, jobs[0].payload)
	})

	t.Run("rejections", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		tests := []struct {
			name    string
			method  string
			path    string
			body    string
			headers []string
			status  int
			code    string
		}{
			{name: "missing owner", method: http.MethodGet, path: "/sends", headers: []string{api.HeaderOwnerID, ""}, status: http.StatusUnauthorized, code: "missing_owner"},
			{name: "malformed json", method: http.MethodPost, path: "/sends", body: "{", status: http.StatusBadRequest, code: "bad_request"},
			{name: "unknown field", method: http.MethodPost, path: "/sends", body: `{"nope":1}`, status: http.StatusBadRequest, code: "bad_request"},
			{name: "no recipients", method: http.MethodPost, path: "/sends", body: `{"note_id":"note-1","template_id":"tpl-1"}`, status: http.StatusUnprocessableEntity, code: "invalid_request"},
			{name: "conflicting keys", method: http.MethodPost, path: "/sends", body: `{"note_id":"note-1","template_id":"tpl-1","recipients":["a@b.c"],"idempotency_key":"x"}`, headers: []string{api.HeaderIdempotencyKey, "y"}, status: http.StatusBadRequest, code: "bad_request"},
			{name: "missing template", method: http.MethodPost, path: "/sends", body: `{"note_id":"note-1","template_id":"nope","recipients":["a@b.c"]}`, status: http.StatusNotFound, code: "not_found"},
			{name: "missing send", method: http.MethodGet, path: "/sends/nope", status: http.StatusNotFound, code: "not_found"},
			{name: "bad limit", method: http.MethodGet, path: "/sends?limit=-1", status: http.StatusBadRequest, code: "bad_request"},
			{name: "unknown route", method: http.MethodGet, path: "/nope", status: http.StatusNotFound, code: "route_not_found"},
		}
		for _, tt := range tests {
			resp, body := e.do(t, tt.method, tt.path, tt.body, tt.headers...)
			assert.Equal(t, tt.status, resp.StatusCode, tt.name)
			assert.Equal(t, tt.code, errorCode(body), tt.name)
		}
	})
}

func TestSends_AsyncUnavailable(t *testing.T) {
	t.Parallel()

	e := newEnv(t, api.WithEnqueuer(nil))
	resp, body := e.do(t, http.MethodPost, "/sends?async=true", sendBody)
	require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Equal(t, "async_unavailable", errorCode(body))
}

func TestSends_ArchiveDisabled(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	resp, body := e.do(t, http.MethodPost, "/sends", sendBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sendID := body["record"].(map[string]any)["id"].(string)

	resp, body = e.do(t, http.MethodGet, "/sends/"+sendID+"/archive?presign=true", "")
	require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Equal(t, "archive_disabled", errorCode(body))
}

func TestTemplates(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/templates", `{"name":"weekly","subject":"{{note_title}}","body":"<p>{{{note_content_html}}}</p>"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	assert.EqualValues(t, 1, body["version"])
	assert.ElementsMatch(t, []any{"note_title", "note_content_html"}, body["variables"])

	resp, body = e.do(t, http.MethodPut, "/templates/"+id, `{"subject":"v2","body":"<p>{{note_title}}</p>"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["version"])

	resp, body = e.do(t, http.MethodGet, "/templates/"+id+"/versions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["versions"], 1)

	resp, body = e.do(t, http.MethodGet, "/templates/"+id+"/versions/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "{{note_title}}", body["subject"])

	resp, body = e.do(t, http.MethodPut, "/templates/"+id, `{"subject":"ok","body":"{{#if x}}"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "template_syntax", errorCode(body))
	assert.Contains(t, body["error"].(map[string]any)["fields"], "body")

	resp, _ = e.do(t, http.MethodDelete, "/templates/"+id, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/templates/"+id, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTemplates_Preview(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	tests := []struct {
		name    string
		query   string
		headers []string
		want    string
	}{
		{name: "default locale", query: "?note_id=note-1", want: "<p>hello March</p>"},
		{name: "accept-language", query: "?note_id=note-1", headers: []string{"Accept-Language", "fr-CH, fr;q=0.9"}, want: "<p>hello mars</p>"},
		{name: "query wins", query: "?note_id=note-1&locale=de", headers: []string{"Accept-Language", "fr"}, want: "<p>hello März</p>"},
	}
	for _, tt := range tests {
		resp, body := e.do(t, http.MethodGet, "/templates/tpl-1/preview"+tt.query, "", tt.headers...)
		require.Equal(t, http.StatusOK, resp.StatusCode, tt.name)
		assert.Equal(t, "Trip", body["subject"], tt.name)
		assert.Equal(t, tt.want, body["html"], tt.name)
	}

	resp, body := e.do(t, http.MethodGet, "/templates/tpl-1/preview", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad_request", errorCode(body))
}

func TestTemplates_Tooling(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/templates/validate", `{"subject":"{{a}}","body":"{{#each x}}"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["valid"])
	assert.Contains(t, body["errors"], "body")

	resp, body = e.do(t, http.MethodPost, "/templates/variables", `{"subject":"{{note_title}}","body":"{{#each items}}{{this.name}}{{/each}}"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["variables"], "note_title")
	assert.Contains(t, body["variables"], "items")
}

func TestHealth(t *testing.T) {
	t.Parallel()

	e := newEnv(t, api.WithHealthChecks(health.Checks{
		"db": func(context.Context) error { return errors.New("down") },
	}))

	resp, _ := e.do(t, http.MethodGet, "/livez", "", api.HeaderOwnerID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := e.do(t, http.MethodGet, "/readyz", "", api.HeaderOwnerID, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, health.StatusUnhealthy, body["status"])
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	resp, _ := e.do(t, http.MethodGet, "/livez", "", "X-Correlation-ID", "upstream-1")
	assert.Equal(t, "upstream-1", resp.Header.Get(api.HeaderRequestID))

	resp, body := e.do(t, http.MethodGet, "/sends/missing", "", api.HeaderRequestID, "req-42")
	assert.Equal(t, "req-42", resp.Header.Get(api.HeaderRequestID))
	assert.Equal(t, "req-42", body["error"].(map[string]any)["request_id"])
}
