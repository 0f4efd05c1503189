package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-ingest/internal/app"
	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
)

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(&fakeRunner{}), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{})
	serve(t, server, http.MethodGet, "/healthz", nil)
	rec := serve(t, server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_RunList_PassesSearchTerms(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{summary: jobs.RunSummary{RunID: "run-1", Phase: jobs.PhaseList, Tier: "synthetic", Persisted: 5}}
	body := []byte(`{"search_terms":["Go Developer","SRE"]}`)
	rec := serve(t, newTestServer(runner), http.MethodPost, "/v1/runs/list", body)

	require.Equal(t, http.StatusOK, rec.Code)
	var got jobs.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 5, got.Persisted)
	assert.Equal(t, []string{"Go Developer", "SRE"}, runner.lastTerms())
}

func TestServer_RunList_EmptyBodyUsesDefaults(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{summary: jobs.RunSummary{RunID: "run-1"}}
	rec := serve(t, newTestServer(runner), http.MethodPost, "/v1/runs/list", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, runner.lastTerms())
}

func TestServer_RunList_InvalidJSON(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(&fakeRunner{}), http.MethodPost, "/v1/runs/list", []byte("{invalid"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RunDetail(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{summary: jobs.RunSummary{RunID: "run-9", Phase: jobs.PhaseDetail, Acquired: 3, Persisted: 3}}
	rec := serve(t, newTestServer(runner), http.MethodPost, "/v1/runs/detail", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"run_id":"run-9"`)
	assert.Equal(t, 1, runner.detailCalls)
}

func TestServer_RunConflictWhenBusy(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: fmt.Errorf("wrapped: %w", app.ErrBusy)}
	rec := serve(t, newTestServer(runner), http.MethodPost, "/v1/runs/detail", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_RunFailures(t *testing.T) {
	t.Parallel()

	t.Run("BeforeStart", func(t *testing.T) {
		t.Parallel()
		runner := &fakeRunner{err: errors.New("generate run id: boom")}
		rec := serve(t, newTestServer(runner), http.MethodPost, "/v1/runs/list", nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "boom")
	})

	t.Run("DuringRun", func(t *testing.T) {
		t.Parallel()
		runner := &fakeRunner{
			summary: jobs.RunSummary{RunID: "run-2", ErrorText: "persist listings: db down"},
			err:     errors.New("persist listings: db down"),
		}
		rec := serve(t, newTestServer(runner), http.MethodPost, "/v1/runs/list", nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error_text":"persist listings: db down"`)
	})
}

func TestServer_RunSurvivesClientCancel(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{summary: jobs.RunSummary{RunID: "run-1"}}
	server := newTestServer(runner)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/runs/detail", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, runner.lastCtxErr)
}

func TestServer_ListPending(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{pending: []jobs.PendingItem{{ID: 7, URL: "https://example.com/job/7"}}}
	server := newTestServer(runner)

	rec := serve(t, server, http.MethodGet, "/v1/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1,"items":[{"id":7,"url":"https://example.com/job/7"}]}`, rec.Body.String())
	assert.Equal(t, jobs.DefaultPendingLimit, runner.lastLimit)

	rec = serve(t, server, http.MethodGet, "/v1/pending?limit=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxPendingLimit, runner.lastLimit)

	rec = serve(t, server, http.MethodGet, "/v1/pending?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ListPendingEmptyAndError(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(&fakeRunner{}), http.MethodGet, "/v1/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"items":[]}`, rec.Body.String())

	rec = serve(t, newTestServer(&fakeRunner{pendingErr: errors.New("db down")}), http.MethodGet, "/v1/pending", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(&fakeRunner{}), http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	rec = httptest.NewRecorder()
	newTestServer(&fakeRunner{}).Handler().ServeHTTP(rec, req)
	assert.Equal(t, "caller-id", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{panicOnDetail: true}
	rec := serve(t, newTestServer(runner), http.MethodPost, "/v1/runs/detail", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestServer_UnknownRoute(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(&fakeRunner{}), http.MethodGet, "/v1/jobs", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- helpers/fakes ---

type fakeRunner struct {
	mu            sync.Mutex
	summary       jobs.RunSummary
	err           error
	pending       []jobs.PendingItem
	pendingErr    error
	panicOnDetail bool

	terms       []string
	lastLimit   int
	lastCtxErr  error
	detailCalls int
}

func (f *fakeRunner) RunList(ctx context.Context, terms []string) (jobs.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terms = terms
	f.lastCtxErr = ctx.Err()
	return f.summary, f.err
}

func (f *fakeRunner) RunDetail(ctx context.Context) (jobs.RunSummary, error) {
	if f.panicOnDetail {
		panic("renderer exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	f.lastCtxErr = ctx.Err()
	return f.summary, f.err
}

func (f *fakeRunner) Pending(_ context.Context, limit int) ([]jobs.PendingItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	return f.pending, f.pendingErr
}

func (f *fakeRunner) lastTerms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terms
}

func newTestServer(runner Runner) *Server {
	return NewServer(runner, zap.NewNop())
}

func serve(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	}
	ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
	defer cancel()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req.WithContext(ctx))
	return rec
}
