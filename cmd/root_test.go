package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-ingest/internal/config"
	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
)

type mockApp struct {
	mock.Mock
}

func (m *mockApp) EnsureSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockApp) RunList(ctx context.Context, terms []string) (jobs.RunSummary, error) {
	args := m.Called(ctx, terms)
	return args.Get(0).(jobs.RunSummary), args.Error(1)
}

func (m *mockApp) RunDetail(ctx context.Context) (jobs.RunSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(jobs.RunSummary), args.Error(1)
}

func (m *mockApp) Pending(ctx context.Context, limit int) ([]jobs.PendingItem, error) {
	args := m.Called(ctx, limit)
	items, _ := args.Get(0).([]jobs.PendingItem)
	return items, args.Error(1)
}

func (m *mockApp) Close() {
	m.Called()
}

// withMockApp swaps the config loader and app factory for the duration of a test.
func withMockApp(t *testing.T, a App, factoryErr error) {
	t.Helper()
	origApp, origLoad := newApp, loadConfig
	t.Cleanup(func() { newApp, loadConfig = origApp, origLoad })

	loadConfig = func(string) (config.Config, error) {
		return config.Config{
			Logging: config.LoggingConfig{Level: "error"},
			Store:   config.StoreConfig{Driver: config.StoreMemory},
			Server:  config.ServerConfig{Port: 8080},
		}, nil
	}
	newApp = func(context.Context, config.Config, *zap.Logger) (App, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		return a, nil
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, cleanup := newRootCmd()
	defer cleanup()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListCommand_PassesTermsAndPrintsSummary(t *testing.T) {
	a := &mockApp{}
	a.On("EnsureSchema", mock.Anything).Return(nil)
	a.On("RunList", mock.Anything, []string{"Data Analyst", "SRE"}).
		Return(jobs.RunSummary{RunID: "run-1", Phase: jobs.PhaseList, Tier: "synthetic", Persisted: 5}, nil)
	a.On("Close").Return()
	withMockApp(t, a, nil)

	out, err := execute(t, "list", "Data Analyst", "SRE")
	require.NoError(t, err)

	var got jobs.RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 5, got.Persisted)
	a.AssertExpectations(t)
}

func TestDetailCommand_ErrorStillCloses(t *testing.T) {
	a := &mockApp{}
	a.On("EnsureSchema", mock.Anything).Return(nil)
	a.On("RunDetail", mock.Anything).Return(jobs.RunSummary{}, errors.New("db down"))
	a.On("Close").Return()
	withMockApp(t, a, nil)

	_, err := execute(t, "detail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detail phase")
	a.AssertCalled(t, "Close")
}

func TestRunCommand_RunsBothPhases(t *testing.T) {
	a := &mockApp{}
	a.On("EnsureSchema", mock.Anything).Return(nil)
	a.On("RunList", mock.Anything, mock.Anything).Return(jobs.RunSummary{RunID: "run-1", Phase: jobs.PhaseList}, nil)
	a.On("RunDetail", mock.Anything).Return(jobs.RunSummary{RunID: "run-2", Phase: jobs.PhaseDetail}, nil)
	a.On("Close").Return()
	withMockApp(t, a, nil)

	out, err := execute(t, "run")
	require.NoError(t, err)
	assert.Contains(t, out, `"run_id": "run-1"`)
	assert.Contains(t, out, `"run_id": "run-2"`)
	a.AssertExpectations(t)
}

func TestSchemaCommand(t *testing.T) {
	a := &mockApp{}
	a.On("EnsureSchema", mock.Anything).Return(nil)
	a.On("Close").Return()
	withMockApp(t, a, nil)

	_, err := execute(t, "schema")
	require.NoError(t, err)
	a.AssertExpectations(t)
}

func TestSchemaFailureClosesApp(t *testing.T) {
	a := &mockApp{}
	a.On("EnsureSchema", mock.Anything).Return(errors.New("permission denied"))
	a.On("Close").Return()
	withMockApp(t, a, nil)

	_, err := execute(t, "list")
	require.Error(t, err)
	a.AssertCalled(t, "Close")
	a.AssertNotCalled(t, "RunList", mock.Anything, mock.Anything)
}

func TestAppInitFailure(t *testing.T) {
	withMockApp(t, nil, errors.New("dial tcp: refused"))

	_, err := execute(t, "detail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize application services")
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	go func() { done <- serve(ctx, ln, handler, zap.NewNop()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
