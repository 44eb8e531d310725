package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(health *HealthChecker, metrics http.Handler) *Server {
	return NewServer(DefaultConfig(), Dependencies{Health: health, Metrics: metrics})
}

func TestHealthz_AlwaysOK(t *testing.T) {
	health := NewHealthChecker("test")
	health.AddCheck("storage", func(context.Context) error { return errors.New("down") })
	srv := newTestServer(health, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestReadyz(t *testing.T) {
	health := NewHealthChecker("test")
	var storageErr error
	health.AddCheck("storage", func(context.Context) error { return storageErr })
	health.AddCheck("cache", func(context.Context) error { return nil })
	srv := newTestServer(health, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	storageErr = errors.New("connection refused")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Ready)
	assert.Equal(t, "failed: storage", status.Message)
	assert.True(t, status.Checks["cache"].Healthy)
	assert.Equal(t, "connection refused", status.Checks["storage"].Message)
}

func TestReadyz_CheckTimeout(t *testing.T) {
	health := NewHealthChecker("test")
	health.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cfg := DefaultConfig()
	cfg.CheckTimeout = 10 * time.Millisecond
	srv := NewServer(cfg, Dependencies{Health: health})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("progress_xp_recorded_total 0\n"))
	})

	rec := httptest.NewRecorder()
	newTestServer(nil, metrics).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "progress_xp_recorded_total")

	rec = httptest.NewRecorder()
	newTestServer(nil, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartAsyncAndShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	srv := NewServer(cfg, Dependencies{})

	errCh, err := srv.StartAsync()
	require.NoError(t, err)
	assert.True(t, srv.IsRunning())

	resp, err := http.Get("http://" + srv.Address() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
	for err := range errCh {
		t.Fatalf("unexpected serve error: %v", err)
	}
}
