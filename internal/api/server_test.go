package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/webcorpus/harvester/internal/crawler"
	"github.com/webcorpus/harvester/internal/pipeline"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, zaptest.NewLogger(t))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestStatusReturnsSnapshot(t *testing.T) {
	t.Parallel()

	statusFn := func(context.Context) (pipeline.Status, error) {
		return pipeline.Status{
			Counts:  crawler.Counts{Pending: 5, Done: 12},
			Summary: pipeline.Summary{Done: 12, ChunksEmitted: 40},
		}, nil
	}
	srv := NewServer(statusFn, zaptest.NewLogger(t))
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status pipeline.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, 5, status.Counts.Pending)
	require.Equal(t, 40, status.Summary.ChunksEmitted)
}

func TestStatusWithoutCrawlIsUnavailable(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, zaptest.NewLogger(t))
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusSnapshotErrorIsInternal(t *testing.T) {
	t.Parallel()

	statusFn := func(context.Context) (pipeline.Status, error) {
		return pipeline.Status{}, errors.New("frontier closed")
	}
	srv := NewServer(statusFn, zaptest.NewLogger(t))
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsServed(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, zaptest.NewLogger(t))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "harvester_")
}
