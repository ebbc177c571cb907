package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webharvest/webharvest/internal/clock/system"
	"github.com/webharvest/webharvest/internal/pool"
	"github.com/webharvest/webharvest/internal/scraper"
)

type stubAdapter struct {
	html string
	err  error
}

func (a *stubAdapter) Fetch(_ context.Context, task scraper.Task) (scraper.Document, error) {
	if a.err != nil {
		return nil, a.err
	}
	return scraper.NewDocument([]byte(a.html), task.URL)
}

func newTestServer(t *testing.T, adapter scraper.EngineAdapter) *Server {
	t.Helper()
	p := pool.New(
		pool.Config{MaxInstances: 2},
		scraper.NewResolver(nil, nil, adapter),
		scraper.NewRegistry(zap.NewNop()),
		scraper.NewExponentialRetryPolicy(),
		nil,
		nil,
		system.New(),
		zap.NewNop(),
	)
	return NewServer(p, prometheus.NewRegistry(), zap.NewNop())
}

func postBatch(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_SubmitBatch(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubAdapter{html: `<html><head><title>OK</title></head><body></body></html>`})
	rec := postBatch(t, srv, `{"tasks": [
		{"url": "https://example.com/a", "scenario": "custom", "engine": "http"},
		{"url": "https://example.com/b", "scenario": "custom", "engine": "http"}
	]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp batchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp.Total)
	require.Equal(t, 2, resp.Completed)
	require.Equal(t, 0, resp.Failed)
	require.Len(t, resp.Results, 2)
	require.Equal(t, "OK", resp.Results[0].Data["title"])
}

func TestServer_SubmitBatch_FailedTasksStillRespondOK(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubAdapter{err: scraper.NewHTTPStatusError("https://example.com/a", 404)})
	rec := postBatch(t, srv, `{"tasks": [
		{"url": "https://example.com/a", "scenario": "custom", "engine": "http"}
	]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp batchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Failed)
	require.Contains(t, resp.Results[0].Error, "http status 404")
}

func TestServer_SubmitBatch_BadRequests(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubAdapter{html: "<html></html>"})

	testCases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"tasks": [`},
		{"empty tasks", `{"tasks": []}`},
		{"unknown scenario", `{"tasks": [{"url": "https://example.com", "scenario": "weather", "engine": "http"}]}`},
		{"unknown engine", `{"tasks": [{"url": "https://example.com", "scenario": "custom", "engine": "fax"}]}`},
		{"missing url", `{"tasks": [{"url": "", "scenario": "custom", "engine": "http"}]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := postBatch(t, srv, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			require.NotEmpty(t, resp["error"])
		})
	}
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubAdapter{html: "<html></html>"})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap scraper.HealthSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	require.Equal(t, 2, snap.MaxInstances)
	require.Equal(t, 0, snap.ActiveWorkers)
}

func TestServer_ResultsAccumulateAcrossBatches(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubAdapter{html: "<html><head><title>OK</title></head></html>"})
	postBatch(t, srv, `{"tasks": [{"url": "https://example.com/a", "scenario": "custom", "engine": "http"}]}`)
	postBatch(t, srv, `{"tasks": [{"url": "https://example.com/b", "scenario": "custom", "engine": "http"}]}`)

	req := httptest.NewRequest(http.MethodGet, "/v1/results", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp batchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp.Total)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubAdapter{html: "<html></html>"})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
