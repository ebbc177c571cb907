// Package api exposes the HTTP interface for the harvest service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/webharvest/webharvest/internal/pool"
	"github.com/webharvest/webharvest/internal/scraper"
)

// defaultSubmitTimeout bounds a blocking batch submission over HTTP.
const defaultSubmitTimeout = 10 * time.Minute

// Server wires HTTP handlers to the worker pool.
type Server struct {
	router   chi.Router
	pool     *pool.Pool
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. gatherer may be
// nil, in which case the default Prometheus registry is exposed.
func NewServer(p *pool.Pool, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		pool:     p,
		gatherer: gatherer,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/batches", s.submitBatch)
		r.Get("/results", s.listResults)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.pool.HealthSnapshot())
}

// submitBatch runs the submitted tasks and blocks until every task has a
// terminal result.
func (s *Server) submitBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	tasks, err := req.toTasks()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultSubmitTimeout)
	defer cancel()

	results, err := s.pool.Submit(ctx, tasks)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case errors.Is(err, context.Canceled):
			status = http.StatusRequestTimeout
		default:
			// Validation failures reject the whole submission.
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, newBatchResponse(results))
}

// listResults returns every result collected by the pool since startup.
func (s *Server) listResults(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, newBatchResponse(s.pool.Results()))
}

// batchRequest is the wire form of a batch submission.
type batchRequest struct {
	Tasks []taskRequest `json:"tasks"`
}

// taskRequest is the wire form of one scrape task. Scenario and engine are
// validated during conversion so a malformed task rejects the request before
// anything is enqueued.
type taskRequest struct {
	URL            string            `json:"url"`
	Scenario       string            `json:"scenario"`
	Engine         string            `json:"engine"`
	Selectors      map[string]string `json:"selectors,omitempty"`
	WaitTimeoutSec int               `json:"wait_timeout_seconds,omitempty"`
	MaxRetries     *int              `json:"max_retries,omitempty"`
	UseProxy       bool              `json:"use_proxy,omitempty"`
	ExtractImages  bool              `json:"extract_images,omitempty"`
	ExtractLinks   bool              `json:"extract_links,omitempty"`
	ScrollToBottom bool              `json:"scroll_to_bottom,omitempty"`
	RequiresScript bool              `json:"requires_script,omitempty"`
	CustomHeaders  map[string]string `json:"custom_headers,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
}

func (r batchRequest) toTasks() ([]scraper.Task, error) {
	if len(r.Tasks) == 0 {
		return nil, errors.New("tasks must not be empty")
	}
	tasks := make([]scraper.Task, len(r.Tasks))
	for i, tr := range r.Tasks {
		task, err := tr.toTask()
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		tasks[i] = task
	}
	return tasks, nil
}

func (r taskRequest) toTask() (scraper.Task, error) {
	scenario, err := scraper.ParseScenario(r.Scenario)
	if err != nil {
		return scraper.Task{}, err
	}
	engine, err := scraper.ParseEngine(r.Engine)
	if err != nil {
		return scraper.Task{}, err
	}
	task := scraper.Task{
		URL:            r.URL,
		Scenario:       scenario,
		Engine:         engine,
		Selectors:      r.Selectors,
		WaitTimeout:    time.Duration(r.WaitTimeoutSec) * time.Second,
		UseProxy:       r.UseProxy,
		ExtractImages:  r.ExtractImages,
		ExtractLinks:   r.ExtractLinks,
		ScrollToBottom: r.ScrollToBottom,
		RequiresScript: r.RequiresScript,
		CustomHeaders:  r.CustomHeaders,
		Metadata:       r.Metadata,
	}
	if r.MaxRetries != nil {
		budget := *r.MaxRetries
		task.MaxRetries = &budget
	}
	if err := task.Validate(); err != nil {
		return scraper.Task{}, err
	}
	return task, nil
}

// batchResponse summarizes a finished batch.
type batchResponse struct {
	Results   []scraper.Result `json:"results"`
	Total     int              `json:"total"`
	Completed int              `json:"completed"`
	Failed    int              `json:"failed"`
}

func newBatchResponse(results []scraper.Result) batchResponse {
	resp := batchResponse{Results: results, Total: len(results)}
	if resp.Results == nil {
		resp.Results = []scraper.Result{}
	}
	for _, res := range results {
		if res.Succeeded() {
			resp.Completed++
		} else {
			resp.Failed++
		}
	}
	return resp
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}
