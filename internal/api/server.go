package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-ingest/internal/app"
	"github.com/JakeFAU/job-listing-ingest/internal/id/uuid"
	"github.com/JakeFAU/job-listing-ingest/internal/jobs"
	"github.com/JakeFAU/job-listing-ingest/internal/metrics"
)

const (
	defaultPendingLimit = jobs.DefaultPendingLimit
	maxPendingLimit     = 100
)

// Runner executes ingestion phases on behalf of the API.
type Runner interface {
	RunList(ctx context.Context, terms []string) (jobs.RunSummary, error)
	RunDetail(ctx context.Context) (jobs.RunSummary, error)
	Pending(ctx context.Context, limit int) ([]jobs.PendingItem, error)
}

// Server wires HTTP handlers to the runner.
type Server struct {
	router chi.Router
	runner Runner
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner: runner,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/pending", s.listPending)
		r.Route("/runs", func(r chi.Router) {
			r.Post("/list", s.runList)
			r.Post("/detail", s.runDetail)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	limit := defaultPendingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxPendingLimit)
	}
	items, err := s.runner.Pending(r.Context(), limit)
	if err != nil {
		s.logger.Error("list pending failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list pending listings")
		return
	}
	if items == nil {
		items = []jobs.PendingItem{}
	}
	s.writeJSON(w, http.StatusOK, pendingResponse{Count: len(items), Items: items})
}

func (s *Server) runList(w http.ResponseWriter, r *http.Request) {
	var req listRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	summary, err := s.runner.RunList(runContext(r), req.SearchTerms)
	s.writeRun(w, summary, err)
}

func (s *Server) runDetail(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.RunDetail(runContext(r))
	s.writeRun(w, summary, err)
}

func (s *Server) writeRun(w http.ResponseWriter, summary jobs.RunSummary, err error) {
	switch {
	case errors.Is(err, app.ErrBusy):
		s.writeError(w, http.StatusConflict, err.Error())
	case err != nil && summary.RunID == "":
		s.writeError(w, http.StatusInternalServerError, err.Error())
	case err != nil:
		// The run started and failed; the summary carries the error text.
		s.writeJSON(w, http.StatusInternalServerError, summary)
	default:
		s.writeJSON(w, http.StatusOK, summary)
	}
}

// runContext keeps a run going after the client disconnects.
func runContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

type listRunRequest struct {
	SearchTerms []string `json:"search_terms"`
}

type pendingResponse struct {
	Count int                `json:"count"`
	Items []jobs.PendingItem `json:"items"`
}

type requestIDKey struct{}

var requestIDs = uuid.New()

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = requestIDs.MustID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the id assigned by the request-id middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", RequestID(r.Context())),
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
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
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

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
