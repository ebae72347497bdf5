package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tendant/simple-generation-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-generation-pipeline/internal/executors"
	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

// Runner executes jobs synchronously and through the durable queue
type Runner interface {
	Run(ctx context.Context, req pipeline.ProcessRequest) (*pipeline.JobResult, error)
	RunAsync(ctx context.Context, req pipeline.ProcessRequest) (string, error)
	GetStatus(ctx context.Context, runID string) (*executors.JobStatus, error)
}

// DedupeRecorder counts submissions per job id
type DedupeRecorder interface {
	Record(ctx context.Context, jobID string, modelName string) (int, error)
	GetSeenCount(ctx context.Context, jobID string) (int, error)
}

// NamedStarter enqueues jobs for workflows registered by name
type NamedStarter interface {
	StartWorkflowByName(ctx context.Context, workflowName string, req pipeline.ProcessRequest) (string, error)
}

// Handler serves the job API
type Handler struct {
	runner  Runner
	dedupe  DedupeRecorder
	starter NamedStarter
	mode    string
	logger  *log.Logger
}

// Option configures a Handler
type Option func(*Handler)

// WithDedupe records submissions in the dedupe ledger
func WithDedupe(d DedupeRecorder) Option {
	return func(h *Handler) { h.dedupe = d }
}

// WithNamedStarter enables POST /v1/workflows/{name}/start
func WithNamedStarter(s NamedStarter) Option {
	return func(h *Handler) { h.starter = s }
}

// WithMode sets the mode reported by /health
func WithMode(mode string) Option {
	return func(h *Handler) { h.mode = mode }
}

// WithLogger sets the handler logger
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler creates the job API handler
func NewHandler(runner Runner, opts ...Option) *Handler {
	h := &Handler{
		runner: runner,
		mode:   "worker",
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HandleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", h.HandleSubmit)
		r.Post("/jobs/run", h.HandleRun)
		r.Get("/jobs/{runID}", h.HandleStatus)
		r.Post("/workflows/{name}/start", h.HandleStartByName)
	})

	return r
}

// HandleHealth returns health status
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"mode":   h.mode,
	})
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (pipeline.ProcessRequest, bool) {
	var req pipeline.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return req, false
	}
	if len(req.Job) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("job is required"))
		return req, false
	}
	if req.Job.String(pipeline.FieldModelName) == "" {
		writeError(w, http.StatusBadRequest, errors.New("job.model_name is required"))
		return req, false
	}
	return req, true
}

// statusFor maps a job error to an HTTP status
func statusFor(err error) int {
	switch {
	case executors.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, dbosruntime.ErrWorkflowNotFound):
		return http.StatusNotFound
	case errors.Is(err, executors.ErrRuntimeUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
