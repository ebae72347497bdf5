package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-generation-pipeline/internal/executors"
	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

// HandleSubmit handles POST /v1/jobs - enqueues a job and returns immediately
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	// Count resubmissions of the same job id
	seen := 0
	if h.dedupe != nil && req.JobID != "" {
		count, err := h.dedupe.Record(r.Context(), req.JobID, req.Job.String(pipeline.FieldModelName))
		if err != nil {
			h.logger.Warn("Dedupe record failed", "job_id", req.JobID, "err", err)
		} else {
			seen = count
		}
	}

	runID, err := h.runner.RunAsync(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to enqueue job", "job_id", req.JobID, "err", err)
		writeError(w, statusFor(err), err)
		return
	}

	h.logger.Info("Job enqueued", "run_id", runID, "job_id", req.JobID, "seen_count", seen)
	writeJSON(w, http.StatusAccepted, pipeline.ProcessResponse{
		RunID:           runID,
		DedupeSeenCount: seen,
	})
}

// HandleStatus handles GET /v1/jobs/{runID} - returns the async job status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, errors.New("run_id is required"))
		return
	}

	status, err := h.runner.GetStatus(r.Context(), runID)
	if err != nil {
		h.logger.Debug("Status lookup failed", "run_id", runID, "err", err)
		writeError(w, statusFor(err), err)
		return
	}

	if jobID, ok := executors.JobIDFromRunID(runID); ok && h.dedupe != nil {
		count, err := h.dedupe.GetSeenCount(r.Context(), jobID)
		if err != nil {
			h.logger.Warn("Dedupe lookup failed", "job_id", jobID, "err", err)
		} else {
			status.DedupeSeenCount = count
		}
	}

	writeJSON(w, http.StatusOK, status)
}

// HandleStartByName handles POST /v1/workflows/{name}/start - enqueues the
// job for a workflow registered by name in another DBOS worker
func (h *Handler) HandleStartByName(w http.ResponseWriter, r *http.Request) {
	if h.starter == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("start by name requires the DBOS runtime"))
		return
	}

	name := chi.URLParam(r, "name")
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	runID, err := h.starter.StartWorkflowByName(r.Context(), name, req)
	if err != nil {
		h.logger.Error("Failed to start workflow by name", "workflow", name, "err", err)
		writeError(w, statusFor(err), err)
		return
	}

	h.logger.Info("Workflow started by name", "workflow", name, "run_id", runID)
	writeJSON(w, http.StatusAccepted, pipeline.ProcessResponse{RunID: runID})
}
