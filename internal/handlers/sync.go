package handlers

import (
	"net/http"
)

// HandleRun handles POST /v1/jobs/run - runs the job in the request and
// returns the result envelopes
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.runner.Run(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
