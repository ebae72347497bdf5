package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.ProcessRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(pipeline.ProcessResponse{RunID: "job-" + req.JobID, DedupeSeenCount: 1})
	})
	mux.HandleFunc("POST /v1/jobs/run", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid job: model_name is required"}`))
	})
	mux.HandleFunc("GET /v1/jobs/{runID}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"run_id": r.PathValue("runID"), "state": "PENDING"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Submit(t *testing.T) {
	c := New(newServer(t).URL)

	resp, err := c.Submit(context.Background(), pipeline.ProcessRequest{
		JobID: "j1",
		Job:   pipeline.Job{"model_name": "m", "prompt": "cat"},
	})
	require.NoError(t, err)
	assert.Equal(t, "job-j1", resp.RunID)
	assert.Equal(t, 1, resp.DedupeSeenCount)
}

func TestClient_RunError(t *testing.T) {
	c := New(newServer(t).URL)

	_, err := c.Run(context.Background(), pipeline.ProcessRequest{Job: pipeline.Job{"prompt": "cat"}})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "model_name")
}

func TestClient_Status(t *testing.T) {
	c := New(newServer(t).URL)

	status, err := c.Status(context.Background(), "job-j1")
	require.NoError(t, err)
	assert.Equal(t, "job-j1", status.RunID)
	assert.Equal(t, "PENDING", status.State)
}
