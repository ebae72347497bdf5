package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-generation-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-generation-pipeline/internal/executors"
	"github.com/tendant/simple-generation-pipeline/internal/workflows"
	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

type fakeRunner struct {
	submitted []pipeline.ProcessRequest
	runErr    error
	asyncErr  error
	statusErr error
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.ProcessRequest) (*pipeline.JobResult, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &pipeline.JobResult{
		RunID:  "run-sync",
		Handle: "diffusion",
		Results: map[string]pipeline.ResultEnvelope{
			"primary": {Blob: []byte{0xff, 0xd8}, ContentType: "image/jpeg", Thumbnail: []byte{1}, SHA256Hash: "abc"},
		},
	}, nil
}

func (f *fakeRunner) RunAsync(_ context.Context, req pipeline.ProcessRequest) (string, error) {
	if f.asyncErr != nil {
		return "", f.asyncErr
	}
	f.submitted = append(f.submitted, req)
	return "job-" + req.JobID, nil
}

func (f *fakeRunner) GetStatus(_ context.Context, runID string) (*executors.JobStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &executors.JobStatus{RunID: runID, State: "SUCCESS"}, nil
}

type fakeDedupe struct{ counts map[string]int }

func (d *fakeDedupe) Record(_ context.Context, jobID, _ string) (int, error) {
	d.counts[jobID]++
	return d.counts[jobID], nil
}

func (d *fakeDedupe) GetSeenCount(_ context.Context, jobID string) (int, error) {
	return d.counts[jobID], nil
}

type fakeStarter struct{ names []string }

func (s *fakeStarter) StartWorkflowByName(_ context.Context, name string, req pipeline.ProcessRequest) (string, error) {
	s.names = append(s.names, name)
	return name + "-" + req.JobID, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const validJob = `{"job_id":"j1","job":{"model_name":"m","prompt":"cat"}}`

func TestHealth(t *testing.T) {
	rec := do(t, NewHandler(&fakeRunner{}, WithMode("standalone")).Routes(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","mode":"standalone"}`, rec.Body.String())
}

func TestSubmit(t *testing.T) {
	runner := &fakeRunner{}
	dedupe := &fakeDedupe{counts: map[string]int{}}
	routes := NewHandler(runner, WithDedupe(dedupe)).Routes()

	rec := do(t, routes, http.MethodPost, "/v1/jobs", validJob)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp pipeline.ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-j1", resp.RunID)
	assert.Equal(t, 1, resp.DedupeSeenCount)

	rec = do(t, routes, http.MethodPost, "/v1/jobs", validJob)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.DedupeSeenCount)

	require.Len(t, runner.submitted, 2)
	assert.Equal(t, "cat", runner.submitted[0].Job["prompt"])
}

func TestSubmit_BadRequests(t *testing.T) {
	routes := NewHandler(&fakeRunner{}).Routes()
	for name, body := range map[string]string{
		"malformed":     `{"job":`,
		"missing job":   `{"job_id":"j1"}`,
		"missing model": `{"job":{"prompt":"cat"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, routes, http.MethodPost, "/v1/jobs", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestSubmit_RuntimeUnavailable(t *testing.T) {
	routes := NewHandler(&fakeRunner{asyncErr: executors.ErrRuntimeUnavailable}).Routes()
	rec := do(t, routes, http.MethodPost, "/v1/jobs", validJob)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatus(t *testing.T) {
	routes := NewHandler(&fakeRunner{}).Routes()
	rec := do(t, routes, http.MethodGet, "/v1/jobs/job-j1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status executors.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "job-j1", status.RunID)
	assert.Equal(t, "SUCCESS", status.State)
}

func TestStatus_DedupeSeenCount(t *testing.T) {
	dedupe := &fakeDedupe{counts: map[string]int{}}
	routes := NewHandler(&fakeRunner{}, WithDedupe(dedupe)).Routes()

	do(t, routes, http.MethodPost, "/v1/jobs", validJob)
	do(t, routes, http.MethodPost, "/v1/jobs", validJob)

	rec := do(t, routes, http.MethodGet, "/v1/jobs/job-j1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status executors.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 2, status.DedupeSeenCount)

	rec = do(t, routes, http.MethodGet, "/v1/jobs/other-run", "")
	assert.NotContains(t, rec.Body.String(), "dedupe_seen_count")
}

func TestStatus_NotFound(t *testing.T) {
	err := fmt.Errorf("%w: job-x", dbosruntime.ErrWorkflowNotFound)
	routes := NewHandler(&fakeRunner{statusErr: err}).Routes()
	rec := do(t, routes, http.MethodGet, "/v1/jobs/job-x", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRun(t *testing.T) {
	routes := NewHandler(&fakeRunner{}).Routes()
	rec := do(t, routes, http.MethodPost, "/v1/jobs/run", validJob)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	primary := body["results"].(map[string]any)["primary"].(map[string]any)
	assert.Equal(t, "/9g=", primary["blob"])
	assert.Equal(t, "abc", primary["sha256_hash"])
	assert.Equal(t, "image/jpeg", primary["content_type"])
}

func TestRun_ErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("normalize: %w", workflows.ErrImageSizeLimit), http.StatusBadRequest},
		{errors.New("engine exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		routes := NewHandler(&fakeRunner{runErr: tt.err}).Routes()
		rec := do(t, routes, http.MethodPost, "/v1/jobs/run", validJob)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
		assert.Contains(t, rec.Body.String(), tt.err.Error())
	}
}

func TestStartByName(t *testing.T) {
	starter := &fakeStarter{}
	routes := NewHandler(&fakeRunner{}, WithNamedStarter(starter)).Routes()

	rec := do(t, routes, http.MethodPost, "/v1/workflows/generate_image/start", validJob)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"generate_image"}, starter.names)
	assert.Contains(t, rec.Body.String(), "generate_image-j1")
}

func TestStartByName_Unavailable(t *testing.T) {
	routes := NewHandler(&fakeRunner{}).Routes()
	rec := do(t, routes, http.MethodPost, "/v1/workflows/generate_image/start", validJob)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
