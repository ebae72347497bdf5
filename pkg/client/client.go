package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

// Client is an HTTP client for the pipeline worker job API
type Client struct {
	http *resty.Client
}

// Status is the state of an enqueued job
type Status struct {
	RunID     string    `json:"run_id"`
	State     string    `json:"state"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

// New creates a new pipeline client
func New(baseURL string) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: 30 * time.Second})
}

// NewWithHTTPClient creates a new pipeline client with a custom HTTP client.
// Run waits for the job to finish, so its timeout should cover engine time.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		http: resty.NewWithClient(httpClient).
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json"),
	}
}

// Submit enqueues a job on the worker
func (c *Client) Submit(ctx context.Context, req pipeline.ProcessRequest) (*pipeline.ProcessResponse, error) {
	var out pipeline.ProcessResponse
	if err := c.post(ctx, "/v1/jobs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Run executes a job synchronously and returns its result envelopes
func (c *Client) Run(ctx context.Context, req pipeline.ProcessRequest) (*pipeline.JobResult, error) {
	var out pipeline.JobResult
	if err := c.post(ctx, "/v1/jobs/run", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartWorkflow enqueues a job for a workflow registered by name
func (c *Client) StartWorkflow(ctx context.Context, name string, req pipeline.ProcessRequest) (*pipeline.ProcessResponse, error) {
	var out pipeline.ProcessResponse
	if err := c.post(ctx, "/v1/workflows/"+name+"/start", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the state of an enqueued job
func (c *Client) Status(ctx context.Context, runID string) (*Status, error) {
	var out Status
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("runID", runID).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v1/jobs/{runID}")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Error}
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Error}
	}
	return nil
}
