package executors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/google/uuid"

	"github.com/tendant/simple-generation-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

const workflowIDPrefix = "job-"

// ErrRuntimeUnavailable is returned by async operations when DBOS is not configured
var ErrRuntimeUnavailable = errors.New("DBOS runtime not initialized")

// JobOutcome is the durable summary recorded for an async job
type JobOutcome struct {
	RunID  string
	Handle string
	Slots  []string
	NSFW   bool
}

// JobStatus represents the status of an async job
type JobStatus struct {
	RunID     string    `json:"run_id"`
	State     string    `json:"state"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// DedupeSeenCount is how often the job id was submitted, when known
	DedupeSeenCount int `json:"dedupe_seen_count,omitempty"`
}

// JobRunner executes job flows synchronously or through the DBOS queue
type JobRunner struct {
	executor    *JobExecutor
	dbosRuntime *dbosruntime.Runtime
	logger      *log.Logger
}

// NewJobRunner creates a runner. Without a DBOS runtime only Run is available.
func NewJobRunner(executor *JobExecutor, dbosRuntime *dbosruntime.Runtime, logger *log.Logger) *JobRunner {
	if logger == nil {
		logger = log.Default()
	}
	runner := &JobRunner{
		executor:    executor,
		dbosRuntime: dbosRuntime,
		logger:      logger,
	}

	// Register the DBOS workflow function
	if dbosRuntime != nil {
		dbos.RegisterWorkflow(dbosRuntime.Context(), runner.executeJobDBOS)
	}

	return runner
}

// Run executes a job flow in the calling goroutine
func (r *JobRunner) Run(ctx context.Context, req pipeline.ProcessRequest) (*pipeline.JobResult, error) {
	return r.executor.Execute(ctx, uuid.NewString(), req)
}

// RunAsync enqueues a job flow for durable execution. Requests that carry a
// job id map to a stable workflow id so resubmissions attach to the first run.
func (r *JobRunner) RunAsync(ctx context.Context, req pipeline.ProcessRequest) (string, error) {
	if r.dbosRuntime == nil {
		return "", ErrRuntimeUnavailable
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	handle, err := dbos.RunWorkflow[[]byte, *JobOutcome](
		r.dbosRuntime.Context(),
		r.executeJobDBOS,
		payload,
		dbos.WithWorkflowID(WorkflowID(req)),
		dbos.WithQueue(r.dbosRuntime.QueueName()),
	)
	if err != nil {
		return "", err
	}

	return handle.GetWorkflowID(), nil
}

// WorkflowID derives the durable workflow id for req
func WorkflowID(req pipeline.ProcessRequest) string {
	if req.JobID != "" {
		return workflowIDPrefix + req.JobID
	}
	return workflowIDPrefix + uuid.NewString()
}

// JobIDFromRunID reverses WorkflowID
func JobIDFromRunID(runID string) (string, bool) {
	jobID, ok := strings.CutPrefix(runID, workflowIDPrefix)
	return jobID, ok && jobID != ""
}

// executeJobDBOS is the DBOS workflow function wrapping the job flow
func (r *JobRunner) executeJobDBOS(dbosCtx dbos.DBOSContext, payload []byte) (*JobOutcome, error) {
	var req pipeline.ProcessRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}

	workflowID, err := dbosCtx.GetWorkflowID()
	if err != nil {
		return nil, err
	}

	// DBOSContext implements context.Context
	result, err := r.executor.Execute(dbosCtx, workflowID, req)
	if err != nil {
		return nil, err
	}

	outcome := &JobOutcome{RunID: workflowID, Handle: result.Handle, NSFW: result.NSFW}
	for slot := range result.Results {
		outcome.Slots = append(outcome.Slots, slot)
	}
	return outcome, nil
}

// GetStatus reads the state of an async job from the DBOS status table
func (r *JobRunner) GetStatus(ctx context.Context, runID string) (*JobStatus, error) {
	if r.dbosRuntime == nil {
		return nil, ErrRuntimeUnavailable
	}

	info, err := r.dbosRuntime.GetWorkflowStatus(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &JobStatus{
		RunID:     info.WorkflowUUID,
		State:     info.Status,
		Name:      info.Name,
		CreatedAt: time.UnixMilli(info.CreatedAt),
		UpdatedAt: time.UnixMilli(info.UpdatedAt),
	}, nil
}

// Async reports whether durable execution is available
func (r *JobRunner) Async() bool {
	return r.dbosRuntime != nil
}
