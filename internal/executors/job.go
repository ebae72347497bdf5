package executors

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/mapstructure"

	"github.com/tendant/simple-generation-pipeline/internal/engine"
	"github.com/tendant/simple-generation-pipeline/internal/metrics"
	"github.com/tendant/simple-generation-pipeline/internal/output"
	"github.com/tendant/simple-generation-pipeline/internal/workflows"
	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

// DefaultIntermediateEvery is how many inference steps pass between previews
const DefaultIntermediateEvery = 5

// ArgCallbackSteps tells engines how often to emit previews
const ArgCallbackSteps = "callback_steps"

// Job status labels
const (
	StatusSucceeded = "succeeded"
	StatusInvalid   = "invalid"
	StatusFailed    = "failed"
)

// ResultSink persists the envelopes of a finished job
type ResultSink interface {
	Store(ctx context.Context, contentID string, result *pipeline.JobResult) error
}

// JobExecutor runs one job flow: route, normalize, run the engine and
// assemble the result envelopes.
type JobExecutor struct {
	router  *workflows.Router
	engines *engine.Registry
	sink    ResultSink
	logger  *log.Logger
}

// Option configures a JobExecutor
type Option func(*JobExecutor)

// WithResultSink stores results of jobs that carry a content id
func WithResultSink(sink ResultSink) Option {
	return func(e *JobExecutor) { e.sink = sink }
}

// WithLogger sets the executor logger
func WithLogger(logger *log.Logger) Option {
	return func(e *JobExecutor) { e.logger = logger }
}

// NewJobExecutor creates a new job executor
func NewJobExecutor(router *workflows.Router, engines *engine.Registry, opts ...Option) *JobExecutor {
	e := &JobExecutor{
		router:  router,
		engines: engines,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the job flow for req. A failure anywhere aborts the job and
// no partial result is returned.
func (e *JobExecutor) Execute(ctx context.Context, runID string, req pipeline.ProcessRequest) (*pipeline.JobResult, error) {
	start := time.Now()
	logger := e.logger.With("run_id", runID)
	logger.Info("Starting job", "job_id", req.JobID, "model", req.Job.String(pipeline.FieldModelName))

	handle := "unrouted"
	result, err := e.execute(ctx, logger, runID, req, &handle)

	status := StatusSucceeded
	switch {
	case err != nil && IsValidationError(err):
		status = StatusInvalid
	case err != nil:
		status = StatusFailed
	}
	metrics.JobsTotal.WithLabelValues(handle, status).Inc()
	metrics.JobDuration.WithLabelValues(handle).Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error("Job failed", "handle", handle, "status", status, "err", err)
		return nil, err
	}
	logger.Info("Job completed", "handle", handle, "slots", len(result.Results), "duration", time.Since(start))
	return result, nil
}

func (e *JobExecutor) execute(ctx context.Context, logger *log.Logger, runID string, req pipeline.ProcessRequest, handle *string) (*pipeline.JobResult, error) {
	if len(req.Job) == 0 {
		return nil, fmt.Errorf("%w: empty job", workflows.ErrInvalidJob)
	}

	// Step 1: Pop output selection, the engines never see it
	job := req.Job.Clone()
	slots, contentType, err := popOutputSelection(job)
	if err != nil {
		return nil, err
	}

	// Step 2: Route and normalize
	dispatch, err := e.router.Normalize(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	*handle = string(dispatch.Handle)

	eng, err := e.engines.Lookup(dispatch.Handle)
	if err != nil {
		return nil, err
	}

	// Step 3: Run the engine with a processor owned by this flow
	proc := output.NewProcessor(slots, contentType)
	if proc.NeedIntermediates() {
		dispatch.Args[ArgCallbackSteps] = DefaultIntermediateEvery
	}

	res, err := eng.Run(ctx, dispatch.Args, proc)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", dispatch.Handle, err)
	}

	// Step 4: Assemble envelopes
	proc.AddOutputs(res.Images...)
	if res.Text != nil {
		proc.AddText(*res.Text)
	}
	for slot, images := range res.OtherOutputs {
		proc.AddOtherOutputs(slot, images)
	}

	results, err := proc.GetResults()
	if err != nil {
		return nil, fmt.Errorf("assemble results: %w", err)
	}

	jobResult := &pipeline.JobResult{
		RunID:   runID,
		Handle:  string(dispatch.Handle),
		Results: results,
		NSFW:    res.NSFW(),
	}
	if jobResult.NSFW {
		logger.Warn("Output flagged as NSFW", "handle", dispatch.Handle)
	}

	// Step 5: Persist when the job is attached to content
	if e.sink != nil && req.ContentID != "" {
		if err := e.sink.Store(ctx, req.ContentID, jobResult); err != nil {
			return nil, fmt.Errorf("store results: %w", err)
		}
		logger.Info("Stored results", "content_id", req.ContentID)
	}

	return jobResult, nil
}

// popOutputSelection removes the outputs and content_type keys from job
func popOutputSelection(job pipeline.Job) ([]string, string, error) {
	var slots []string
	if raw, ok := job[pipeline.FieldOutputs]; ok && raw != nil {
		if err := mapstructure.WeakDecode(raw, &slots); err != nil {
			return nil, "", fmt.Errorf("%w: outputs: %v", workflows.ErrInvalidJob, err)
		}
	}
	contentType := job.String(pipeline.FieldContentType)
	delete(job, pipeline.FieldOutputs)
	delete(job, pipeline.FieldContentType)
	return slots, contentType, nil
}
