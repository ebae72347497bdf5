package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tendant/simple-generation-pipeline/internal/app"
	"github.com/tendant/simple-generation-pipeline/internal/config"
	"github.com/tendant/simple-generation-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-generation-pipeline/internal/executors"
	"github.com/tendant/simple-generation-pipeline/pkg/pipeline"
)

// Config holds the configuration for initializing the pipeline runner
type Config struct {
	DatabaseURL        string        // DBOS PostgreSQL connection string
	AppName            string        // Application name for DBOS
	QueueName          string        // DBOS queue name
	Concurrency        int           // Number of concurrent jobs
	ApplicationVersion string        // Optional: Override binary hash for version matching
	EngineURL          string        // Base URL of the inference sidecar
	EngineTimeout      time.Duration // Optional: per-job engine timeout
	ContentAPIURL      string        // Optional: URL of the content API server
	StorageDir         string        // Optional: embedded content storage directory
	Logger             *log.Logger   // Optional: defaults to log.Default()
}

// Status is the state of an enqueued job
type Status = executors.JobStatus

// Runner provides a high-level API for running generation jobs via DBOS
type Runner struct {
	app *app.App
}

// New creates and initializes a new pipeline runner with DBOS integration
func New(ctx context.Context, cfg Config) (*Runner, error) {
	base, err := config.Parse()
	if err != nil {
		return nil, err
	}
	base.DBOS = dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		QueueName:          cfg.QueueName,
		Concurrency:        cfg.Concurrency,
		ApplicationVersion: cfg.ApplicationVersion,
	}
	base.DBOS.WithDefaults()
	if cfg.EngineURL != "" {
		base.EngineURL = cfg.EngineURL
	}
	if cfg.EngineTimeout > 0 {
		base.EngineTimeout = cfg.EngineTimeout
	}
	if cfg.ContentAPIURL != "" {
		base.ContentAPIURL = cfg.ContentAPIURL
	}
	if cfg.StorageDir != "" {
		base.StorageDir = cfg.StorageDir
	}

	a, err := app.New(ctx, base, app.Options{Durable: true}, cfg.Logger)
	if err != nil {
		return nil, err
	}

	// Launch DBOS (must be after workflow registration)
	if err := a.Launch(); err != nil {
		a.Shutdown(5 * time.Second)
		return nil, err
	}

	return &Runner{app: a}, nil
}

// Submit enqueues a job and returns its run id. Resubmitting the same job id
// returns the run id of the first submission.
func (r *Runner) Submit(ctx context.Context, jobID string, job pipeline.Job) (string, error) {
	return r.app.Runner.RunAsync(ctx, pipeline.ProcessRequest{JobID: jobID, Job: job})
}

// SubmitForContent enqueues a job whose results are stored as derived
// content of contentID
func (r *Runner) SubmitForContent(ctx context.Context, jobID, contentID string, job pipeline.Job) (string, error) {
	return r.app.Runner.RunAsync(ctx, pipeline.ProcessRequest{JobID: jobID, ContentID: contentID, Job: job})
}

// SubmitExternal enqueues a job for a workflow registered by name in
// another DBOS application sharing the system database
func (r *Runner) SubmitExternal(ctx context.Context, workflowName string, jobID string, job pipeline.Job) (string, error) {
	return r.app.Runtime.StartWorkflowByName(ctx, workflowName, pipeline.ProcessRequest{JobID: jobID, Job: job})
}

// Run executes a job in the calling goroutine and returns its envelopes
func (r *Runner) Run(ctx context.Context, job pipeline.Job) (*pipeline.JobResult, error) {
	result, err := r.app.Runner.Run(ctx, pipeline.ProcessRequest{Job: job})
	if err != nil {
		return nil, fmt.Errorf("job failed: %w", err)
	}
	return result, nil
}

// Status returns the state of an enqueued job
func (r *Runner) Status(ctx context.Context, runID string) (*Status, error) {
	return r.app.Runner.GetStatus(ctx, runID)
}

// Shutdown gracefully shuts down the pipeline runner
func (r *Runner) Shutdown(timeoutSeconds int) {
	if r.app != nil {
		r.app.Shutdown(time.Duration(timeoutSeconds) * time.Second)
	}
}
