package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tendant/simple-content/pkg/simplecontent/presets"

	"github.com/tendant/simple-generation-pipeline/internal/config"
	"github.com/tendant/simple-generation-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-generation-pipeline/internal/dedupe"
	"github.com/tendant/simple-generation-pipeline/internal/engine"
	"github.com/tendant/simple-generation-pipeline/internal/executors"
	"github.com/tendant/simple-generation-pipeline/internal/media"
	"github.com/tendant/simple-generation-pipeline/internal/registry"
	"github.com/tendant/simple-generation-pipeline/internal/storage"
	"github.com/tendant/simple-generation-pipeline/internal/workflows"
)

// App holds the wired job pipeline
type App struct {
	Runner  *executors.JobRunner
	Runtime *dbosruntime.Runtime
	Dedupe  *dedupe.Tracker
	Engine  *engine.HTTPEngine
	Router  *workflows.Router

	cleanups []func()
	logger   *log.Logger
}

// Options selects which parts of the pipeline are built
type Options struct {
	// Durable enables the DBOS runtime. It requires DBOS_SYSTEM_DATABASE_URL.
	Durable bool

	// FileInputs serves file:// inputs from the storage directory
	FileInputs bool
}

// New wires sources, the fetcher, the router, the engine and the runner from cfg.
// Launch must be called after New when the app is durable.
func New(ctx context.Context, cfg *config.Config, opts Options, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	a := &App{logger: logger}

	eng := engine.NewHTTPEngine(cfg.EngineURL, cfg.EngineTimeout, logger)
	engines := engine.NewRegistry()
	eng.RegisterAll(engines)
	a.Engine = eng

	httpSource := media.NewHTTPSource(cfg.FetchTimeout)
	fetchOpts := []media.Option{
		media.WithSource("http", httpSource),
		media.WithSource("https", httpSource),
		media.WithPreprocessor(eng),
		media.WithMaxBytes(cfg.MaxInputImageBytes),
		media.WithLogger(logger),
	}

	var execOpts []executors.Option
	if cfg.ContentAPIURL != "" {
		logger.Info("Using simple-content HTTP API", "url", cfg.ContentAPIURL)
		fetchOpts = append(fetchOpts, media.WithSource(storage.SchemeContent,
			storage.NewHTTPContentSource(cfg.ContentAPIURL, cfg.FetchTimeout)))
		execOpts = append(execOpts, executors.WithResultSink(
			storage.NewHTTPDerivedWriter(cfg.ContentAPIURL, cfg.FetchTimeout)))
	} else {
		logger.Info("Using embedded simple-content service", "storage_dir", cfg.StorageDir)
		svc, cleanup, err := presets.NewDevelopment(presets.WithDevStorage(cfg.StorageDir))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize simple-content service: %w", err)
		}
		a.cleanups = append(a.cleanups, cleanup)
		fetchOpts = append(fetchOpts, media.WithSource(storage.SchemeContent, storage.NewContentSource(svc)))
		execOpts = append(execOpts, executors.WithResultSink(storage.NewDerivedWriter(svc)))
	}

	if opts.FileInputs {
		files, err := storage.NewFileSource(cfg.StorageDir)
		if err != nil {
			a.Close()
			return nil, err
		}
		fetchOpts = append(fetchOpts, media.WithSource(storage.SchemeFile, files))
	}

	fetcher := media.NewFetcher(fetchOpts...)
	a.Router = workflows.NewRouter(fetcher, registry.Default(), logger)
	executor := executors.NewJobExecutor(a.Router, engines, append(execOpts, executors.WithLogger(logger))...)

	if opts.Durable {
		if !cfg.DBOS.Enabled() {
			a.Close()
			return nil, fmt.Errorf("%w: DBOS_SYSTEM_DATABASE_URL is required", executors.ErrRuntimeUnavailable)
		}
		runtime, err := dbosruntime.NewRuntime(ctx, cfg.DBOS)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
		}
		a.Runtime = runtime

		tracker, err := dedupe.NewTracker(ctx, runtime.DB(), logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize dedupe ledger: %w", err)
		}
		a.Dedupe = tracker
	}

	// Registers the DBOS workflow when the runtime is set
	a.Runner = executors.NewJobRunner(executor, a.Runtime, logger)

	logger.Info("Pipeline wired",
		"engine", cfg.EngineURL,
		"handles", len(engines.Handles()),
		"rules", a.Router.RuleNames(),
		"durable", a.Runtime != nil)
	return a, nil
}

// Launch starts the DBOS queue workers. It is a no-op without a runtime.
func (a *App) Launch() error {
	if a.Runtime == nil {
		return nil
	}
	if err := a.Runtime.Launch(); err != nil {
		return fmt.Errorf("failed to launch DBOS: %w", err)
	}
	a.logger.Info("DBOS runtime launched",
		"queue", a.Runtime.QueueName(),
		"concurrency", a.Runtime.Concurrency())
	return nil
}

// Shutdown stops the runtime and releases embedded services
func (a *App) Shutdown(timeout time.Duration) {
	if a.Runtime != nil {
		if err := a.Runtime.Shutdown(timeout); err != nil {
			a.logger.Warn("DBOS shutdown failed", "err", err)
		}
	}
	a.Close()
}

// Close releases embedded services
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}
