package dbosruntime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	_ "github.com/lib/pq"
)

// Runtime owns the durable generation queue: the DBOS context job flows are
// registered on, the queue that bounds how many jobs a worker runs, and a
// plain SQL handle on the system database.
type Runtime struct {
	dbosContext dbos.DBOSContext
	jobs        dbos.WorkflowQueue
	config      Config
	db          *sql.DB
}

// NewRuntime connects to the system database and declares the job queue.
// Job flows must be registered on Context() before Launch.
func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	if !cfg.Enabled() {
		return nil, errors.New("DBOS_SYSTEM_DATABASE_URL is required")
	}
	cfg.WithDefaults()

	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DBOS context: %w", err)
	}

	// Jobs hold a GPU for their whole run, so the queue bounds worker concurrency
	jobs := dbos.NewWorkflowQueue(dbosCtx, cfg.QueueName, dbos.WithWorkerConcurrency(cfg.Concurrency))

	// Status lookups, by-name starts and the dedupe ledger share this handle
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach system database: %w", err)
	}

	return &Runtime{
		dbosContext: dbosCtx,
		jobs:        jobs,
		config:      cfg,
		db:          db,
	}, nil
}

// Launch starts dequeuing jobs and recovers flows interrupted by a crash
func (r *Runtime) Launch() error {
	return dbos.Launch(r.dbosContext)
}

// Shutdown waits up to timeout for running jobs, then closes the database handle
func (r *Runtime) Shutdown(timeout time.Duration) error {
	dbos.Shutdown(r.dbosContext, timeout)
	if r.db == nil {
		return nil
	}
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close system database: %w", err)
	}
	return nil
}

// Context is the DBOS context job flows are registered and enqueued on
func (r *Runtime) Context() dbos.DBOSContext {
	return r.dbosContext
}

// DB is the system database handle
func (r *Runtime) DB() *sql.DB {
	return r.db
}

// QueueName is the queue jobs are enqueued on
func (r *Runtime) QueueName() string {
	return r.config.QueueName
}

// Concurrency is how many jobs this worker runs at once
func (r *Runtime) Concurrency() int {
	return r.config.Concurrency
}
