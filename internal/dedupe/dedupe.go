package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// Tracker counts repeated submissions of the same job id
type Tracker struct {
	db     *sql.DB
	logger *log.Logger
}

// NewTracker creates a new dedupe tracker
func NewTracker(ctx context.Context, db *sql.DB, logger *log.Logger) (*Tracker, error) {
	if logger == nil {
		logger = log.Default()
	}
	tracker := &Tracker{db: db, logger: logger}

	if err := tracker.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure dedupe table: %w", err)
	}

	return tracker, nil
}

// ensureTable creates the job_dedupe table if it doesn't exist
func (t *Tracker) ensureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS job_dedupe (
			job_id TEXT PRIMARY KEY,
			model_name TEXT,
			first_seen_at TIMESTAMPTZ DEFAULT NOW(),
			last_seen_at TIMESTAMPTZ DEFAULT NOW(),
			seen_count INTEGER DEFAULT 1
		)
	`

	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create job_dedupe table: %w", err)
	}

	t.logger.Debug("job_dedupe table ready")
	return nil
}

// Record records a job submission and returns how often the id was seen
func (t *Tracker) Record(ctx context.Context, jobID string, modelName string) (int, error) {
	query := `
		INSERT INTO job_dedupe (job_id, model_name, first_seen_at, last_seen_at, seen_count)
		VALUES ($1, $2, NOW(), NOW(), 1)
		ON CONFLICT (job_id) DO UPDATE
		SET last_seen_at = NOW(),
		    seen_count = job_dedupe.seen_count + 1,
		    model_name = EXCLUDED.model_name
		RETURNING seen_count
	`

	var seenCount int
	if err := t.db.QueryRowContext(ctx, query, jobID, modelName).Scan(&seenCount); err != nil {
		return 0, fmt.Errorf("failed to record dedupe: %w", err)
	}
	if seenCount > 1 {
		t.logger.Info("Duplicate job submission", "job_id", jobID, "seen_count", seenCount)
	}

	return seenCount, nil
}

// GetSeenCount retrieves the seen count for a job id
func (t *Tracker) GetSeenCount(ctx context.Context, jobID string) (int, error) {
	query := `SELECT seen_count FROM job_dedupe WHERE job_id = $1`

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, jobID).Scan(&seenCount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get seen count: %w", err)
	}

	return seenCount, nil
}
