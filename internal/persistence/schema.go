package persistence

import (
	"context"
	"fmt"
)

// initSchema creates the run history tables if they do not exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		started_at  TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		total       INTEGER NOT NULL DEFAULT 0,
		succeeded   INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		skipped     INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS operation_results (
		run_id      TEXT NOT NULL,
		name        TEXT NOT NULL,
		status      TEXT NOT NULL,
		exit_code   INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, name),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_operation_results_run
		ON operation_results(run_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
