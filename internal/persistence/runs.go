package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateRun inserts a new run row. The run ID must be unique.
func (s *SQLiteStore) CreateRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at)
		VALUES (?, ?)
	`, runID, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// RecordOperation upserts the outcome of one operation within a run.
func (s *SQLiteStore) RecordOperation(ctx context.Context, runID string, rec OperationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operation_results (run_id, name, status, exit_code, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, name) DO UPDATE SET
			status = excluded.status,
			exit_code = excluded.exit_code,
			duration_ms = excluded.duration_ms,
			error = excluded.error
	`, runID, rec.Name, rec.Status, rec.ExitCode, rec.Duration.Milliseconds(), rec.Error)
	if err != nil {
		return fmt.Errorf("failed to record operation %s: %w", rec.Name, err)
	}
	return nil
}

// FinishRun stores the final timestamps and counters of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, run Run) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, total = ?, succeeded = ?, failed = ?, skipped = ?
		WHERE id = ?
	`, run.FinishedAt.UTC(), run.Total, run.Succeeded, run.Failed, run.Skipped, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, total, succeeded, failed, skipped
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var finishedAt sql.NullTime
		if err := rows.Scan(&run.ID, &run.StartedAt, &finishedAt, &run.Total, &run.Succeeded, &run.Failed, &run.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finishedAt.Valid {
			run.FinishedAt = finishedAt.Time
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRunOperations returns the recorded outcomes of a run's operations.
func (s *SQLiteStore) GetRunOperations(ctx context.Context, runID string) ([]OperationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, status, exit_code, duration_ms, error
		FROM operation_results
		WHERE run_id = ?
		ORDER BY recorded_at
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation results: %w", err)
	}
	defer rows.Close()

	var records []OperationRecord
	for rows.Next() {
		var rec OperationRecord
		var durationMs int64
		if err := rows.Scan(&rec.Name, &rec.Status, &rec.ExitCode, &durationMs, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan operation result: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation results: %w", err)
	}
	return records, nil
}
