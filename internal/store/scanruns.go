package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ScanRun represents a single end-to-end invocation of the discovery
// pipeline: one Targets expansion through to exit.
type ScanRun struct {
	ID                 string
	StartedAt           string
	FinishedAt          string
	TargetsExpanded     int64
	AliveCount          int64
	ClassifiedCount     int64
	CollectedCount      int64
	ReconciledCount     int64
	DroppedUnreachable  int64
	RetryCount          int64
	ExitCode            int
}

// ScanRunStats holds aggregate statistics across a range of scan runs.
type ScanRunStats struct {
	TotalRuns       int64
	TotalAlive      int64
	TotalReconciled int64
	TotalRetries    int64
	FailedRuns      int64
}

// InsertScanRun stores a new scan run record, typically written once at
// the start of a run with FinishedAt still empty.
func (s *Store) InsertScanRun(r *ScanRun) error {
	_, err := s.writer.Exec(`
		INSERT INTO scan_runs (
			id, started_at, finished_at, targets_expanded, alive_count,
			classified_count, collected_count, reconciled_count,
			dropped_unreachable, retry_count, exit_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, nullableString(r.FinishedAt), r.TargetsExpanded, r.AliveCount,
		r.ClassifiedCount, r.CollectedCount, r.ReconciledCount,
		r.DroppedUnreachable, r.RetryCount, r.ExitCode,
	)
	if err != nil {
		return fmt.Errorf("store: insert scan run: %w", err)
	}
	return nil
}

// FinishScanRun updates a scan run's counters and exit code once the
// pipeline drains, recording FinishedAt as now.
func (s *Store) FinishScanRun(r *ScanRun) error {
	r.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	_, err := s.writer.Exec(`
		UPDATE scan_runs SET
			finished_at = ?, targets_expanded = ?, alive_count = ?,
			classified_count = ?, collected_count = ?, reconciled_count = ?,
			dropped_unreachable = ?, retry_count = ?, exit_code = ?
		WHERE id = ?`,
		r.FinishedAt, r.TargetsExpanded, r.AliveCount,
		r.ClassifiedCount, r.CollectedCount, r.ReconciledCount,
		r.DroppedUnreachable, r.RetryCount, r.ExitCode, r.ID,
	)
	if err != nil {
		return fmt.Errorf("store: finish scan run %s: %w", r.ID, err)
	}
	return nil
}

// GetScanRun retrieves a single scan run by its ID.
// Returns sql.ErrNoRows (wrapped) if the run does not exist.
func (s *Store) GetScanRun(id string) (*ScanRun, error) {
	r := &ScanRun{}
	var finishedAt sql.NullString

	err := s.reader.QueryRow(`
		SELECT id, started_at, finished_at, targets_expanded, alive_count,
		       classified_count, collected_count, reconciled_count,
		       dropped_unreachable, retry_count, exit_code
		FROM scan_runs WHERE id = ?`, id,
	).Scan(
		&r.ID, &r.StartedAt, &finishedAt, &r.TargetsExpanded, &r.AliveCount,
		&r.ClassifiedCount, &r.CollectedCount, &r.ReconciledCount,
		&r.DroppedUnreachable, &r.RetryCount, &r.ExitCode,
	)
	if err != nil {
		return nil, fmt.Errorf("store: get scan run %s: %w", id, err)
	}
	r.FinishedAt = finishedAt.String
	return r, nil
}

// ListScanRuns returns a page of scan runs ordered by start time descending.
func (s *Store) ListScanRuns(limit, offset int) ([]*ScanRun, error) {
	rows, err := s.reader.Query(`
		SELECT id, started_at, finished_at, targets_expanded, alive_count,
		       classified_count, collected_count, reconciled_count,
		       dropped_unreachable, retry_count, exit_code
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list scan runs: %w", err)
	}
	defer rows.Close()

	var results []*ScanRun
	for rows.Next() {
		r := &ScanRun{}
		var finishedAt sql.NullString
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &finishedAt, &r.TargetsExpanded, &r.AliveCount,
			&r.ClassifiedCount, &r.CollectedCount, &r.ReconciledCount,
			&r.DroppedUnreachable, &r.RetryCount, &r.ExitCode,
		); err != nil {
			return nil, fmt.Errorf("store: scan scan-run row: %w", err)
		}
		r.FinishedAt = finishedAt.String
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list scan runs iteration: %w", err)
	}
	return results, nil
}

// GetScanRunStats computes aggregate statistics for all runs started at or
// after since.
func (s *Store) GetScanRunStats(since time.Time) (*ScanRunStats, error) {
	sinceStr := since.UTC().Format(time.RFC3339)
	stats := &ScanRunStats{}

	err := s.reader.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(alive_count), 0),
			COALESCE(SUM(reconciled_count), 0),
			COALESCE(SUM(retry_count), 0),
			COALESCE(SUM(CASE WHEN exit_code != 0 THEN 1 ELSE 0 END), 0)
		FROM scan_runs
		WHERE started_at >= ?`, sinceStr,
	).Scan(
		&stats.TotalRuns,
		&stats.TotalAlive,
		&stats.TotalReconciled,
		&stats.TotalRetries,
		&stats.FailedRuns,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return stats, nil
		}
		return nil, fmt.Errorf("store: get scan run stats: %w", err)
	}

	return stats, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
