package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ScanBudget caps how many endpoints the pipeline may scan within a
// period, so a misconfigured Targets list cannot run away against a
// production network.
type ScanBudget struct {
	ID               int64
	Period           string
	PeriodStart      string
	EndpointsScanned int64
	EndpointLimit    int64
	LastUpdated      string
}

// GetScanBudget retrieves the budget for a specific period and period_start.
// Returns sql.ErrNoRows (wrapped) if no matching budget exists.
func (s *Store) GetScanBudget(period, periodStart string) (*ScanBudget, error) {
	b := &ScanBudget{}
	err := s.reader.QueryRow(`
		SELECT id, period, period_start, endpoints_scanned, endpoint_limit, last_updated
		FROM scan_budgets
		WHERE period = ? AND period_start = ?`, period, periodStart,
	).Scan(
		&b.ID, &b.Period, &b.PeriodStart,
		&b.EndpointsScanned, &b.EndpointLimit, &b.LastUpdated,
	)
	if err != nil {
		return nil, fmt.Errorf("store: get scan budget (%s, %s): %w", period, periodStart, err)
	}
	return b, nil
}

// AddScanned increments the endpoints-scanned counter for a budget period.
// If the row does not exist yet it is created with the given limit; if it
// already exists the count is incremented and the limit updated.
//
// scan_budgets uses INTEGER PRIMARY KEY AUTOINCREMENT, so there is no
// natural unique constraint on (period, period_start); an UPDATE-first
// approach avoids a race between a SELECT and an INSERT.
func (s *Store) AddScanned(period, periodStart string, n, limit int64) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.writer.Exec(`
		UPDATE scan_budgets
		SET endpoints_scanned = endpoints_scanned + ?, endpoint_limit = ?, last_updated = ?
		WHERE period = ? AND period_start = ?`,
		n, limit, now, period, periodStart,
	)
	if err != nil {
		return fmt.Errorf("store: update scan budget: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: scan budget rows affected: %w", err)
	}

	if affected == 0 {
		_, err = s.writer.Exec(`
			INSERT INTO scan_budgets (period, period_start, endpoints_scanned, endpoint_limit, last_updated)
			VALUES (?, ?, ?, ?, ?)`,
			period, periodStart, n, limit, now,
		)
		if err != nil {
			return fmt.Errorf("store: insert scan budget: %w", err)
		}
	}

	return nil
}

// ResetScanBudget resets the scanned count to zero for the given period
// and period_start. Returns sql.ErrNoRows (wrapped) if no matching budget
// exists.
func (s *Store) ResetScanBudget(period, periodStart string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.writer.Exec(`
		UPDATE scan_budgets SET endpoints_scanned = 0, last_updated = ?
		WHERE period = ? AND period_start = ?`,
		now, period, periodStart,
	)
	if err != nil {
		return fmt.Errorf("store: reset scan budget: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: reset scan budget rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: reset scan budget (%s, %s): %w", period, periodStart, sql.ErrNoRows)
	}
	return nil
}
