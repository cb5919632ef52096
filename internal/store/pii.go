package store

import (
	"fmt"
)

// RedactionLogEntry records a single field redacted from a stored asset,
// e.g. when a validator strips a sensitive value before persistence.
type RedactionLogEntry struct {
	ID        int64
	AssetID   string
	Timestamp string
	FieldPath string
	Reason    string
}

// LogRedaction inserts a new redaction log entry. The ID field is ignored
// and auto-assigned by the database.
func (s *Store) LogRedaction(entry *RedactionLogEntry) error {
	result, err := s.writer.Exec(`
		INSERT INTO redaction_log (asset_id, timestamp, field_path, reason)
		VALUES (?, ?, ?, ?)`,
		entry.AssetID, entry.Timestamp, entry.FieldPath, entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("store: log redaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: log redaction last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// GetRedactionLog retrieves all redaction log entries for a specific
// asset, ordered by timestamp ascending.
func (s *Store) GetRedactionLog(assetID string) ([]*RedactionLogEntry, error) {
	rows, err := s.reader.Query(`
		SELECT id, asset_id, timestamp, field_path, reason
		FROM redaction_log
		WHERE asset_id = ?
		ORDER BY timestamp ASC`, assetID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: get redaction log for asset %s: %w", assetID, err)
	}
	defer rows.Close()

	var results []*RedactionLogEntry
	for rows.Next() {
		e := &RedactionLogEntry{}
		if err := rows.Scan(
			&e.ID, &e.AssetID, &e.Timestamp, &e.FieldPath, &e.Reason,
		); err != nil {
			return nil, fmt.Errorf("store: scan redaction log row: %w", err)
		}
		results = append(results, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: get redaction log iteration: %w", err)
	}
	return results, nil
}

// ListRedactionLog returns a page of redaction log entries ordered by
// timestamp descending.
func (s *Store) ListRedactionLog(limit, offset int) ([]*RedactionLogEntry, error) {
	rows, err := s.reader.Query(`
		SELECT id, asset_id, timestamp, field_path, reason
		FROM redaction_log
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list redaction log: %w", err)
	}
	defer rows.Close()

	var results []*RedactionLogEntry
	for rows.Next() {
		e := &RedactionLogEntry{}
		if err := rows.Scan(
			&e.ID, &e.AssetID, &e.Timestamp, &e.FieldPath, &e.Reason,
		); err != nil {
			return nil, fmt.Errorf("store: scan redaction log row: %w", err)
		}
		results = append(results, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list redaction log iteration: %w", err)
	}
	return results, nil
}
