package store

import (
	"fmt"
	"time"
)

// SessionRecord one row of the import session audit log.
type SessionRecord struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	TotalRows    int       `json:"totalRows"`
	State        string    `json:"state"`
	ItemCount    int       `json:"itemCount"`
	RejectReason string    `json:"rejectReason,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateImportSession records a newly uploaded session.
func (s *Store) CreateImportSession(id, filename string, totalRows int) error {
	_, err := s.db.Exec(`
		INSERT INTO import_sessions (id, filename, total_rows, state)
		VALUES (?, ?, ?, 'upload')
	`, id, filename, totalRows)
	if err != nil {
		return fmt.Errorf("failed to create import session: %w", err)
	}
	return nil
}

// UpdateImportSession records a state transition.
func (s *Store) UpdateImportSession(id, state string, itemCount int, rejectReason string) error {
	_, err := s.db.Exec(`
		UPDATE import_sessions SET
			state = ?,
			item_count = ?,
			reject_reason = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, state, itemCount, rejectReason, id)
	if err != nil {
		return fmt.Errorf("failed to update import session: %w", err)
	}
	return nil
}

// GetImportSession fetches one audit record.
func (s *Store) GetImportSession(id string) (*SessionRecord, error) {
	var rec SessionRecord
	err := s.db.QueryRow(`
		SELECT id, filename, total_rows, state, item_count, reject_reason, created_at, updated_at
		FROM import_sessions WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Filename, &rec.TotalRows, &rec.State, &rec.ItemCount,
		&rec.RejectReason, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get import session: %w", err)
	}
	return &rec, nil
}

// RecentImportSessions lists the most recent audit records, newest first.
func (s *Store) RecentImportSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, filename, total_rows, state, item_count, reject_reason, created_at, updated_at
		FROM import_sessions ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.TotalRows, &rec.State, &rec.ItemCount,
			&rec.RejectReason, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import session: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
