package storage

// preview_audit.go records commit previews, including the ones blocked by
// stale hunk assignments, for debugging partial-commit complaints.

import (
	"fmt"
	"log"
	"time"
)

// auditTimeLayout is fixed-width so recorded_at sorts lexically.
const auditTimeLayout = "2006-01-02T15:04:05.000000000Z"

// PreviewAuditEntry is one recorded commit preview.
type PreviewAuditEntry struct {
	ID            int64
	ChangelistID  string
	FileCount     int
	HunkFileCount int
	InvalidHunks  int
	Blocked       bool

	// ErrorCode is set when the preview itself failed (e.g. changelist.empty).
	ErrorCode string

	RecordedAt time.Time
}

// RecordPreview appends an audit entry. RecordedAt defaults to now.
func (s *SQLiteStore) RecordPreview(entry *PreviewAuditEntry) error {
	if entry == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		INSERT INTO preview_audit
			(changelist_id, file_count, hunk_file_count, invalid_hunks, blocked, error_code, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.Exec(query,
		entry.ChangelistID,
		entry.FileCount,
		entry.HunkFileCount,
		entry.InvalidHunks,
		boolToInt(entry.Blocked),
		entry.ErrorCode,
		entry.RecordedAt.UTC().Format(auditTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert preview audit: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// ListPreviewAudit returns audit entries, newest first.
// Use limit <= 0 to return all entries.
func (s *SQLiteStore) ListPreviewAudit(limit int) ([]*PreviewAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, changelist_id, file_count, hunk_file_count, invalid_hunks, blocked, error_code, recorded_at
		FROM preview_audit
		ORDER BY recorded_at DESC, id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query preview audit: %w", err)
	}
	defer rows.Close()

	var entries []*PreviewAuditEntry
	for rows.Next() {
		var (
			entry      PreviewAuditEntry
			blocked    int
			recordedAt string
		)
		err := rows.Scan(&entry.ID, &entry.ChangelistID, &entry.FileCount, &entry.HunkFileCount,
			&entry.InvalidHunks, &blocked, &entry.ErrorCode, &recordedAt)
		if err != nil {
			return nil, fmt.Errorf("scan preview audit: %w", err)
		}
		entry.Blocked = blocked != 0
		t, err := time.Parse(auditTimeLayout, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		entry.RecordedAt = t
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preview audit rows: %w", err)
	}
	return entries, nil
}

// CleanupPreviewAudit deletes entries older than retention.
func (s *SQLiteStore) CleanupPreviewAudit(retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention).UTC().Format(auditTimeLayout)
	res, err := s.db.Exec("DELETE FROM preview_audit WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup preview audit: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Printf("storage: removed %d preview audit entries older than %s", n, retention)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
