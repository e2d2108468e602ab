package storage

// changelists.go loads and saves the complete changelist state. The state is
// small, so a save rewrites every table inside one transaction.

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/gitpanel/host/internal/changelist"
	"github.com/gitpanel/host/internal/diff"
	apperrors "github.com/gitpanel/host/internal/errors"
)

const activeIDKey = "active_id"

// LoadState reads the persisted changelist state.
// Returns nil, nil if nothing has been saved yet.
func (s *SQLiteStore) LoadState() (*changelist.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, err := s.loadState()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "load changelist state", err)
	}
	return state, nil
}

func (s *SQLiteStore) loadState() (*changelist.State, error) {
	state := &changelist.State{
		FileAssignments: make(map[string]string),
		HunkAssignments: make(map[string]*changelist.HunkAssignmentSet),
	}

	rows, err := s.db.Query("SELECT id, name, created_at FROM changelists ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query changelists: %w", err)
	}
	for rows.Next() {
		var cl changelist.Changelist
		if err := rows.Scan(&cl.ID, &cl.Name, &cl.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan changelist: %w", err)
		}
		state.Lists = append(state.Lists, cl)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("iterate changelists: %w", err)
	}

	err = s.db.QueryRow("SELECT value FROM settings WHERE key = ?", activeIDKey).Scan(&state.ActiveID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query active changelist: %w", err)
	}

	if len(state.Lists) == 0 && state.ActiveID == "" {
		return nil, nil
	}

	rows, err = s.db.Query("SELECT path, changelist_id FROM file_assignments")
	if err != nil {
		return nil, fmt.Errorf("query file assignments: %w", err)
	}
	for rows.Next() {
		var path, id string
		if err := rows.Scan(&path, &id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan file assignment: %w", err)
		}
		state.FileAssignments[path] = id
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("iterate file assignments: %w", err)
	}

	rows, err = s.db.Query(`
		SELECT path, changelist_id, hunk_id, header, old_start, old_lines,
			new_start, new_lines, content_hash, kind
		FROM hunk_assignments
		ORDER BY path, position
	`)
	if err != nil {
		return nil, fmt.Errorf("query hunk assignments: %w", err)
	}
	for rows.Next() {
		var (
			path, id, kind string
			h              changelist.HunkAssignment
		)
		err := rows.Scan(&path, &id, &h.ID, &h.Header, &h.OldStart, &h.OldLines,
			&h.NewStart, &h.NewLines, &h.ContentHash, &kind)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan hunk assignment: %w", err)
		}
		h.Kind = diff.Kind(kind)

		set, ok := state.HunkAssignments[path]
		if !ok {
			set = &changelist.HunkAssignmentSet{ChangelistID: id}
			state.HunkAssignments[path] = set
		}
		set.Hunks = append(set.Hunks, h)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("iterate hunk assignments: %w", err)
	}

	return state, nil
}

// closeRows reports any iteration error and closes rows.
func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	rows.Close()
	return err
}

// SaveState replaces the persisted state with state in one transaction.
// Assignments that reference an unknown changelist are skipped.
func (s *SQLiteStore) SaveState(state *changelist.State) error {
	if state == nil {
		return apperrors.New(apperrors.CodeStorageSaveFailed, "state cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveState(state); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "save changelist state", err)
	}
	log.Printf("storage: saved %d changelists, %d file and %d hunk assignments",
		len(state.Lists), len(state.FileAssignments), len(state.HunkAssignments))
	return nil
}

func (s *SQLiteStore) saveState(state *changelist.State) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Children first so the cascade never fires mid-rewrite.
	for _, table := range []string{"hunk_assignments", "file_assignments", "changelists"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	known := make(map[string]bool, len(state.Lists))
	for i, cl := range state.Lists {
		_, err := tx.Exec(
			"INSERT INTO changelists (id, name, position, created_at) VALUES (?, ?, ?, ?)",
			cl.ID, cl.Name, i, cl.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert changelist %s: %w", cl.ID, err)
		}
		known[cl.ID] = true
	}

	for path, id := range state.FileAssignments {
		if !known[id] {
			log.Printf("storage: skipping file assignment %s -> unknown changelist %s", path, id)
			continue
		}
		_, err := tx.Exec("INSERT INTO file_assignments (path, changelist_id) VALUES (?, ?)", path, id)
		if err != nil {
			return fmt.Errorf("insert file assignment %s: %w", path, err)
		}
	}

	const insertHunk = `
		INSERT INTO hunk_assignments
			(path, position, changelist_id, hunk_id, header, old_start, old_lines,
			 new_start, new_lines, content_hash, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for path, set := range state.HunkAssignments {
		if !known[set.ChangelistID] {
			log.Printf("storage: skipping hunk assignments for %s -> unknown changelist %s", path, set.ChangelistID)
			continue
		}
		for i, h := range set.Hunks {
			_, err := tx.Exec(insertHunk,
				path, i, set.ChangelistID, h.ID, h.Header,
				h.OldStart, h.OldLines, h.NewStart, h.NewLines,
				h.ContentHash, string(h.Kind),
			)
			if err != nil {
				return fmt.Errorf("insert hunk assignment %s/%s: %w", path, h.ID, err)
			}
		}
	}

	_, err = tx.Exec(
		"INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)",
		activeIDKey, state.ActiveID,
	)
	if err != nil {
		return fmt.Errorf("save active changelist: %w", err)
	}

	return tx.Commit()
}
