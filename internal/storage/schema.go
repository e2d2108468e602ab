package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// currentSchemaVersion is the current database schema version.
// Increment this when making schema changes and add migration logic.
const currentSchemaVersion = 2

// initSchema creates the required tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	// Schema version table tracks database migrations.
	const schemaVersionTable = `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
	`

	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}

	if version < 1 {
		if err := s.migrateToV1(); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if version < 2 {
		if err := s.migrateToV2(); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}

	return nil
}

// migrateToV1 creates the changelist tables.
func (s *SQLiteStore) migrateToV1() error {
	log.Printf("storage: applying migration to schema version 1")

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// position keeps the user's list order; created_at is Unix milliseconds.
	const changelistsTable = `
		CREATE TABLE IF NOT EXISTS changelists (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			position INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
	`

	// A path is either wholly assigned or has a hunk selection, never both;
	// the tracker enforces that, the schema only enforces referential integrity.
	const assignmentTables = `
		CREATE TABLE IF NOT EXISTS file_assignments (
			path TEXT PRIMARY KEY,
			changelist_id TEXT NOT NULL,
			FOREIGN KEY (changelist_id) REFERENCES changelists(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS hunk_assignments (
			path TEXT NOT NULL,
			position INTEGER NOT NULL,
			changelist_id TEXT NOT NULL,
			hunk_id TEXT NOT NULL,
			header TEXT NOT NULL,
			old_start INTEGER NOT NULL,
			old_lines INTEGER NOT NULL,
			new_start INTEGER NOT NULL,
			new_lines INTEGER NOT NULL,
			content_hash TEXT NOT NULL,
			kind TEXT NOT NULL,
			PRIMARY KEY (path, position),
			FOREIGN KEY (changelist_id) REFERENCES changelists(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_hunk_assignments_changelist ON hunk_assignments(changelist_id);
	`

	// Small key/value table for scalar state such as the active changelist.
	const settingsTable = `
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`

	for _, stmt := range []string{changelistsTable, assignmentTables, settingsTable} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("create changelist tables: %w", err)
		}
	}

	_, err = tx.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		1,
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

// migrateToV2 adds the preview_audit table recording every commit preview
// and whether stale hunks blocked it.
func (s *SQLiteStore) migrateToV2() error {
	log.Printf("storage: applying migration to schema version 2")

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const auditTable = `
		CREATE TABLE IF NOT EXISTS preview_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			changelist_id TEXT NOT NULL,
			file_count INTEGER NOT NULL,
			hunk_file_count INTEGER NOT NULL,
			invalid_hunks INTEGER NOT NULL,
			blocked INTEGER NOT NULL DEFAULT 0,
			error_code TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_preview_audit_recorded_at ON preview_audit(recorded_at);
	`

	if _, err := tx.Exec(auditTable); err != nil {
		return fmt.Errorf("create preview_audit table: %w", err)
	}

	_, err = tx.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		2,
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

// tableExists reports whether a table exists in the current database.
func (s *SQLiteStore) tableExists(name string) (bool, error) {
	var table string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		name,
	).Scan(&table)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return table == name, nil
}

// SchemaVersion returns the current database schema version.
// This is useful for diagnostics and testing.
func (s *SQLiteStore) SchemaVersion() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return version, nil
}
