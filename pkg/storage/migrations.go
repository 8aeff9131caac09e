package storage

import (
	"database/sql"
	"fmt"
)

// MigrationVersion tracks the current database schema version.
const MigrationVersion = 1

// InitializeDatabase creates the SQLite schema for session traces. Migration
// versions are tracked so the schema can evolve without dropping history.
func InitializeDatabase(db *sql.DB) error {
	migrationsTable := `
	CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL UNIQUE,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to check migration version: %w", err)
	}

	if currentVersion < 1 {
		if err := applyMigration1(db); err != nil {
			return fmt.Errorf("failed to apply migration 1: %w", err)
		}
	}

	return nil
}

// applyMigration1 creates the initial schema.
func applyMigration1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Sessions table - one row per finished debug session
	sessionsTable := `
	CREATE TABLE sessions (
		id TEXT PRIMARY KEY,
		flow_id TEXT NOT NULL,
		status TEXT NOT NULL,
		step_count INTEGER NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		execution_path TEXT,
		variables TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := tx.Exec(sessionsTable); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	sessionsIndexes := []string{
		"CREATE INDEX idx_sessions_flow_id ON sessions(flow_id, finished_at DESC);",
		"CREATE INDEX idx_sessions_finished_at ON sessions(finished_at DESC);",
	}

	for _, idx := range sessionsIndexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create session index: %w", err)
		}
	}

	// Console entries table - the ordered trace lines of each session
	consoleTable := `
	CREATE TABLE console_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		level TEXT NOT NULL,
		node_id TEXT,
		message TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);`

	if _, err := tx.Exec(consoleTable); err != nil {
		return fmt.Errorf("failed to create console_entries table: %w", err)
	}

	if _, err := tx.Exec("CREATE INDEX idx_console_entries_session_id ON console_entries(session_id, seq);"); err != nil {
		return fmt.Errorf("failed to create console entry index: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", 1); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}
