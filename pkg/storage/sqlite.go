package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/fableflow/pkg/engine"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SessionTrace is the persisted record of a finished debug session: the final
// status, the node path taken, the closing variable values and the full
// console transcript.
type SessionTrace struct {
	SessionID     string                 `json:"session_id"`
	FlowID        string                 `json:"flow_id"`
	Status        string                 `json:"status"`
	StepCount     int                    `json:"step_count"`
	FinishedAt    time.Time              `json:"finished_at"`
	ExecutionPath []string               `json:"execution_path"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	Console       []engine.ConsoleEntry  `json:"console,omitempty"`
}

// NewSessionTrace builds a trace from a session's final state.
func NewSessionTrace(s *engine.State) *SessionTrace {
	vars := make(map[string]interface{}, len(s.Variables))
	for ref, entry := range s.Variables {
		vars[ref] = entry.Value
	}
	return &SessionTrace{
		SessionID:     s.SessionID.String(),
		FlowID:        s.CurrentFlowID,
		Status:        string(s.Status),
		StepCount:     s.StepCount,
		FinishedAt:    time.Now(),
		ExecutionPath: append([]string(nil), s.ExecutionPath...),
		Variables:     vars,
		Console:       append([]engine.ConsoleEntry(nil), s.Console...),
	}
}

// SQLiteSessionRepository persists finished session traces using SQLite.
type SQLiteSessionRepository struct {
	db *sql.DB
}

// NewSQLiteSessionRepository creates a repository backed by the default
// database location, ~/.fableflow/fableflow.db.
func NewSQLiteSessionRepository() (*SQLiteSessionRepository, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	baseDir := filepath.Join(homeDir, ".fableflow")
	return NewSQLiteSessionRepositoryWithPath(filepath.Join(baseDir, "fableflow.db"))
}

// NewSQLiteSessionRepositoryWithPath creates a repository with a custom
// database path. Useful for testing.
func NewSQLiteSessionRepositoryWithPath(dbPath string) (*SQLiteSessionRepository, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := InitializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &SQLiteSessionRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteSessionRepository) Close() error {
	return r.db.Close()
}

// Save persists a session trace. An existing trace with the same session ID is
// replaced.
func (r *SQLiteSessionRepository) Save(trace *SessionTrace) error {
	if trace == nil {
		return fmt.Errorf("cannot save nil trace")
	}
	if trace.SessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var pathJSON, varsJSON sql.NullString
	if len(trace.ExecutionPath) > 0 {
		data, err := json.Marshal(trace.ExecutionPath)
		if err != nil {
			return fmt.Errorf("failed to marshal execution path: %w", err)
		}
		pathJSON.Valid = true
		pathJSON.String = string(data)
	}
	if len(trace.Variables) > 0 {
		data, err := json.Marshal(trace.Variables)
		if err != nil {
			return fmt.Errorf("failed to marshal variables: %w", err)
		}
		varsJSON.Valid = true
		varsJSON.String = string(data)
	}

	query := `
		INSERT INTO sessions (
			id, flow_id, status, step_count, finished_at, execution_path, variables
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			flow_id = excluded.flow_id,
			status = excluded.status,
			step_count = excluded.step_count,
			finished_at = excluded.finished_at,
			execution_path = excluded.execution_path,
			variables = excluded.variables
	`

	_, err = tx.Exec(query,
		trace.SessionID,
		trace.FlowID,
		trace.Status,
		trace.StepCount,
		trace.FinishedAt,
		pathJSON,
		varsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	// Replace the console transcript wholesale
	if _, err := tx.Exec("DELETE FROM console_entries WHERE session_id = ?", trace.SessionID); err != nil {
		return fmt.Errorf("failed to clear console entries: %w", err)
	}

	for i, entry := range trace.Console {
		_, err := tx.Exec(`
			INSERT INTO console_entries (session_id, seq, level, node_id, message, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`,
			trace.SessionID, i, string(entry.Level), entry.NodeID, entry.Message, entry.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to save console entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Get retrieves a session trace by its ID, console transcript included.
func (r *SQLiteSessionRepository) Get(sessionID string) (*SessionTrace, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID cannot be empty")
	}

	query := `
		SELECT id, flow_id, status, step_count, finished_at, execution_path, variables
		FROM sessions WHERE id = ?
	`

	trace := &SessionTrace{}
	var pathJSON, varsJSON sql.NullString
	err := r.db.QueryRow(query, sessionID).Scan(
		&trace.SessionID,
		&trace.FlowID,
		&trace.Status,
		&trace.StepCount,
		&trace.FinishedAt,
		&pathJSON,
		&varsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if pathJSON.Valid {
		if err := json.Unmarshal([]byte(pathJSON.String), &trace.ExecutionPath); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution path: %w", err)
		}
	}
	if varsJSON.Valid {
		if err := json.Unmarshal([]byte(varsJSON.String), &trace.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
		}
	}

	console, err := r.loadConsole(sessionID)
	if err != nil {
		return nil, err
	}
	trace.Console = console

	return trace, nil
}

// List returns trace summaries (no console transcript), most recent first.
// A non-empty flowID restricts the list to that flow.
func (r *SQLiteSessionRepository) List(flowID string, limit int) ([]*SessionTrace, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, flow_id, status, step_count, finished_at, execution_path
		FROM sessions
	`
	args := []interface{}{}
	if flowID != "" {
		query += " WHERE flow_id = ?"
		args = append(args, flowID)
	}
	query += " ORDER BY finished_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var traces []*SessionTrace
	for rows.Next() {
		trace := &SessionTrace{}
		var pathJSON sql.NullString
		err := rows.Scan(
			&trace.SessionID,
			&trace.FlowID,
			&trace.Status,
			&trace.StepCount,
			&trace.FinishedAt,
			&pathJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if pathJSON.Valid {
			if err := json.Unmarshal([]byte(pathJSON.String), &trace.ExecutionPath); err != nil {
				return nil, fmt.Errorf("failed to unmarshal execution path: %w", err)
			}
		}
		traces = append(traces, trace)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return traces, nil
}

// Delete removes a session trace and its console transcript.
func (r *SQLiteSessionRepository) Delete(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if _, err := r.db.Exec("DELETE FROM console_entries WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete console entries: %w", err)
	}
	if _, err := r.db.Exec("DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SQLiteSessionRepository) loadConsole(sessionID string) ([]engine.ConsoleEntry, error) {
	rows, err := r.db.Query(`
		SELECT level, node_id, message, timestamp
		FROM console_entries WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load console entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []engine.ConsoleEntry
	for rows.Next() {
		var entry engine.ConsoleEntry
		var level string
		var nodeID sql.NullString
		if err := rows.Scan(&level, &nodeID, &entry.Message, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan console entry: %w", err)
		}
		entry.Level = engine.ConsoleLevel(level)
		entry.NodeID = nodeID.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate console entries: %w", err)
	}

	return entries, nil
}
