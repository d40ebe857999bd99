// Package storage persists the tool invocation journal in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Invocation outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeToolError     = "tool_error"
	OutcomeRuntimeError  = "runtime_error"
	OutcomeInternalError = "internal_error"
)

const defaultListLimit = 50

// Invocation is one journaled tools/call.
type Invocation struct {
	ID         string         `json:"id"`
	RequestID  string         `json:"request_id,omitempty"`
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments"`
	Outcome    string         `json:"outcome"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ListOptions filters List.
type ListOptions struct {
	Tool  string
	Limit int
}

// Storage handles SQLite persistence for invocations.
type Storage struct {
	db *sql.DB
}

// New opens (and creates if needed) the journal database at path.
func New(path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer; batch elements journal concurrently
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL DEFAULT '',
			tool TEXT NOT NULL,
			arguments TEXT NOT NULL DEFAULT '{}',
			outcome TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_tool ON invocations(tool)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_created ON invocations(created_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Record stores an invocation. ID and CreatedAt are filled in when empty.
func (s *Storage) Record(ctx context.Context, inv *Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	args := inv.Arguments
	if args == nil {
		args = map[string]any{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invocations (id, request_id, tool, arguments, outcome, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.RequestID, inv.Tool, string(argsJSON), inv.Outcome, inv.Error, inv.DurationMS,
		inv.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert invocation: %w", err)
	}
	return nil
}

// List returns invocations, newest first.
func (s *Storage) List(ctx context.Context, opts ListOptions) ([]*Invocation, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT id, request_id, tool, arguments, outcome, error, duration_ms, created_at FROM invocations`
	args := []any{}
	if opts.Tool != "" {
		query += ` WHERE tool = ?`
		args = append(args, opts.Tool)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	invocations := []*Invocation{}
	for rows.Next() {
		var (
			inv      Invocation
			argsJSON string
			created  int64
		)
		if err := rows.Scan(&inv.ID, &inv.RequestID, &inv.Tool, &argsJSON, &inv.Outcome, &inv.Error, &inv.DurationMS, &created); err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		if err := json.Unmarshal([]byte(argsJSON), &inv.Arguments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments of %s: %w", inv.ID, err)
		}
		inv.CreatedAt = time.Unix(0, created).UTC()
		invocations = append(invocations, &inv)
	}
	return invocations, rows.Err()
}

// Prune deletes invocations created before the given time and returns how
// many were removed.
func (s *Storage) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invocations WHERE created_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune invocations: %w", err)
	}
	return res.RowsAffected()
}
