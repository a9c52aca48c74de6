package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/graphrun/agentengine/workflow"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file SQLite-backed workflow.Store. It enables WAL
// mode for concurrent reads and serializes writes through a single
// connection, mirroring the teacher's graph/store.SQLiteStore setup.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if absent) the database at path and
// ensures its schema exists. Pass ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflow_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			outputs TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(run_id, step)
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			label TEXT PRIMARY KEY,
			outputs TEXT NOT NULL,
			step INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_steps_run ON workflow_steps(run_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create table: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveStep(ctx context.Context, runID string, step int, nodeID string, outputs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store: closed")
	}
	raw, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("store: marshal outputs: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO workflow_steps (run_id, step, node_id, outputs) VALUES (?, ?, ?, ?)`,
		runID, step, nodeID, string(raw),
	)
	return err
}

func (s *SQLiteStore) LoadLatest(ctx context.Context, runID string) (map[string]string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT outputs, step FROM workflow_steps WHERE run_id = ? ORDER BY step DESC LIMIT 1`, runID)

	var raw string
	var step int
	if err := row.Scan(&raw, &step); err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, workflow.ErrNotFound
		}
		return nil, 0, err
	}
	var outputs map[string]string
	if err := json.Unmarshal([]byte(raw), &outputs); err != nil {
		return nil, 0, fmt.Errorf("store: unmarshal outputs: %w", err)
	}
	return outputs, step, nil
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, label string, outputs map[string]string, step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("store: marshal outputs: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO workflow_checkpoints (label, outputs, step) VALUES (?, ?, ?)`,
		label, string(raw), step,
	)
	return err
}

func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, label string) (map[string]string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT outputs, step FROM workflow_checkpoints WHERE label = ?`, label)

	var raw string
	var step int
	if err := row.Scan(&raw, &step); err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, workflow.ErrNotFound
		}
		return nil, 0, err
	}
	var outputs map[string]string
	if err := json.Unmarshal([]byte(raw), &outputs); err != nil {
		return nil, 0, fmt.Errorf("store: unmarshal outputs: %w", err)
	}
	return outputs, step, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
