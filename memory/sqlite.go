package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/graphrun/agentengine/workflow"
	_ "modernc.org/sqlite"
)

// SQLite is a single-file SQLite-backed workflow.MemoryAdapter, using a
// SQL LIKE scan for relevance (no vector index) — adequate for the small,
// per-session memory footprints this engine's spec targets.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens (creating if absent) the database at path and ensures
// its schema exists.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("memory: %s: %w", pragma, err)
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS memory_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		node_id TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: create table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_memory_session ON memory_entries(session_id)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: create index: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Store(ctx context.Context, entry workflow.MemoryEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return "", fmt.Errorf("memory: marshal metadata: %w", err)
	}
	ts := entry.Timestamp
	if ts == 0 {
		ts = time.Now().UnixNano()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_entries (session_id, node_id, content, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.SessionID, entry.NodeID, entry.Content, string(meta), ts,
	)
	if err != nil {
		return "", fmt.Errorf("memory: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("memory: last insert id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *SQLite) Query(ctx context.Context, q workflow.MemoryQuery) ([]workflow.MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, session_id, node_id, content, metadata, created_at FROM memory_entries WHERE session_id = ?`
	args := []any{q.SessionID}
	if q.Text != "" {
		query += ` AND content LIKE ?`
		args = append(args, "%"+q.Text+"%")
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: query: %w", err)
	}
	defer rows.Close()

	var out []workflow.MemoryEntry
	for rows.Next() {
		var id int64
		var e workflow.MemoryEntry
		var metaRaw string
		if err := rows.Scan(&id, &e.SessionID, &e.NodeID, &e.Content, &metaRaw, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("memory: scan: %w", err)
		}
		e.ID = strconv.FormatInt(id, 10)
		if metaRaw != "" && metaRaw != "null" {
			if err := json.Unmarshal([]byte(metaRaw), &e.Metadata); err != nil {
				return nil, fmt.Errorf("memory: unmarshal metadata: %w", err)
			}
		}
		if !matchesFilter(e, q.Filter) {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the underlying database connection.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
