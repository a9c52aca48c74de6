package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/graphrun/agentengine/workflow"
)

// MySQL is a MySQL/MariaDB-backed workflow.MemoryAdapter for production
// deployments sharing memory across multiple engine processes.
type MySQL struct {
	db *sql.DB
	mu sync.Mutex
}

// NewMySQL opens a connection pool against dsn and ensures the schema
// exists. See the driver's DSN format docs, e.g.
// "user:pass@tcp(localhost:3306)/workflows?parseTime=true".
func NewMySQL(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: ping mysql: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS memory_entries (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		session_id VARCHAR(255) NOT NULL,
		node_id VARCHAR(255) NOT NULL,
		content TEXT NOT NULL,
		metadata JSON NOT NULL,
		created_at BIGINT NOT NULL,
		INDEX idx_session (session_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: create table: %w", err)
	}

	return &MySQL{db: db}, nil
}

func (m *MySQL) Store(ctx context.Context, entry workflow.MemoryEntry) (string, error) {
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return "", fmt.Errorf("memory: marshal metadata: %w", err)
	}
	ts := entry.Timestamp
	if ts == 0 {
		ts = time.Now().UnixNano()
	}
	res, err := m.db.ExecContext(ctx,
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

func (m *MySQL) Query(ctx context.Context, q workflow.MemoryQuery) ([]workflow.MemoryEntry, error) {
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

	rows, err := m.db.QueryContext(ctx, query, args...)
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

// Close releases the underlying connection pool.
func (m *MySQL) Close() error {
	return m.db.Close()
}
