package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL,
	run_id TEXT,
	timestamp TEXT NOT NULL,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	actor TEXT,
	detail TEXT,
	approved_by TEXT,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_events_run ON audit_events(run_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_task ON audit_events(task_id);
`

// SQLite persists events in a SQLite database.
type SQLite struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens (and migrates) the database at path, creating parent
// directories. Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create audit db directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		conn.SetMaxOpenConns(1)
	} else if _, err = conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err = conn.Exec(auditSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	return &SQLite{conn: conn, path: path}, nil
}

// Record inserts event.
func (s *SQLite) Record(ctx context.Context, event *Event) error {
	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(event.Metadata); err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO audit_events (task_id, run_id, timestamp, kind, name, actor, detail, approved_by, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.TaskID, event.RunID, event.Timestamp.UTC().Format(time.RFC3339Nano), string(event.Kind),
		event.Name, event.Actor, event.Detail, event.ApprovedBy, string(metadata))
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Events returns the events of a run in recorded order.
func (s *SQLite) Events(ctx context.Context, runID string) ([]*Event, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT task_id, run_id, timestamp, kind, name, actor, detail, approved_by, metadata
		 FROM audit_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	var ret []*Event
	for rows.Next() {
		event := &Event{}
		var timestamp, kind, metadata string
		if err = rows.Scan(&event.TaskID, &event.RunID, &timestamp, &kind, &event.Name, &event.Actor, &event.Detail, &event.ApprovedBy, &metadata); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Kind = Kind(kind)
		if event.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		if metadata != "" {
			if err = json.Unmarshal([]byte(metadata), &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		ret = append(ret, event)
	}
	return ret, rows.Err()
}

// Path returns the database path.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
