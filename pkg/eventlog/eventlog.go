// Package eventlog persists the runtime's operational events (dispatch
// outcomes, state transitions, drops, fetch failures) to SQLite and
// provides the read-only query API used by `huddle logs` and the
// dashboard.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SchemaDDL creates the event log table. Idempotent.
const SchemaDDL = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
`

// Entry is a single row from the event log.
type Entry struct {
	ID        int64
	Type      string
	Source    string
	Detail    string
	CreatedAt time.Time
}

// Log is the append side of the event log. Safe for concurrent use;
// SQLite serializes writers and the busy timeout absorbs contention.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the event log database at path with WAL and
// a 5-second busy timeout, and applies the schema.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, SchemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema on %s: %w", path, err)
	}

	return &Log{db: db}, nil
}

// Close releases the database connection.
func (l *Log) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Append writes one event row. Errors are returned for callers that
// care; the runtime treats logging as best-effort.
func (l *Log) Append(ctx context.Context, typ, source, detail string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO events (type, source, detail) VALUES (?, ?, ?)`,
		typ, source, detail)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Record implements the monitor.Recorder contract: best-effort append,
// failures swallowed so observability can never take down the runtime.
func (l *Log) Record(ctx context.Context, typ, source, detail string) {
	_ = l.Append(ctx, typ, source, detail)
}

// QueryOpts specifies filter criteria for querying entries.
type QueryOpts struct {
	// Type filters to a single event type (e.g. "state_transition").
	Type string

	// Source filters to a single source (e.g. "tracker").
	Source string

	// After/Before bound created_at (inclusive).
	After  *time.Time
	Before *time.Time

	// Limit restricts the number of results, newest first (0 = no limit).
	Limit int
}

// Reader provides read-only access to an event log database.
type Reader struct {
	db *sql.DB
}

// NewReader opens the database at path in read-only mode so queries
// never block the runtime's writer.
func NewReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Reader{db: db}, nil
}

// Close releases the database connection. Safe to call multiple times.
func (r *Reader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Query retrieves entries matching opts, newest first.
func (r *Reader) Query(ctx context.Context, opts QueryOpts) ([]Entry, error) {
	query, args := buildQuery(opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Type, &e.Source, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if createdAt != "" {
			parsed, err := time.Parse("2006-01-02 15:04:05", createdAt)
			if err != nil {
				parsed, err = time.Parse(time.RFC3339, createdAt)
				if err != nil {
					return nil, fmt.Errorf("parse created_at: %w", err)
				}
			}
			e.CreatedAt = parsed
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// buildQuery constructs the SQL query and arguments from opts.
func buildQuery(opts QueryOpts) (string, []any) {
	var conditions []string
	var args []any

	query := "SELECT id, type, source, detail, created_at FROM events"

	if opts.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.Type)
	}
	if opts.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, opts.Source)
	}
	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.UTC().Format("2006-01-02 15:04:05"))
	}
	if opts.Before != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, opts.Before.UTC().Format("2006-01-02 15:04:05"))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	return query, args
}
