package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial requests table
const currentSchemaVersion = 1

// Journal is an append-only SQLite log of requests sent to the server.
// Safe for concurrent use; writes are serialized through a single connection.
type Journal struct {
	db *sql.DB
}

// Entry is one journaled request.
type Entry struct {
	ID        int64
	StartedAt time.Time
	Operation string
	Method    string
	URL       string
	Status    int // 0 when the request failed before a response arrived
	Duration  time.Duration
	Error     string
}

// Open creates or opens a journal database at path.
//
// The database is configured with:
//   - WAL mode so `history` can read while a query is running
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// Open is idempotent.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends an entry and returns its id. e.ID is ignored.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO requests
		(started_at, operation, method, url, status, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.StartedAt.UnixMilli(),
		e.Operation,
		e.Method,
		e.URL,
		e.Status,
		e.Duration.Milliseconds(),
		e.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("record request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record request: %w", err)
	}
	return id, nil
}

// Recent returns up to n entries, newest first. n <= 0 returns all entries.
// Returns an empty slice (not nil) when the journal is empty.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = -1 // SQLite: no limit
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, operation, method, url, status, duration_ms, error
		FROM requests
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			startedAt  int64
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &startedAt, &e.Operation, &e.Method, &e.URL, &e.Status, &durationMS, &e.Error); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		e.StartedAt = time.UnixMilli(startedAt).UTC()
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}

	return entries, nil
}

// Count returns the number of journaled requests.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM requests").Scan(&n); err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return n, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}
