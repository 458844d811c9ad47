// Package journal keeps an append-only SQLite log of task attempts.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	graph_id    TEXT NOT NULL,
	graph_path  TEXT NOT NULL,
	task_id     TEXT NOT NULL,
	title       TEXT NOT NULL,
	executor    TEXT NOT NULL,
	status      TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	output      TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_graph ON attempts(graph_path, started_at);
`

// Entry is one recorded attempt.
type Entry struct {
	ID         string
	RunID      string
	GraphID    string
	GraphPath  string
	TaskID     string
	Title      string
	Executor   string
	Status     string
	Reason     string
	Output     string
	StartedAt  time.Time
	DurationMs int64
}

// Journal is the SQLite database handle.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// One connection serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends an attempt. A missing ID is generated.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO attempts (id, run_id, graph_id, graph_path, task_id, title, executor, status, reason, output, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RunID, e.GraphID, e.GraphPath, e.TaskID, e.Title, e.Executor, e.Status, e.Reason, e.Output,
		e.StartedAt.UnixMilli(), e.DurationMs)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// History returns attempts for a WorkGraph file, oldest first. limit <= 0
// returns everything.
func (j *Journal) History(ctx context.Context, graphPath string, limit int) ([]Entry, error) {
	query := `
		SELECT id, run_id, graph_id, graph_path, task_id, title, executor, status, reason, output, started_at, duration_ms
		FROM attempts WHERE graph_path = ? ORDER BY started_at, rowid`
	args := []any{graphPath}
	if limit > 0 {
		// Newest N, still returned oldest first.
		query = `
		SELECT id, run_id, graph_id, graph_path, task_id, title, executor, status, reason, output, started_at, duration_ms FROM (
			SELECT rowid AS rid, * FROM attempts WHERE graph_path = ? ORDER BY started_at DESC, rowid DESC LIMIT ?
		) ORDER BY started_at, rid`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var started int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.GraphID, &e.GraphPath, &e.TaskID, &e.Title, &e.Executor,
			&e.Status, &e.Reason, &e.Output, &started, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		e.StartedAt = time.UnixMilli(started).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats summarises attempts for a WorkGraph file per status.
func (j *Journal) Stats(ctx context.Context, graphPath string) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM attempts WHERE graph_path = ? GROUP BY status`, graphPath)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}
