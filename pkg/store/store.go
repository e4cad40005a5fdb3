// Package store keeps a history of grading runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite

	"github.com/ormasoftchile/webgrade/pkg/runner"
)

// ErrNotFound is returned for an unknown run ID.
var ErrNotFound = errors.New("report not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  assignment INTEGER NOT NULL,
  base_url TEXT NOT NULL,
  status TEXT NOT NULL,
  strict INTEGER NOT NULL DEFAULT 0,
  earned REAL NOT NULL,
  possible REAL NOT NULL,
  percentage REAL NOT NULL,
  started_at INTEGER NOT NULL,
  result_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_assignment ON runs(assignment, started_at);
`

// Summary is one row of the run history.
type Summary struct {
	ID         string    `json:"id"`
	Assignment int       `json:"assignment"`
	BaseURL    string    `json:"baseUrl"`
	Status     string    `json:"status"`
	Strict     bool      `json:"strict"`
	Earned     float64   `json:"earned"`
	Possible   float64   `json:"possible"`
	Percentage float64   `json:"percentage"`
	StartedAt  time.Time `json:"startedAt"`
}

// Store is the run history.
type Store struct {
	db *sql.DB
}

// DSN turns a file path into a modernc sqlite DSN. DSNs and ":memory:" pass
// through.
func DSN(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Open opens the database and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "webgrade.db"
	}
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// one writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Put records a run, replacing any earlier row with the same ID.
func (s *Store) Put(ctx context.Context, res *runner.Result) error {
	blob, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO runs
		(id, assignment, base_url, status, strict, earned, possible, percentage, started_at, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET status=excluded.status, earned=excluded.earned,
			possible=excluded.possible, percentage=excluded.percentage, result_json=excluded.result_json`,
		res.RunID, res.Assignment, res.BaseURL, res.Status, res.Strict,
		res.Summary.TotalEarned, res.Summary.TotalPossible, res.Summary.Percentage,
		res.StartedAt.UnixMilli(), string(blob))
	if err != nil {
		return fmt.Errorf("store run %s: %w", res.RunID, err)
	}
	return nil
}

// Get loads the full result of a run.
func (s *Store) Get(ctx context.Context, id string) (*runner.Result, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM runs WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	var res runner.Result
	if err := json.Unmarshal([]byte(blob), &res); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &res, nil
}

// List returns the newest runs first. Assignment 0 lists every assignment;
// limit 0 means no limit.
func (s *Store) List(ctx context.Context, assignment, limit int) ([]Summary, error) {
	q := `SELECT id, assignment, base_url, status, strict, earned, possible, percentage, started_at FROM runs`
	var args []any
	if assignment > 0 {
		q += ` WHERE assignment = ?`
		args = append(args, assignment)
	}
	q += ` ORDER BY started_at DESC, id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var started int64
		if err := rows.Scan(&sum.ID, &sum.Assignment, &sum.BaseURL, &sum.Status, &sum.Strict,
			&sum.Earned, &sum.Possible, &sum.Percentage, &started); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		sum.StartedAt = time.UnixMilli(started).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}
