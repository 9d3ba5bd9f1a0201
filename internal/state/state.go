// Package state keeps the listener's change cursors and the history of pipeline runs in SQLite.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const cursorPrefix = "cursor:"

// Store is the SQLite state database
type Store struct {
	db *sql.DB
}

// RunRecord summarizes one finished pipeline run
type RunRecord struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Trigger    string    `json:"trigger"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Candidates int       `json:"candidates"`
	Processed  int       `json:"processed"`
	Cached     int       `json:"cached"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// Open opens (creating if needed) the state database at dbPath and ensures the schema exists
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initialize() error {
	schema := `
	-- Change cursors and other single values
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	-- Finished pipeline runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		trigger_kind TEXT NOT NULL DEFAULT '',
		started TEXT NOT NULL,
		finished TEXT NOT NULL,
		candidates INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		cached INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// GetValue returns the value stored under key, or "" when there is none
func (s *Store) GetValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetValue(key, value string) error {
	_, err := s.db.Exec("INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Cursor returns the last change cursor stored for account
func (s *Store) Cursor(account string) (string, error) {
	return s.GetValue(cursorPrefix + account)
}

func (s *Store) SetCursor(account, cursor string) error {
	return s.SetValue(cursorPrefix+account, cursor)
}

// RecordRun stores a finished run; recording the same ID twice replaces the first record
func (s *Store) RecordRun(r RunRecord) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO runs (id, source, trigger_kind, started, finished, candidates, processed, cached, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Source, r.Trigger,
		r.Started.UTC().Format(time.RFC3339Nano), r.Finished.UTC().Format(time.RFC3339Nano),
		r.Candidates, r.Processed, r.Cached, r.Failed, r.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, source, trigger_kind, started, finished, candidates, processed, cached, failed, error
		FROM runs ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Source, &r.Trigger, &started, &finished,
			&r.Candidates, &r.Processed, &r.Cached, &r.Failed, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		r.Finished, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
