// Package store handles SQLite persistence of finished session results.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Result is one finished practice session.
type Result struct {
	ID                int64
	EndedAt           time.Time
	Sentence          string
	WPM               float64
	CorrectChars      int
	IncorrectAttempts int
	DurationMs        int64
}

// Store wraps SQLite access for session results.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			ended_at TEXT NOT NULL,
			sentence TEXT NOT NULL,
			wpm REAL NOT NULL,
			correct_chars INTEGER NOT NULL,
			incorrect_attempts INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertResult stores a finished session and returns its row id.
func (s *Store) InsertResult(ctx context.Context, r Result) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (ended_at, sentence, wpm, correct_chars, incorrect_attempts, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.EndedAt.Format(time.RFC3339Nano),
		r.Sentence,
		r.WPM,
		r.CorrectChars,
		r.IncorrectAttempts,
		r.DurationMs,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListRecent returns up to limit results, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ended_at, sentence, wpm, correct_chars, incorrect_attempts, duration_ms
		 FROM sessions
		 ORDER BY ended_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var results []Result
	for rows.Next() {
		var r Result
		var endedAt string
		if err := rows.Scan(&r.ID, &endedAt, &r.Sentence, &r.WPM, &r.CorrectChars, &r.IncorrectAttempts, &r.DurationMs); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		r.EndedAt = parsed
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
