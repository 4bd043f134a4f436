package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS series_entries (
	series_key TEXT NOT NULL,
	score      REAL NOT NULL,
	member     TEXT NOT NULL,
	PRIMARY KEY (series_key, member)
);
CREATE INDEX IF NOT EXISTS series_entries_rank ON series_entries (series_key, score, member);
`

// SQLiteStore reads series from a SQLite table of (series_key, score, member)
// rows, ranked by score then member.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Range implements Store. The count and the page are read in one transaction
// so negative indexes resolve against the same snapshot.
func (s *SQLiteStore) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM series_entries WHERE series_key = ?`, key,
	).Scan(&n); err != nil {
		return nil, fmt.Errorf("%w: count %s: %w", ErrUnavailable, key, err)
	}

	lo, hi, ok := resolveRange(start, stop, n)
	if !ok {
		return []string{}, nil
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT member FROM series_entries WHERE series_key = ?
		 ORDER BY score, member LIMIT ? OFFSET ?`,
		key, hi-lo+1, lo,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: range %s: %w", ErrUnavailable, key, err)
	}
	defer rows.Close()

	members := make([]string, 0, hi-lo+1)
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %w", ErrUnavailable, key, err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: range %s: %w", ErrUnavailable, key, err)
	}
	return members, nil
}

// Add records member with score under key, replacing any previous score.
func (s *SQLiteStore) Add(ctx context.Context, key string, score float64, member string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO series_entries (series_key, score, member) VALUES (?, ?, ?)
		 ON CONFLICT (series_key, member) DO UPDATE SET score = excluded.score`,
		key, score, member,
	)
	if err != nil {
		return fmt.Errorf("%w: insert %s: %w", ErrUnavailable, key, err)
	}
	return nil
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrUnavailable, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
