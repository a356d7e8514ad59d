// Package history persists executed source lines in SQLite so
// history_request can replay them across kernel restarts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded execution: the protocol represents it as the
// (session, line_number, source) triple.
type Entry struct {
	Session int
	Line    int
	Source  string
}

// Store is a SQLite-backed history log. Safe for use from the single
// dispatch goroutine; database/sql serializes access if more appear.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the history database at path and
// ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS history (
  session     INTEGER NOT NULL,
  line        INTEGER NOT NULL,
  source      TEXT NOT NULL,
  recorded_at TEXT NOT NULL,
  PRIMARY KEY (session, line)
);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records one executed source line.
func (s *Store) Append(ctx context.Context, session, line int, source string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO history(session, line, source, recorded_at) VALUES(?, ?, ?, ?);`,
		session, line, source, now)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Tail returns the most recent n entries, oldest first. n <= 0 returns all.
func (s *Store) Tail(ctx context.Context, n int) ([]Entry, error) {
	query := `SELECT session, line, source FROM history ORDER BY session DESC, line DESC`
	args := []any{}
	if n > 0 {
		query += ` LIMIT ?`
		args = append(args, n)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read history tail: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Search returns up to n entries whose source matches the LIKE-style
// pattern (* and ? wildcards), oldest first. unique collapses duplicates.
func (s *Store) Search(ctx context.Context, pattern string, n int, unique bool) ([]Entry, error) {
	like := likePattern(pattern)

	query := `SELECT session, line, source FROM history WHERE source LIKE ?`
	if unique {
		query = `SELECT session, MAX(line), source FROM history WHERE source LIKE ? GROUP BY source`
	}
	query += ` ORDER BY session, line`
	args := []any{like}
	if n > 0 {
		query += ` LIMIT ?`
		args = append(args, n)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Range returns entries [start, stop) of one session; stop <= 0 means to the
// session's end.
func (s *Store) Range(ctx context.Context, session, start, stop int) ([]Entry, error) {
	query := `SELECT session, line, source FROM history WHERE session = ? AND line >= ?`
	args := []any{session, start}
	if stop > 0 {
		query += ` AND line < ?`
		args = append(args, stop)
	}
	query += ` ORDER BY line`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read history range: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// MaxSession returns the highest recorded session number, 0 when empty.
func (s *Store) MaxSession(ctx context.Context) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(session) FROM history;`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("read max session: %w", err)
	}
	return int(max.Int64), nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Session, &e.Line, &e.Source); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}

// likePattern converts glob-style history patterns to SQL LIKE syntax.
func likePattern(pattern string) string {
	if pattern == "" {
		return "%"
	}
	out := make([]rune, 0, len(pattern))
	for _, r := range pattern {
		switch r {
		case '*':
			out = append(out, '%')
		case '?':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
