package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// SQLite is the durable Store implementation. Every AtomicWrite runs in
// a single IMMEDIATE transaction: guards are checked inside the
// transaction, so a conditional write cannot race another writer.
type SQLite struct {
	db     *sql.DB
	hub    *hub
	logger *zerolog.Logger
}

// NewSQLite opens (and if necessary creates) the database at path.
func NewSQLite(path string, logger *zerolog.Logger) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	s := &SQLite{db: db, hub: newHub(), logger: logger}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("store initialized")
	return s, nil
}

func (s *SQLite) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS tree (
			path TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tree_path ON tree(path)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec %q: %w", q, err)
		}
	}
	return nil
}

// AtomicWrite applies all pairs in one transaction, checking guards
// against the versions read inside that transaction.
func (s *SQLite) AtomicWrite(ctx context.Context, pairs []Pair) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	written := make([]Entry, 0, len(pairs))
	for _, p := range pairs {
		var version int64
		err := tx.QueryRowContext(ctx, "SELECT version FROM tree WHERE path = ?", p.Path).Scan(&version)
		exists := err == nil
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("read version for %s: %w", p.Path, err)
		}

		switch {
		case p.Guard == GuardAny:
		case p.Guard == GuardAbsent:
			if exists {
				return ErrConflict
			}
		default:
			if !exists || version != p.Guard {
				return ErrConflict
			}
		}

		next := version + 1
		if !exists {
			next = 1
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tree (path, value, version, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				value = excluded.value,
				version = excluded.version,
				updated_at = excluded.updated_at`,
			p.Path, p.Value, next, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("write %s: %w", p.Path, err)
		}
		written = append(written, Entry{Path: p.Path, Value: p.Value, Version: next})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.hub.notify(written)
	return nil
}

// Read returns the entry at path, or (nil, nil) when absent.
func (s *SQLite) Read(ctx context.Context, path string) (*Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx,
		"SELECT path, value, version FROM tree WHERE path = ?", path,
	).Scan(&e.Path, &e.Value, &e.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &e, nil
}

// ReadPrefix returns all entries under prefix ordered by path.
func (s *SQLite) ReadPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT path, value, version FROM tree WHERE path LIKE ? || '%' ORDER BY path",
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("read prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Value, &e.Version); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Subscribe registers fn for entries written under prefix.
func (s *SQLite) Subscribe(prefix string, fn func(Entry)) func() {
	return s.hub.subscribe(prefix, fn)
}

// Ping reports store reachability for readiness probes.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
