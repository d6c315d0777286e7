// Package store provides SQLite persistence for Ledgerwatch.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUnknownNode is returned when a node has no row in the store. Call
// InitNodes for every configured node before polling.
var ErrUnknownNode = errors.New("unknown node")

// Store wraps a SQLite database for Ledgerwatch data persistence.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps and windows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens or creates a SQLite database at the given path and runs migrations.
func New(dbPath string, opts ...Option) (*Store, error) {
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitNodes creates the counter, metrics and balance rows for each node if
// they do not exist yet. Existing rows are left untouched.
func (s *Store) InitNodes(ctx context.Context, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning init transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().Unix()
	for _, name := range names {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO counters (node_name, count) VALUES (?, 0)`, name); err != nil {
			return fmt.Errorf("initializing counter for %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO node_metrics (node_name, last_seen, uptime_seconds, avg_latency, latest_milestone)
			VALUES (?, ?, 0, 0, 0)`, name, now); err != nil {
			return fmt.Errorf("initializing metrics for %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO reward_balance (node_name, balance) VALUES (?, 0)`, name); err != nil {
			return fmt.Errorf("initializing reward balance for %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing node init: %w", err)
	}
	return nil
}
