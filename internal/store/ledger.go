package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
)

// IngestTransaction records txID for node. The insert and the counter
// increment commit together. A txID that is already present is a no-op and
// returns Added=false, whichever node first reported it.
func (s *Store) IngestTransaction(ctx context.Context, txID, node string, milestone int64) (model.IngestResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.IngestResult{}, fmt.Errorf("beginning ingest transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions (id, node_name, milestone_index, timestamp)
		VALUES (?, ?, ?, ?)`,
		txID, node, milestone, s.now().Unix(),
	)
	if err != nil {
		return model.IngestResult{}, fmt.Errorf("inserting transaction %s: %w", txID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.IngestResult{}, fmt.Errorf("inserting transaction %s: %w", txID, err)
	}
	if n == 0 {
		return model.IngestResult{Added: false}, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO counters (node_name, count) VALUES (?, 1)
		ON CONFLICT(node_name) DO UPDATE SET count = count + 1`, node); err != nil {
		return model.IngestResult{}, fmt.Errorf("incrementing counter for %s: %w", node, err)
	}

	var total int64
	if err := tx.QueryRowContext(ctx,
		`SELECT count FROM counters WHERE node_name = ?`, node).Scan(&total); err != nil {
		return model.IngestResult{}, fmt.Errorf("reading counter for %s: %w", node, err)
	}

	if err := tx.Commit(); err != nil {
		return model.IngestResult{}, fmt.Errorf("committing transaction %s: %w", txID, err)
	}
	return model.IngestResult{Added: true, Total: total}, nil
}

// RecentCount returns how many transactions node ingested strictly after
// now-since.
func (s *Store) RecentCount(ctx context.Context, node string, since time.Duration) (int64, error) {
	cutoff := s.now().Add(-since).Unix()
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE node_name = ? AND timestamp > ?`,
		node, cutoff,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting recent transactions for %s: %w", node, err)
	}
	return n, nil
}

// TransactionCount returns the node's running total. Unknown nodes count 0.
func (s *Store) TransactionCount(ctx context.Context, node string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM counters WHERE node_name = ?`, node).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading counter for %s: %w", node, err)
	}
	return n, nil
}

// Transaction looks up a single ingested transaction.
func (s *Store) Transaction(ctx context.Context, txID string) (model.Transaction, bool, error) {
	t := model.Transaction{ID: txID}
	err := s.db.QueryRowContext(ctx, `
		SELECT node_name, milestone_index, timestamp FROM transactions WHERE id = ?`, txID,
	).Scan(&t.Node, &t.MilestoneIndex, &t.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return t, false, nil
	}
	if err != nil {
		return t, false, fmt.Errorf("querying transaction %s: %w", txID, err)
	}
	return t, true, nil
}
