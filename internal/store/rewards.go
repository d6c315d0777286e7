package store

import (
	"context"
	"fmt"
	"time"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
)

// RecordRewards appends one history row per detail and adds each amount to
// the node's balance. The whole cycle commits or none of it does.
func (s *Store) RecordRewards(ctx context.Context, ts time.Time, details []model.RewardDetail) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reward transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range details {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rewards (node_name, reward_amount, reason, timestamp)
			VALUES (?, ?, ?, ?)`,
			d.Node, d.Reward, d.Reason, ts.Unix(),
		); err != nil {
			return fmt.Errorf("inserting reward for %s: %w", d.Node, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reward_balance (node_name, balance) VALUES (?, ?)
			ON CONFLICT(node_name) DO UPDATE SET balance = balance + excluded.balance`,
			d.Node, d.Reward,
		); err != nil {
			return fmt.Errorf("updating reward balance for %s: %w", d.Node, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rewards: %w", err)
	}
	return nil
}

// RewardHistory returns up to limit reward rows, newest first.
func (s *Store) RewardHistory(ctx context.Context, limit int) ([]model.RewardRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, node_name, reward_amount, reason, timestamp
		FROM rewards
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying reward history: %w", err)
	}
	defer rows.Close()

	var out []model.RewardRecord
	for rows.Next() {
		var r model.RewardRecord
		if err := rows.Scan(&r.ID, &r.Node, &r.Amount, &r.Reason, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning reward record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RewardBalances returns the cumulative reward per node.
func (s *Store) RewardBalances(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT node_name, balance FROM reward_balance`)
	if err != nil {
		return nil, fmt.Errorf("querying reward balances: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var bal float64
		if err := rows.Scan(&name, &bal); err != nil {
			return nil, fmt.Errorf("scanning reward balance: %w", err)
		}
		out[name] = bal
	}
	return out, rows.Err()
}

// SystemStats aggregates every node. The average latency only includes
// nodes that have reported a latency.
func (s *Store) SystemStats(ctx context.Context, window time.Duration) (model.SystemStats, error) {
	now := s.now()
	st := model.SystemStats{Timestamp: now.Unix()}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COALESCE(SUM(count), 0) FROM counters),
			(SELECT COUNT(*) FROM transactions WHERE timestamp > ?),
			(SELECT COALESCE(SUM(balance), 0) FROM reward_balance),
			(SELECT COALESCE(AVG(avg_latency), 0) FROM node_metrics WHERE avg_latency > 0),
			(SELECT COALESCE(MAX(latest_milestone), 0) FROM node_metrics)`,
		now.Add(-window).Unix(),
	).Scan(&st.TotalTx, &st.RecentTx, &st.TotalRewards, &st.AvgLatencyMs, &st.MaxMilestone)
	if err != nil {
		return st, fmt.Errorf("querying system stats: %w", err)
	}
	return st, nil
}
