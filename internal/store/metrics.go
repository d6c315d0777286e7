package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
)

// latencyAlpha is the weight of the newest sample in the latency EMA.
const latencyAlpha = 0.2

// UpdateMetrics folds one poll result into a node's health row.
//
// Uptime grows by the wall-clock time since the previous update whether or
// not the poll succeeded. A nil latency leaves the average untouched; the
// first sample replaces a zero average outright. A nil milestone leaves the
// stored index untouched. All of it happens in a single UPDATE statement.
func (s *Store) UpdateMetrics(ctx context.Context, node string, latencyMs *float64, milestone *int64) error {
	now := s.now().Unix()

	var lat sql.NullFloat64
	if latencyMs != nil {
		lat = sql.NullFloat64{Float64: *latencyMs, Valid: true}
	}
	var ms sql.NullInt64
	if milestone != nil {
		ms = sql.NullInt64{Int64: *milestone, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE node_metrics SET
			uptime_seconds = uptime_seconds + MAX(0, ?1 - last_seen),
			avg_latency = CASE
				WHEN ?2 IS NULL THEN avg_latency
				WHEN avg_latency = 0 THEN ?2
				ELSE avg_latency * ?3 + ?2 * ?4
			END,
			latest_milestone = COALESCE(?5, latest_milestone),
			last_seen = ?1
		WHERE node_name = ?6`,
		now, lat, 1-latencyAlpha, latencyAlpha, ms, node,
	)
	if err != nil {
		return fmt.Errorf("updating metrics for %s: %w", node, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating metrics for %s: %w", node, err)
	}
	if n == 0 {
		return fmt.Errorf("updating metrics for %s: %w", node, ErrUnknownNode)
	}
	return nil
}

// NodeMetrics returns the stored health row for a node.
func (s *Store) NodeMetrics(ctx context.Context, node string) (model.NodeMetrics, error) {
	m := model.NodeMetrics{Node: node}
	err := s.db.QueryRowContext(ctx, `
		SELECT last_seen, uptime_seconds, avg_latency, latest_milestone
		FROM node_metrics WHERE node_name = ?`, node,
	).Scan(&m.LastSeen, &m.UptimeSeconds, &m.AvgLatencyMs, &m.LatestMilestone)
	if errors.Is(err, sql.ErrNoRows) {
		return m, fmt.Errorf("querying metrics for %s: %w", node, ErrUnknownNode)
	}
	if err != nil {
		return m, fmt.Errorf("querying metrics for %s: %w", node, err)
	}
	return m, nil
}

// NodeSummaries returns one row per known node joining its counter, metrics,
// balance and the number of transactions ingested within window. The rows
// come from a single statement so every node is read from the same snapshot.
func (s *Store) NodeSummaries(ctx context.Context, window time.Duration) ([]model.NodeSummary, error) {
	since := s.now().Add(-window).Unix()
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.node_name,
			COALESCE(c.count, 0),
			(SELECT COUNT(*) FROM transactions t WHERE t.node_name = m.node_name AND t.timestamp > ?),
			COALESCE(b.balance, 0),
			m.uptime_seconds,
			m.avg_latency,
			m.latest_milestone
		FROM node_metrics m
		LEFT JOIN counters c ON c.node_name = m.node_name
		LEFT JOIN reward_balance b ON b.node_name = m.node_name
		ORDER BY m.node_name`, since)
	if err != nil {
		return nil, fmt.Errorf("querying node summaries: %w", err)
	}
	defer rows.Close()

	var out []model.NodeSummary
	for rows.Next() {
		var n model.NodeSummary
		if err := rows.Scan(&n.Node, &n.TotalTx, &n.RecentTx, &n.RewardBalance,
			&n.UptimeSeconds, &n.AvgLatencyMs, &n.LatestMilestone); err != nil {
			return nil, fmt.Errorf("scanning node summary: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
