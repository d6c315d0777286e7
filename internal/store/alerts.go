package store

import (
	"context"
	"fmt"
	"time"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
)

// InsertAlert logs a fired or resolved alert.
func (s *Store) InsertAlert(ctx context.Context, n model.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_log (ts, alert_type, node_name, message, severity, resolved)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.Timestamp.Unix(), n.AlertType, n.Node, n.Message, n.Severity, n.Resolved,
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]model.AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, alert_type, node_name, message, severity, resolved
		FROM alert_log
		ORDER BY ts DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var out []model.AlertRecord
	for rows.Next() {
		var a model.AlertRecord
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.AlertType, &a.Node, &a.Message, &a.Severity, &a.Resolved); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PruneAlerts deletes alerts logged before cutoff and returns the number of
// rows removed.
func (s *Store) PruneAlerts(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_log WHERE ts < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning alerts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning alerts: %w", err)
	}
	return n, nil
}
