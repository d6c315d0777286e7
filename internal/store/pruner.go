package store

import (
	"context"
	"log/slog"
	"time"
)

// AlertRetention is how long alert_log rows are kept by default. The ledger,
// counters, metrics and rewards are permanent.
const AlertRetention = 30 * 24 * time.Hour

const pruneInterval = time.Hour

// Pruner trims the alert log on a fixed interval.
type Pruner struct {
	store    *Store
	keep     time.Duration
	interval time.Duration
}

// NewPruner returns a pruner that drops alerts older than keep. A keep of
// zero or less disables pruning.
func NewPruner(s *Store, keep time.Duration) *Pruner {
	return &Pruner{store: s, keep: keep, interval: pruneInterval}
}

// Run prunes once immediately and then every interval until ctx is done.
func (p *Pruner) Run(ctx context.Context) error {
	slog.Info("pruner started", "interval", p.interval, "keep", p.keep)
	defer slog.Info("pruner stopped")

	for {
		if n, err := p.PruneOnce(ctx); err != nil {
			slog.Error("pruning alert log", "error", err)
		} else if n > 0 {
			slog.Info("pruned alert log", "rows", n)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

// PruneOnce deletes alerts older than the retention window and returns how
// many rows went.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	if p.keep <= 0 {
		return 0, nil
	}
	return p.store.PruneAlerts(ctx, p.store.now().Add(-p.keep))
}
