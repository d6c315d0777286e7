package store

import (
	"context"
	"testing"
	"time"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAlert_RecentAlerts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.InsertAlert(ctx, model.Notification{
		AlertType: "node_down", Severity: "critical", Node: "Hornet-1",
		Message: "Hornet-1 unreachable for 2m", Timestamp: t0,
	}))
	require.NoError(t, s.InsertAlert(ctx, model.Notification{
		AlertType: "node_down", Severity: "info", Node: "Hornet-1",
		Message: "Hornet-1 reachable again", Timestamp: t0.Add(time.Minute), Resolved: true,
	}))
	require.NoError(t, s.InsertAlert(ctx, model.Notification{
		AlertType: "reward_stale", Severity: "warning",
		Message: "no reward cycle for 20m", Timestamp: t0.Add(2 * time.Minute),
	}))

	alerts, err := s.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 3)

	assert.Equal(t, "reward_stale", alerts[0].AlertType)
	assert.Empty(t, alerts[0].Node)
	assert.True(t, alerts[1].Resolved)
	assert.Equal(t, t0.Add(time.Minute).Unix(), alerts[1].Timestamp)
	assert.False(t, alerts[2].Resolved)
	assert.Equal(t, "critical", alerts[2].Severity)

	limited, err := s.RecentAlerts(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecentAlerts_Empty(t *testing.T) {
	alerts, err := newTestStore(t).RecentAlerts(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestPruneAlerts_Cutoff(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i, msg := range []string{"a", "b", "c"} {
		require.NoError(t, s.InsertAlert(ctx, model.Notification{
			AlertType: "latency_high", Severity: "warning", Message: msg,
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
		}))
	}

	// The cutoff itself is kept.
	n, err := s.PruneAlerts(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	alerts, err := s.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "c", alerts[0].Message)
	assert.Equal(t, "b", alerts[1].Message)

	n, err = s.PruneAlerts(ctx, t0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPrunerRun_CancelledContext(t *testing.T) {
	p := NewPruner(newTestStore(t), AlertRetention)
	assert.Equal(t, time.Hour, p.interval)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)
}

func TestPruneOnce_KeepsLedgerAndRewards(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore(t)
	require.NoError(t, s.InitNodes(ctx, []string{"Hornet-1"}))

	require.NoError(t, s.InsertAlert(ctx, model.Notification{
		AlertType: "node_down", Node: "Hornet-1", Message: "old", Severity: "critical", Timestamp: t0,
	}))
	_, err := s.IngestTransaction(ctx, "0xold", "Hornet-1", 1)
	require.NoError(t, err)
	require.NoError(t, s.RecordRewards(ctx, t0, []model.RewardDetail{{Node: "Hornet-1", Reward: 0.5, Reason: "r"}}))

	clock.Advance(AlertRetention + 24*time.Hour)
	require.NoError(t, s.InsertAlert(ctx, model.Notification{
		AlertType: "node_down", Node: "Hornet-1", Message: "recent", Severity: "critical", Timestamp: clock.Now(),
	}))

	n, err := NewPruner(s, AlertRetention).PruneOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	alerts, err := s.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "recent", alerts[0].Message)

	count, err := s.TransactionCount(ctx, "Hornet-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	history, err := s.RewardHistory(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestPruneOnce_Disabled(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore(t)
	require.NoError(t, s.InsertAlert(ctx, model.Notification{
		AlertType: "sync_lag", Message: "old", Severity: "warning", Timestamp: t0,
	}))
	clock.Advance(365 * 24 * time.Hour)

	n, err := NewPruner(s, 0).PruneOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	alerts, err := s.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestPruneAlerts_ClosedStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := NewPruner(s, AlertRetention).PruneOnce(context.Background())
	assert.ErrorContains(t, err, "pruning alerts")
}
