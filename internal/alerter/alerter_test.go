package alerter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darshan-rambhia/ledgerwatch/internal/cache"
	"github.com/darshan-rambhia/ledgerwatch/internal/model"
	"github.com/darshan-rambhia/ledgerwatch/internal/notify"
	"github.com/darshan-rambhia/ledgerwatch/internal/store"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// inbox records delivered notifications and optionally fails every send.
type inbox struct {
	mu   sync.Mutex
	err  error
	sent []model.Notification
}

func (b *inbox) Name() string { return "inbox" }

func (b *inbox) Send(_ context.Context, n model.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, n)
	return b.err
}

func (b *inbox) last(t *testing.T) model.Notification {
	t.Helper()
	require.NotEmpty(t, b.sent)
	return b.sent[len(b.sent)-1]
}

var _ notify.Provider = (*inbox)(nil)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// fixture is an alerter on a hand-driven clock.
type fixture struct {
	a     *Alerter
	cache *cache.Cache
	store *store.Store
	box   *inbox
	now   time.Time
}

func newFixture(t *testing.T, cfg AlertConfig) *fixture {
	t.Helper()
	f := &fixture{cache: cache.New(), store: openStore(t), box: &inbox{}, now: t0}
	f.a = NewAlerter(f.cache, f.store, []notify.Provider{f.box}, cfg)
	f.a.now = func() time.Time { return f.now }
	f.a.started = t0
	return f
}

// at moves the clock to t0+d, applies polls and evaluates once.
func (f *fixture) at(d time.Duration, polls ...model.PollStatus) {
	f.now = t0.Add(d)
	for _, p := range polls {
		f.cache.UpdatePoll(p)
	}
	f.a.evaluate(context.Background())
}

func up(name string, milestone int64, latency float64) model.PollStatus {
	return model.PollStatus{Node: name, Reachable: true, MilestoneIndex: milestone, LatencyMs: latency}
}

func down(name string) model.PollStatus {
	return model.PollStatus{Node: name, LatencyMs: 5000, Error: "node unreachable: connection refused"}
}

// describe renders n as "fired|resolved type node" for scenario tables.
func describe(n model.Notification) string {
	event := "fired"
	if n.Resolved {
		event = "resolved"
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", event, n.AlertType, n.Node))
}

func TestDefaultAlertConfig(t *testing.T) {
	cfg := DefaultAlertConfig()
	require.NotNil(t, cfg.NodeDown)
	require.NotNil(t, cfg.SyncLag)
	require.NotNil(t, cfg.LatencyHigh)
	require.NotNil(t, cfg.RewardStale)

	assert.Equal(t, time.Minute, cfg.NodeDown.GracePeriod)
	assert.Equal(t, "critical", cfg.NodeDown.Severity)
	assert.Equal(t, 30*time.Minute, cfg.NodeDown.Cooldown)
	assert.InDelta(t, 10.0, cfg.SyncLag.Threshold, 1e-12)
	assert.Equal(t, 2*time.Minute, cfg.SyncLag.Duration)
	assert.InDelta(t, 2000.0, cfg.LatencyHigh.Threshold, 1e-12)
	assert.Equal(t, 5*time.Minute, cfg.LatencyHigh.Duration)
	assert.Equal(t, 15*time.Minute, cfg.RewardStale.MaxAge)
}

func TestNewAlerter(t *testing.T) {
	a := NewAlerter(cache.New(), openStore(t), nil, DefaultAlertConfig())
	assert.Equal(t, 30*time.Second, a.interval)
	assert.NotNil(t, a.states)
	assert.False(t, a.started.IsZero())
}

func TestEvaluate_Scenarios(t *testing.T) {
	def := DefaultAlertConfig()

	type step struct {
		at       time.Duration
		polls    []model.PollStatus
		rewardAt time.Duration // records a reward cycle at t0+rewardAt when non-zero
		want     []string
	}
	tests := []struct {
		name  string
		cfg   AlertConfig
		steps []step
	}{
		{
			name: "node down after grace then resolved",
			cfg:  def,
			steps: []step{
				{at: 0, polls: []model.PollStatus{down("Hornet-1")}},
				{at: 30 * time.Second},
				{at: time.Minute, want: []string{"fired node_down Hornet-1"}},
				{at: 2 * time.Minute},
				{at: 3 * time.Minute, polls: []model.PollStatus{up("Hornet-1", 10, 40)}, want: []string{"resolved node_down Hornet-1"}},
				{at: 4 * time.Minute},
			},
		},
		{
			name: "relapse after resolve waits only for grace",
			cfg:  AlertConfig{NodeDown: def.NodeDown},
			steps: []step{
				{at: 0, polls: []model.PollStatus{down("Hornet-1")}},
				{at: time.Minute, want: []string{"fired node_down Hornet-1"}},
				{at: 2 * time.Minute, polls: []model.PollStatus{up("Hornet-1", 1, 10)}, want: []string{"resolved node_down Hornet-1"}},
				{at: 3 * time.Minute, polls: []model.PollStatus{down("Hornet-1")}},
				{at: 4 * time.Minute, want: []string{"fired node_down Hornet-1"}},
			},
		},
		{
			name: "sustained outage repeats after cooldown",
			cfg:  AlertConfig{NodeDown: def.NodeDown},
			steps: []step{
				{at: 0, polls: []model.PollStatus{down("Hornet-1")}},
				{at: time.Minute, want: []string{"fired node_down Hornet-1"}},
				{at: 20 * time.Minute},
				{at: 31 * time.Minute, want: []string{"fired node_down Hornet-1"}},
			},
		},
		{
			name: "sync lag",
			cfg:  AlertConfig{SyncLag: def.SyncLag},
			steps: []step{
				{at: 0, polls: []model.PollStatus{up("Hornet-1", 100, 40), up("Hornet-2", 85, 40)}},
				{at: time.Minute},
				{at: 2 * time.Minute, want: []string{"fired sync_lag Hornet-2"}},
				{at: 3 * time.Minute, polls: []model.PollStatus{up("Hornet-2", 99, 40)}, want: []string{"resolved sync_lag Hornet-2"}},
			},
		},
		{
			name: "sync lag hold restarts when it clears",
			cfg:  AlertConfig{SyncLag: def.SyncLag},
			steps: []step{
				{at: 0, polls: []model.PollStatus{up("Hornet-1", 100, 40), up("Hornet-2", 85, 40)}},
				{at: time.Minute, polls: []model.PollStatus{up("Hornet-2", 99, 40)}},
				{at: 2 * time.Minute, polls: []model.PollStatus{up("Hornet-2", 85, 40)}},
				{at: 3 * time.Minute},
				{at: 4 * time.Minute, want: []string{"fired sync_lag Hornet-2"}},
			},
		},
		{
			name: "unreachable node is not the sync reference",
			cfg:  AlertConfig{SyncLag: def.SyncLag},
			steps: []step{
				{at: 0, polls: []model.PollStatus{{Node: "Hornet-1", MilestoneIndex: 500}, up("Hornet-2", 85, 40)}},
				{at: 10 * time.Minute},
			},
		},
		{
			name: "outage restarts sync lag hold",
			cfg:  AlertConfig{SyncLag: def.SyncLag},
			steps: []step{
				{at: 0, polls: []model.PollStatus{up("Hornet-1", 100, 40), up("Hornet-2", 80, 40)}},
				{at: time.Minute, polls: []model.PollStatus{down("Hornet-2")}},
				{at: 30 * time.Minute},
				{at: 30*time.Minute + 30*time.Second, polls: []model.PollStatus{up("Hornet-2", 80, 40)}},
				{at: 32 * time.Minute},
				{at: 32*time.Minute + 30*time.Second, want: []string{"fired sync_lag Hornet-2"}},
			},
		},
		{
			name: "outage keeps a fired lag alert until it clears",
			cfg:  AlertConfig{SyncLag: def.SyncLag},
			steps: []step{
				{at: 0, polls: []model.PollStatus{up("Hornet-1", 100, 40), up("Hornet-2", 80, 40)}},
				{at: 2 * time.Minute, want: []string{"fired sync_lag Hornet-2"}},
				{at: 3 * time.Minute, polls: []model.PollStatus{down("Hornet-2")}},
				{at: 4 * time.Minute, polls: []model.PollStatus{up("Hornet-2", 100, 40)}, want: []string{"resolved sync_lag Hornet-2"}},
			},
		},
		{
			name: "outage restarts latency hold",
			cfg:  AlertConfig{LatencyHigh: def.LatencyHigh},
			steps: []step{
				{at: 0, polls: []model.PollStatus{up("Hornet-1", 10, 2500)}},
				{at: time.Minute, polls: []model.PollStatus{down("Hornet-1")}},
				{at: 10 * time.Minute, polls: []model.PollStatus{up("Hornet-1", 10, 2500)}},
				{at: 14 * time.Minute},
				{at: 15 * time.Minute, want: []string{"fired latency_high Hornet-1"}},
			},
		},
		{
			name: "latency high",
			cfg:  AlertConfig{LatencyHigh: def.LatencyHigh},
			steps: []step{
				{at: 0, polls: []model.PollStatus{up("Hornet-1", 10, 2500)}},
				{at: 4 * time.Minute},
				{at: 5 * time.Minute, want: []string{"fired latency_high Hornet-1"}},
				{at: 6 * time.Minute, polls: []model.PollStatus{up("Hornet-1", 10, 100)}, want: []string{"resolved latency_high Hornet-1"}},
			},
		},
		{
			name: "latency ignored while unreachable",
			cfg:  AlertConfig{LatencyHigh: def.LatencyHigh},
			steps: []step{
				{at: 0, polls: []model.PollStatus{down("Hornet-1")}},
				{at: time.Hour},
			},
		},
		{
			name: "reward stale measured from start",
			cfg:  AlertConfig{RewardStale: def.RewardStale},
			steps: []step{
				{at: 15 * time.Minute},
				{at: 16 * time.Minute, want: []string{"fired reward_stale"}},
				{at: 17 * time.Minute},
				{at: 18 * time.Minute, rewardAt: 17*time.Minute + 30*time.Second, want: []string{"resolved reward_stale"}},
			},
		},
		{
			name: "all rules disabled",
			cfg:  AlertConfig{},
			steps: []step{
				{at: 0, polls: []model.PollStatus{down("Hornet-1"), up("Hornet-2", 1, 9999), up("Hornet-3", 1000, 10)}},
				{at: 24 * time.Hour},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.cfg)
			for _, s := range tt.steps {
				if s.rewardAt > 0 {
					f.cache.SetRewards(t0.Add(s.rewardAt), nil)
				}
				before := len(f.box.sent)
				f.at(s.at, s.polls...)

				var got []string
				for _, n := range f.box.sent[before:] {
					got = append(got, describe(n))
				}
				assert.ElementsMatch(t, s.want, got, "at %s", s.at)
			}
		})
	}
}

func TestNotificationContent(t *testing.T) {
	def := DefaultAlertConfig()

	t.Run("node down", func(t *testing.T) {
		f := newFixture(t, AlertConfig{NodeDown: def.NodeDown})
		f.at(0, down("Hornet-1"))
		f.at(time.Minute)

		n := f.box.last(t)
		assert.Equal(t, "critical", n.Severity)
		assert.Equal(t, "Node Down: Hornet-1", n.Title)
		assert.Equal(t, "[Hornet-1] unreachable for 1m0s: node unreachable: connection refused", n.Message)
		assert.Equal(t, "node unreachable: connection refused", n.Metadata["error"])
		assert.Equal(t, t0.Add(time.Minute), n.Timestamp)

		f.at(2*time.Minute, up("Hornet-1", 1, 10))
		r := f.box.last(t)
		assert.True(t, r.Resolved)
		assert.Equal(t, "info", r.Severity)
		assert.Equal(t, "Resolved: Node Down: Hornet-1", r.Title)
		assert.Equal(t, "node down condition cleared", r.Message)
		assert.Equal(t, "Hornet-1", r.Node)
	})

	t.Run("sync lag", func(t *testing.T) {
		f := newFixture(t, AlertConfig{SyncLag: def.SyncLag})
		f.at(0, up("Hornet-1", 100, 40), up("Hornet-2", 85, 40))
		f.at(2 * time.Minute)

		n := f.box.last(t)
		assert.Equal(t, "warning", n.Severity)
		assert.Equal(t, "[Hornet-2] 15 milestones behind (at 85, best 100)", n.Message)
		assert.Equal(t, "15", n.Metadata["lag"])
	})

	t.Run("latency", func(t *testing.T) {
		f := newFixture(t, AlertConfig{LatencyHigh: def.LatencyHigh})
		f.at(0, up("Hornet-1", 10, 2500))
		f.at(5 * time.Minute)

		n := f.box.last(t)
		assert.Equal(t, "[Hornet-1] latency at 2500.0ms for 5m0s", n.Message)
		assert.Equal(t, "2500.0", n.Metadata["latency_ms"])
	})

	t.Run("reward stale", func(t *testing.T) {
		f := newFixture(t, AlertConfig{RewardStale: def.RewardStale})
		f.at(16 * time.Minute)

		n := f.box.last(t)
		assert.Empty(t, n.Node)
		assert.Equal(t, "Reward Cycle Stale", n.Title)
		assert.Equal(t, "no reward cycle completed for 16m0s", n.Message)
	})
}

func TestDeliver_LogsFiredAndResolved(t *testing.T) {
	f := newFixture(t, AlertConfig{NodeDown: DefaultAlertConfig().NodeDown})
	f.at(0, down("Hornet-1"))
	f.at(time.Minute)
	f.at(2*time.Minute, up("Hornet-1", 1, 10))

	alerts, err := f.store.RecentAlerts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.True(t, alerts[0].Resolved)
	assert.False(t, alerts[1].Resolved)
	assert.Equal(t, "Hornet-1", alerts[1].Node)
	assert.Equal(t, "critical", alerts[1].Severity)
}

func TestDeliver_ProviderFailureStillLogged(t *testing.T) {
	f := newFixture(t, AlertConfig{RewardStale: DefaultAlertConfig().RewardStale})
	f.box.err = errors.New("provider unavailable")
	f.at(time.Hour)

	assert.Len(t, f.box.sent, 1)
	alerts, err := f.store.RecentAlerts(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestDeliver_StoreFailureStillNotifies(t *testing.T) {
	f := newFixture(t, AlertConfig{RewardStale: DefaultAlertConfig().RewardStale})
	require.NoError(t, f.store.Close())
	f.at(time.Hour)

	assert.Len(t, f.box.sent, 1)
}

func TestDeliver_EveryProvider(t *testing.T) {
	a, b := &inbox{}, &inbox{}
	al := NewAlerter(cache.New(), openStore(t), []notify.Provider{a, b}, AlertConfig{RewardStale: DefaultAlertConfig().RewardStale})
	al.started = t0
	al.now = func() time.Time { return t0.Add(time.Hour) }

	al.evaluate(context.Background())
	assert.Len(t, a.sent, 1)
	assert.Len(t, b.sent, 1)
}

func TestCleanup(t *testing.T) {
	f := newFixture(t, DefaultAlertConfig())
	f.a.states["active"] = &state{fired: t0, active: &model.Notification{AlertType: "node_down"}}
	f.a.states["holding"] = &state{since: t0}
	f.a.states["idle"] = &state{fired: t0}
	f.a.states["recent"] = &state{fired: t0.Add(5 * time.Hour)}

	f.a.cleanup(t0.Add(7 * time.Hour))

	assert.Contains(t, f.a.states, "active")
	assert.Contains(t, f.a.states, "holding")
	assert.Contains(t, f.a.states, "recent")
	assert.NotContains(t, f.a.states, "idle")
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, DefaultAlertConfig())
	f.a.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.a.Run(ctx) }()

	time.Sleep(40 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
