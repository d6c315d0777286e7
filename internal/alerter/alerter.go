// Package alerter evaluates alert rules against the scheduler's live state.
package alerter

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/darshan-rambhia/ledgerwatch/internal/cache"
	"github.com/darshan-rambhia/ledgerwatch/internal/model"
	"github.com/darshan-rambhia/ledgerwatch/internal/notify"
	"github.com/darshan-rambhia/ledgerwatch/internal/store"
)

// AlertConfig holds configuration for alert rules. A nil rule is disabled.
type AlertConfig struct {
	NodeDown    *NodeDownAlert
	SyncLag     *ThresholdAlert // threshold in milestones behind the best node
	LatencyHigh *ThresholdAlert // threshold in milliseconds
	RewardStale *StaleAlert
}

// ThresholdAlert triggers when a value stays at or above a threshold.
type ThresholdAlert struct {
	Threshold float64
	Duration  time.Duration
	Severity  string
	Cooldown  time.Duration
}

// NodeDownAlert triggers when a node stays unreachable for too long.
type NodeDownAlert struct {
	GracePeriod time.Duration
	Severity    string
	Cooldown    time.Duration
}

// StaleAlert triggers when a periodic event has not happened for MaxAge.
type StaleAlert struct {
	MaxAge   time.Duration
	Severity string
	Cooldown time.Duration
}

// DefaultAlertConfig returns sensible alert defaults.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		NodeDown: &NodeDownAlert{
			GracePeriod: 1 * time.Minute, Severity: "critical", Cooldown: 30 * time.Minute,
		},
		SyncLag: &ThresholdAlert{
			Threshold: 10, Duration: 2 * time.Minute, Severity: "warning", Cooldown: 1 * time.Hour,
		},
		LatencyHigh: &ThresholdAlert{
			Threshold: 2000, Duration: 5 * time.Minute, Severity: "warning", Cooldown: 1 * time.Hour,
		},
		RewardStale: &StaleAlert{
			MaxAge: 15 * time.Minute, Severity: "warning", Cooldown: 1 * time.Hour,
		},
	}
}

// stateTTL is how long an idle key's state is kept after its last firing.
const stateTTL = 6 * time.Hour

// state tracks one alert key: when its condition started holding, when it
// last fired, and the fired notification awaiting a resolve.
type state struct {
	since  time.Time
	fired  time.Time
	active *model.Notification
}

// Alerter evaluates rules and sends notifications.
type Alerter struct {
	cache     *cache.Cache
	store     *store.Store
	providers []notify.Provider
	config    AlertConfig
	interval  time.Duration
	now       func() time.Time
	started   time.Time
	states    map[string]*state
}

// NewAlerter creates a new alerter.
func NewAlerter(c *cache.Cache, s *store.Store, providers []notify.Provider, cfg AlertConfig) *Alerter {
	a := &Alerter{
		cache:     c,
		store:     s,
		providers: providers,
		config:    cfg,
		interval:  30 * time.Second,
		now:       time.Now,
		states:    make(map[string]*state),
	}
	a.started = a.now()
	return a
}

// Run evaluates the rules every interval until ctx is cancelled.
func (a *Alerter) Run(ctx context.Context) error {
	slog.Info("alerter started", "interval", a.interval, "providers", len(a.providers))
	defer slog.Info("alerter stopped")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.evaluate(ctx)
		}
	}
}

func (a *Alerter) evaluate(ctx context.Context) {
	snap := a.cache.Snapshot()
	now := a.now()
	a.cleanup(now)

	var best int64
	for _, p := range snap.Polls {
		if p.Reachable && p.MilestoneIndex > best {
			best = p.MilestoneIndex
		}
	}

	for _, name := range slices.Sorted(maps.Keys(snap.Polls)) {
		p := snap.Polls[name]

		if cfg := a.config.NodeDown; cfg != nil {
			a.observe(ctx, now, "node_down:"+name, !p.Reachable, cfg.GracePeriod, cfg.Cooldown,
				func(down time.Duration) model.Notification {
					return model.Notification{
						AlertType: "node_down",
						Severity:  cfg.Severity,
						Title:     "Node Down: " + name,
						Message:   fmt.Sprintf("[%s] unreachable for %s: %s", name, down.Round(time.Second), p.Error),
						Node:      name,
						Metadata:  map[string]string{"error": p.Error},
					}
				})
		}

		// Lag and latency are meaningless for a node that did not answer.
		// Their holds start over once it is back.
		if !p.Reachable {
			a.restartHold("sync_lag:" + name)
			a.restartHold("latency_high:" + name)
			continue
		}

		if cfg := a.config.SyncLag; cfg != nil && best > 0 {
			lag := best - p.MilestoneIndex
			a.observe(ctx, now, "sync_lag:"+name, float64(lag) >= cfg.Threshold, cfg.Duration, cfg.Cooldown,
				func(time.Duration) model.Notification {
					return model.Notification{
						AlertType: "sync_lag",
						Severity:  cfg.Severity,
						Title:     "Node Out Of Sync: " + name,
						Message:   fmt.Sprintf("[%s] %d milestones behind (at %d, best %d)", name, lag, p.MilestoneIndex, best),
						Node:      name,
						Metadata:  map[string]string{"lag": strconv.FormatInt(lag, 10)},
					}
				})
		}

		if cfg := a.config.LatencyHigh; cfg != nil {
			a.observe(ctx, now, "latency_high:"+name, p.LatencyMs >= cfg.Threshold, cfg.Duration, cfg.Cooldown,
				func(held time.Duration) model.Notification {
					return model.Notification{
						AlertType: "latency_high",
						Severity:  cfg.Severity,
						Title:     "Node Latency High: " + name,
						Message:   fmt.Sprintf("[%s] latency at %.1fms for %s", name, p.LatencyMs, held.Round(time.Second)),
						Node:      name,
						Metadata:  map[string]string{"latency_ms": strconv.FormatFloat(p.LatencyMs, 'f', 1, 64)},
					}
				})
		}
	}

	if cfg := a.config.RewardStale; cfg != nil {
		last := snap.LastReward
		if last.IsZero() {
			last = a.started
		}
		age := now.Sub(last)
		a.observe(ctx, now, "reward_stale", age > cfg.MaxAge, 0, cfg.Cooldown,
			func(time.Duration) model.Notification {
				return model.Notification{
					AlertType: "reward_stale",
					Severity:  cfg.Severity,
					Title:     "Reward Cycle Stale",
					Message:   fmt.Sprintf("no reward cycle completed for %s", age.Round(time.Second)),
				}
			})
	}
}

// observe advances the state of key. Once breach has held for hold, the
// notification from build is delivered unless key fired within cooldown.
// build receives how long the condition has held. A cleared condition
// restarts the hold and resolves a fired alert.
func (a *Alerter) observe(ctx context.Context, now time.Time, key string, breach bool, hold, cooldown time.Duration, build func(held time.Duration) model.Notification) {
	st, ok := a.states[key]
	if !ok {
		st = &state{}
		a.states[key] = st
	}

	if !breach {
		st.since = time.Time{}
		a.resolve(ctx, now, st)
		return
	}

	if st.since.IsZero() {
		st.since = now
	}
	held := now.Sub(st.since)
	if held < hold {
		return
	}
	if !st.fired.IsZero() && now.Sub(st.fired) < cooldown {
		return
	}

	notif := build(held)
	notif.Timestamp = now
	st.fired = now
	st.active = &notif
	a.deliver(ctx, notif)

	slog.Warn("alert fired",
		"type", notif.AlertType,
		"severity", notif.Severity,
		"node", notif.Node,
		"title", notif.Title,
	)
}

// restartHold forgets when key's condition started holding. A fired alert
// stays active until its condition is observed clear.
func (a *Alerter) restartHold(key string) {
	if st, ok := a.states[key]; ok {
		st.since = time.Time{}
	}
}

// resolve sends a resolved notification for st's fired alert, if any. The
// cooldown is cleared so a relapse alerts as soon as its hold passes.
func (a *Alerter) resolve(ctx context.Context, now time.Time, st *state) {
	if st.active == nil {
		return
	}
	orig := *st.active
	st.active = nil
	st.fired = time.Time{}

	notif := model.Notification{
		AlertType: orig.AlertType,
		Severity:  "info",
		Title:     "Resolved: " + orig.Title,
		Message:   strings.ReplaceAll(orig.AlertType, "_", " ") + " condition cleared",
		Node:      orig.Node,
		Timestamp: now,
		Resolved:  true,
	}
	a.deliver(ctx, notif)

	slog.Info("alert resolved", "type", notif.AlertType, "node", notif.Node)
}

// cleanup forgets keys whose condition is clear, with nothing to resolve,
// that have not fired within stateTTL.
func (a *Alerter) cleanup(now time.Time) {
	for key, st := range a.states {
		if st.active == nil && st.since.IsZero() && now.Sub(st.fired) > stateTTL {
			delete(a.states, key)
		}
	}
}

func (a *Alerter) deliver(ctx context.Context, notif model.Notification) {
	if err := a.store.InsertAlert(ctx, notif); err != nil {
		slog.Error("storing alert", "type", notif.AlertType, "error", err)
	}
	if err := notify.SendAll(ctx, a.providers, notif); err != nil {
		slog.Error("sending notification", "alert", notif.AlertType, "error", err)
	}
}
