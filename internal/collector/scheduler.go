package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/darshan-rambhia/ledgerwatch/internal/cache"
	"github.com/darshan-rambhia/ledgerwatch/internal/model"
	"github.com/darshan-rambhia/ledgerwatch/internal/nodeclient"
	"github.com/darshan-rambhia/ledgerwatch/internal/report"
	"github.com/darshan-rambhia/ledgerwatch/internal/reward"
	"github.com/darshan-rambhia/ledgerwatch/internal/store"
)

// NodeAPI is the subset of the node client the scheduler needs.
type NodeAPI interface {
	LatestMilestone(ctx context.Context, node model.Node) (int64, float64, error)
	MilestoneUTXOChanges(ctx context.Context, node model.Node, index int64) ([]string, []string, error)
	ProtocolParameters(ctx context.Context, node model.Node) (model.ProtocolInfo, error)
}

// SchedulerConfig holds the scheduler's node list and cadences.
type SchedulerConfig struct {
	Nodes          []model.Node
	PollInterval   time.Duration
	ErrorBackoff   time.Duration
	RewardInterval time.Duration
	ReportInterval time.Duration
	RecentWindow   time.Duration // transactions counted toward the reward
}

// Scheduler polls every node each iteration and, on slower cadences,
// distributes rewards and prints a status report. It is the only writer of
// the store.
type Scheduler struct {
	config SchedulerConfig
	client NodeAPI
	store  *store.Store
	cache  *cache.Cache
	engine *reward.Engine
	stats  *Stats
	out    io.Writer
	now    func() time.Time

	configured map[string]bool
	lastReward time.Time
	lastReport time.Time
}

// NewScheduler creates a scheduler. The reward and report cadences count from
// the time of construction. A nil out disables the status report.
func NewScheduler(cfg SchedulerConfig, client NodeAPI, s *store.Store, c *cache.Cache, e *reward.Engine, stats *Stats, out io.Writer) *Scheduler {
	configured := make(map[string]bool, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		configured[n.Name] = true
	}
	sch := &Scheduler{
		config:     cfg,
		client:     client,
		store:      s,
		cache:      c,
		engine:     e,
		stats:      stats,
		out:        out,
		now:        time.Now,
		configured: configured,
	}
	sch.lastReward = sch.now()
	sch.lastReport = sch.lastReward
	return sch
}

func (s *Scheduler) Name() string            { return "scheduler" }
func (s *Scheduler) Interval() time.Duration { return s.config.PollInterval }
func (s *Scheduler) Backoff() time.Duration  { return s.config.ErrorBackoff }

// Run logs the network description and then iterates until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logProtocol(ctx)
	return Run(ctx, s)
}

// Collect runs one iteration: poll every node, then the reward and report
// phases when they are due. Node failures are logged and do not fail the
// iteration; a failed reward or report phase, or a panic, does.
func (s *Scheduler) Collect(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("iteration panicked: %v", r)
		}
		if err != nil && ctx.Err() == nil {
			s.stats.iterationErrors.Inc()
		}
	}()

	start := s.now()
	for _, node := range s.config.Nodes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.pollNode(ctx, node)
	}
	s.cache.SetLastPoll("poll", start)

	var errs []error
	if start.Sub(s.lastReward) >= s.config.RewardInterval {
		if err := s.distributeRewards(ctx, start); err != nil {
			errs = append(errs, fmt.Errorf("reward cycle: %w", err))
		} else {
			s.lastReward = start
		}
	}
	if s.out != nil && start.Sub(s.lastReport) >= s.config.ReportInterval {
		if err := s.printReport(ctx, start); err != nil {
			errs = append(errs, fmt.Errorf("status report: %w", err))
		}
		s.lastReport = start
	}
	return errors.Join(errs...)
}

// pollNode fetches the node's latest milestone, records the latency and
// ingests the milestone's outputs. Failures end this node's turn only.
func (s *Scheduler) pollNode(ctx context.Context, node model.Node) {
	status := model.PollStatus{Node: node.Name, LastPoll: s.now()}
	defer func() { s.cache.UpdatePoll(status) }()

	index, latency, err := s.client.LatestMilestone(ctx, node)
	status.LatencyMs = latency
	s.stats.pollLatency.WithLabelValues(node.Name).Set(latency)
	if err != nil {
		status.Error = err.Error()
		// Shutting down: the failure is ours, not the node's.
		if ctx.Err() != nil {
			return
		}
		s.stats.pollFailures.WithLabelValues(node.Name, nodeclient.Reason(err)).Inc()
		slog.Warn("node poll failed", "node", node.Name, "error", err)
		if err := s.store.UpdateMetrics(ctx, node.Name, &latency, nil); err != nil {
			slog.Error("updating node metrics", "node", node.Name, "error", err)
		}
		return
	}

	status.Reachable = true
	status.MilestoneIndex = index
	s.stats.latestMilestone.WithLabelValues(node.Name).Set(float64(index))
	if err := s.store.UpdateMetrics(ctx, node.Name, &latency, &index); err != nil {
		slog.Error("updating node metrics", "node", node.Name, "error", err)
	}

	if index == 0 {
		slog.Debug("node has no milestone yet", "node", node.Name)
		return
	}

	created, consumed, err := s.client.MilestoneUTXOChanges(ctx, node, index)
	if err != nil {
		status.Error = err.Error()
		s.stats.pollFailures.WithLabelValues(node.Name, nodeclient.Reason(err)).Inc()
		slog.Warn("fetching utxo changes failed", "node", node.Name, "milestone", index, "error", err)
		return
	}

	for _, id := range slices.Concat(created, consumed) {
		res, err := s.store.IngestTransaction(ctx, id, node.Name, index)
		if err != nil {
			slog.Error("ingesting transaction", "node", node.Name, "tx", id, "error", err)
			continue
		}
		if res.Added {
			status.Added++
			s.stats.txIngested.WithLabelValues(node.Name).Inc()
			slog.Debug("transaction added", "node", node.Name, "tx", id, "total", res.Total)
		} else {
			status.Skipped++
			s.stats.txSkipped.WithLabelValues(node.Name).Inc()
			slog.Debug("duplicate transaction skipped", "node", node.Name, "tx", id)
		}
	}

	if status.Added > 0 {
		slog.Info("node polled", "node", node.Name, "milestone", index,
			"latency_ms", latency, "added", status.Added, "skipped", status.Skipped)
	}
}

// distributeRewards scores every configured node from one consistent read of
// the store and persists the result.
func (s *Scheduler) distributeRewards(ctx context.Context, ts time.Time) error {
	summaries, err := s.summaries(ctx)
	if err != nil {
		return err
	}

	details := s.engine.Compute(summaries)
	if err := s.store.RecordRewards(ctx, ts, details); err != nil {
		return err
	}

	s.cache.SetRewards(ts, details)
	s.stats.rewardCycles.Inc()
	for _, d := range details {
		s.stats.nodeReward.WithLabelValues(d.Node).Set(d.Reward)
		slog.Info("reward distributed", "node", d.Node, "amount", d.Reward, "reason", d.Reason)
	}
	return nil
}

func (s *Scheduler) printReport(ctx context.Context, now time.Time) error {
	summaries, err := s.summaries(ctx)
	if err != nil {
		return err
	}
	return report.Render(s.out, summaries, now)
}

// summaries returns the store's node rows restricted to configured nodes.
func (s *Scheduler) summaries(ctx context.Context) ([]model.NodeSummary, error) {
	all, err := s.store.NodeSummaries(ctx, s.config.RecentWindow)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, n := range all {
		if s.configured[n.Node] {
			out = append(out, n)
		}
	}
	return out, nil
}

// logProtocol logs the network description of the first node that answers.
func (s *Scheduler) logProtocol(ctx context.Context) {
	for _, node := range s.config.Nodes {
		info, err := s.client.ProtocolParameters(ctx, node)
		if err != nil {
			slog.Debug("protocol parameters unavailable", "node", node.Name, "error", err)
			continue
		}
		s.cache.SetProtocol(info)
		slog.Info("connected to network",
			"node", node.Name,
			"network", info.NetworkName,
			"token", info.TokenName,
			"symbol", info.TokenSymbol,
			"decimals", info.TokenDecimals,
		)
		return
	}
	slog.Warn("no node reported protocol parameters")
}
