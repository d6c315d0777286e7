package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/darshan-rambhia/ledgerwatch/internal/alerter"
	"github.com/darshan-rambhia/ledgerwatch/internal/api"
	"github.com/darshan-rambhia/ledgerwatch/internal/cache"
	"github.com/darshan-rambhia/ledgerwatch/internal/collector"
	"github.com/darshan-rambhia/ledgerwatch/internal/config"
	"github.com/darshan-rambhia/ledgerwatch/internal/model"
	"github.com/darshan-rambhia/ledgerwatch/internal/nodeclient"
	"github.com/darshan-rambhia/ledgerwatch/internal/notify"
	"github.com/darshan-rambhia/ledgerwatch/internal/report"
	"github.com/darshan-rambhia/ledgerwatch/internal/reward"
	"github.com/darshan-rambhia/ledgerwatch/internal/store"
)

// @title Ledgerwatch API
// @version 1.0
// @description Read-only API for ledger node metrics, transaction counts and rewards.
// @host localhost:3900
// @BasePath /

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// buildInfo returns version, commit, build time, and VCS details from the
// embedded Go build info. ldflags-injected values take priority; VCS info
// from debug.ReadBuildInfo fills in anything left as default.
func buildInfo() (ver, sha, built, dirty string) {
	ver = version
	sha = commit
	built = buildTime
	dirty = "clean"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if sha == "none" {
				sha = s.Value
			}
		case "vcs.time":
			if built == "unknown" {
				built = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" {
				dirty = "dirty"
			}
		}
	}

	return
}

func main() {
	configPath := flag.String("config", "", "path to ledgerwatch.yml config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	probe := flag.Bool("probe", false, "check connectivity to every configured node and exit")
	flag.Parse()

	ver, sha, built, dirty := buildInfo()

	if *showVersion {
		fmt.Printf("ledgerwatch %s\n  commit:    %s (%s)\n  built:     %s\n  go:        %s\n  platform:  %s/%s\n",
			ver, sha, dirty, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, config.ErrConfigFileNotFound) {
			fmt.Fprintf(os.Stderr, "error: %s\n\n", err)
			fmt.Fprintf(os.Stderr, "Copy the example config to get started:\n")
			fmt.Fprintf(os.Stderr, "  cp ledgerwatch.example.yml %s\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "error: loading config (%s): %s\n", *configPath, err)
		}
		os.Exit(1)
	}

	slog.SetDefault(slog.New(newLogHandler(os.Stderr, cfg.LogLevel, cfg.LogFormat)))

	nodes := modelNodes(cfg.Nodes)
	client := nodeclient.New(nodeclient.Config{
		AuthToken:    cfg.AuthToken,
		APIPrefix:    cfg.APIPrefix,
		Timeout:      cfg.RequestTimeout.Duration,
		MaxLatencyMs: cfg.Reward.MaxLatencyMs,
	})

	// Setup context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *probe {
		if !runProbe(ctx, os.Stdout, client, nodes) {
			os.Exit(1)
		}
		return
	}

	slog.Info("starting ledgerwatch",
		"version", ver,
		"commit", sha,
		"built", built,
		"dirty", dirty,
		"go", runtime.Version(),
		"listen", cfg.Listen,
		"nodes", len(nodes),
	)

	// Initialize store
	st, err := store.New(cfg.DBPath)
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	if err := st.InitNodes(ctx, names); err != nil {
		slog.Error("registering nodes", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	stats, err := collector.NewStats(reg)
	if err != nil {
		slog.Error("registering metrics", "error", err)
		os.Exit(1)
	}

	c := cache.New()
	engine := reward.NewEngine(rewardParams(cfg.Reward))

	g, ctx := errgroup.WithContext(ctx)

	// Start scheduler
	sched := collector.NewScheduler(collector.SchedulerConfig{
		Nodes:          nodes,
		PollInterval:   cfg.PollInterval.Duration,
		ErrorBackoff:   cfg.ErrorBackoff.Duration,
		RewardInterval: cfg.Reward.Interval.Duration,
		ReportInterval: cfg.ReportInterval.Duration,
		RecentWindow:   cfg.Reward.RecentWindow.Duration,
	}, client, st, c, engine, stats, os.Stdout)
	g.Go(func() error { return sched.Run(ctx) })

	// Start pruner
	pruner := store.NewPruner(st, store.AlertRetention)
	g.Go(func() error { return pruner.Run(ctx) })

	// Start alerter
	providers := buildProviders(cfg.Notifications)
	a := alerter.NewAlerter(c, st, providers, alertConfig(cfg.Alerts, cfg.Reward.Interval.Duration))
	g.Go(func() error { return a.Run(ctx) })

	// Start HTTP server
	server := api.NewServer(cfg.Listen, c, st, engine, cfg.Reward.RecentWindow.Duration, reg)
	g.Go(func() error { return server.Run(ctx) })

	slog.Info("all components started",
		"nodes", len(nodes),
		"poll_interval", cfg.PollInterval.Duration,
		"reward_interval", cfg.Reward.Interval.Duration,
		"notifications", len(providers),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "error", err)
	}

	slog.Info("ledgerwatch stopped gracefully")
}

// newLogHandler builds the process log handler. Unknown levels fall back to
// info and unknown formats to text.
func newLogHandler(w io.Writer, level, format string) slog.Handler {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	switch format {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	case "tint":
		return tint.NewHandler(w, &tint.Options{Level: logLevel, TimeFormat: time.Kitchen})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})
	}
}

func modelNodes(cfgNodes []config.NodeConfig) []model.Node {
	nodes := make([]model.Node, len(cfgNodes))
	for i, n := range cfgNodes {
		nodes[i] = model.Node{Name: n.Name, URL: n.URL}
	}
	return nodes
}

func rewardParams(r config.RewardConfig) reward.Params {
	return reward.Params{
		BaseRewardPerTx:       r.BaseRewardPerTx,
		UptimeRewardFactor:    r.UptimeRewardFactor,
		MilestoneSyncReward:   r.MilestoneSyncReward,
		VolumeThreshold:       r.VolumeThreshold,
		VolumeBonusMultiplier: r.VolumeBonusMultiplier,
		MaxLatencyMs:          r.MaxLatencyMs,
		LatencyPenaltyFactor:  r.LatencyPenaltyFactor,
		Interval:              r.Interval.Duration,
	}
}

func buildProviders(cfgs []config.NotificationConfig) []notify.Provider {
	var providers []notify.Provider
	for _, ncfg := range cfgs {
		switch ncfg.Type {
		case "ntfy":
			providers = append(providers, notify.NewNtfy(ncfg.URL, ncfg.Topic, ncfg.Token))
		case "webhook":
			providers = append(providers, notify.NewWebhook(ncfg.URL, ncfg.Method, ncfg.Headers))
		}
	}
	return providers
}

// alertConfig overlays configured rules on the defaults. Cooldowns always
// come from the defaults. Without an explicit reward_stale rule, max_age is
// stretched to three reward intervals when that exceeds the default.
func alertConfig(a config.AlertsConfig, rewardInterval time.Duration) alerter.AlertConfig {
	out := alerter.DefaultAlertConfig()
	out.RewardStale.MaxAge = max(out.RewardStale.MaxAge, 3*rewardInterval)
	if a.NodeDown != nil {
		out.NodeDown.GracePeriod = a.NodeDown.GracePeriod.Duration
		if a.NodeDown.Severity != "" {
			out.NodeDown.Severity = a.NodeDown.Severity
		}
	}
	if a.SyncLag != nil {
		out.SyncLag.Threshold = a.SyncLag.Threshold
		out.SyncLag.Duration = a.SyncLag.Duration.Duration
		if a.SyncLag.Severity != "" {
			out.SyncLag.Severity = a.SyncLag.Severity
		}
	}
	if a.LatencyHigh != nil {
		out.LatencyHigh.Threshold = a.LatencyHigh.Threshold
		out.LatencyHigh.Duration = a.LatencyHigh.Duration.Duration
		if a.LatencyHigh.Severity != "" {
			out.LatencyHigh.Severity = a.LatencyHigh.Severity
		}
	}
	if a.RewardStale != nil {
		out.RewardStale.MaxAge = a.RewardStale.MaxAge.Duration
		if a.RewardStale.Severity != "" {
			out.RewardStale.Severity = a.RewardStale.Severity
		}
	}
	return out
}

// runProbe checks every node once and prints one line per node. It reports
// whether all nodes answered.
func runProbe(ctx context.Context, w io.Writer, client collector.ProbeAPI, nodes []model.Node) bool {
	pool := collector.NewWorkerPool(len(nodes))
	ok := true
	for _, r := range collector.Probe(ctx, client, nodes, pool) {
		if r.Err != nil {
			ok = false
			fmt.Fprintf(w, "%-16s FAIL  %s\n", r.Node.Name, r.Err)
			continue
		}
		fmt.Fprintf(w, "%-16s OK    network=%s milestone=%d latency=%s tips=%d blocks=%d\n",
			r.Node.Name, r.Protocol.NetworkName, r.Milestone,
			report.FormatLatency(r.LatencyMs), r.Tips, r.Blocks)
	}
	return ok
}
