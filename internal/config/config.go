// Package config handles loading and validating Ledgerwatch configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} placeholders in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrConfigFileNotFound is returned by Load when the specified config file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// Config is the top-level Ledgerwatch configuration.
type Config struct {
	Listen         string               `yaml:"listen"`
	DBPath         string               `yaml:"db_path"`
	LogLevel       string               `yaml:"log_level"`
	LogFormat      string               `yaml:"log_format"`
	AuthToken      string               `yaml:"auth_token"`
	APIPrefix      string               `yaml:"api_prefix"`
	RequestTimeout Duration             `yaml:"request_timeout"`
	PollInterval   Duration             `yaml:"poll_interval"`
	ErrorBackoff   Duration             `yaml:"error_backoff"`
	ReportInterval Duration             `yaml:"report_interval"`
	Reward         RewardConfig         `yaml:"reward"`
	Nodes          []NodeConfig         `yaml:"nodes"`
	Notifications  []NotificationConfig `yaml:"notifications"`
	Alerts         AlertsConfig         `yaml:"alerts"`
}

// NodeConfig describes a single monitored ledger node.
type NodeConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// RewardConfig holds the reward formula constants and cadence.
type RewardConfig struct {
	Interval              Duration `yaml:"interval"`
	RecentWindow          Duration `yaml:"recent_window"`
	BaseRewardPerTx       float64  `yaml:"base_reward_per_tx"`
	UptimeRewardFactor    float64  `yaml:"uptime_reward_factor"`
	MilestoneSyncReward   float64  `yaml:"milestone_sync_reward"`
	VolumeThreshold       int64    `yaml:"volume_threshold"`
	VolumeBonusMultiplier float64  `yaml:"volume_bonus_multiplier"`
	MaxLatencyMs          float64  `yaml:"max_latency_ms"`
	LatencyPenaltyFactor  float64  `yaml:"latency_penalty_factor"`
}

// NotificationConfig describes a notification target.
type NotificationConfig struct {
	Type    string            `yaml:"type"` // "ntfy" or "webhook"
	URL     string            `yaml:"url"`
	Topic   string            `yaml:"topic,omitempty"`   // ntfy only
	Token   string            `yaml:"token,omitempty"`   // ntfy only
	Method  string            `yaml:"method,omitempty"`  // webhook only
	Headers map[string]string `yaml:"headers,omitempty"` // webhook only
}

// AlertsConfig overrides the default alert rules. A nil rule keeps its default.
type AlertsConfig struct {
	NodeDown    *AlertNodeDown    `yaml:"node_down,omitempty"`
	SyncLag     *AlertThreshold   `yaml:"sync_lag,omitempty"`
	LatencyHigh *AlertThreshold   `yaml:"latency_high,omitempty"`
	RewardStale *AlertRewardStale `yaml:"reward_stale,omitempty"`
}

type AlertNodeDown struct {
	GracePeriod Duration `yaml:"grace_period"`
	Severity    string   `yaml:"severity"`
}

type AlertThreshold struct {
	Threshold float64  `yaml:"threshold"`
	Duration  Duration `yaml:"duration"`
	Severity  string   `yaml:"severity"`
}

type AlertRewardStale struct {
	MaxAge   Duration `yaml:"max_age"`
	Severity string   `yaml:"severity"`
}

// Duration wraps time.Duration with YAML string parsing support.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Load reads configuration from a YAML file. If no path is given, it falls
// back to environment variables. If a path is given and the file does not
// exist, ErrConfigFileNotFound is returned.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}
	seen := make(map[string]bool, len(c.Nodes))
	for i, n := range c.Nodes {
		if n.Name == "" {
			return fmt.Errorf("nodes[%d]: name is required", i)
		}
		if seen[n.Name] {
			return fmt.Errorf("nodes[%d]: duplicate name %q", i, n.Name)
		}
		seen[n.Name] = true
		if n.URL == "" {
			return fmt.Errorf("nodes[%d]: url is required", i)
		}
		u, err := url.Parse(n.URL)
		if err != nil {
			return fmt.Errorf("nodes[%d]: invalid url: %w", i, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("nodes[%d]: url scheme must be http or https", i)
		}
	}

	for i, n := range c.Notifications {
		switch n.Type {
		case "ntfy":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for ntfy", i)
			}
			if n.Topic == "" {
				return fmt.Errorf("notifications[%d]: topic is required for ntfy", i)
			}
		case "webhook":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for webhook", i)
			}
		default:
			return fmt.Errorf("notifications[%d]: unknown type %q (expected ntfy or webhook)", i, n.Type)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true, "tint": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("log_format must be one of: text, json, tint")
	}

	if c.RequestTimeout.Duration <= 0 {
		return fmt.Errorf("request_timeout must be > 0")
	}
	if c.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll_interval must be > 0")
	}
	if c.ErrorBackoff.Duration <= 0 {
		return fmt.Errorf("error_backoff must be > 0")
	}
	if c.ReportInterval.Duration <= 0 {
		return fmt.Errorf("report_interval must be > 0")
	}

	r := c.Reward
	if r.Interval.Duration < time.Second {
		return fmt.Errorf("reward.interval must be >= 1s")
	}
	if r.RecentWindow.Duration < time.Second {
		return fmt.Errorf("reward.recent_window must be >= 1s")
	}
	if r.BaseRewardPerTx < 0 {
		return fmt.Errorf("reward.base_reward_per_tx must be >= 0")
	}
	if r.UptimeRewardFactor < 0 {
		return fmt.Errorf("reward.uptime_reward_factor must be >= 0")
	}
	if r.MilestoneSyncReward < 0 {
		return fmt.Errorf("reward.milestone_sync_reward must be >= 0")
	}
	if r.VolumeThreshold < 1 {
		return fmt.Errorf("reward.volume_threshold must be >= 1")
	}
	if r.VolumeBonusMultiplier < 1 {
		return fmt.Errorf("reward.volume_bonus_multiplier must be >= 1")
	}
	if r.MaxLatencyMs <= 0 {
		return fmt.Errorf("reward.max_latency_ms must be > 0")
	}
	if r.LatencyPenaltyFactor <= 0 || r.LatencyPenaltyFactor > 1 {
		return fmt.Errorf("reward.latency_penalty_factor must be in (0, 1]")
	}

	// Validate alert thresholds
	if a := c.Alerts.NodeDown; a != nil {
		if a.GracePeriod.Duration <= 0 {
			return fmt.Errorf("alerts.node_down: grace_period must be > 0")
		}
	}
	if a := c.Alerts.SyncLag; a != nil {
		if a.Threshold <= 0 {
			return fmt.Errorf("alerts.sync_lag: threshold must be > 0")
		}
		if a.Duration.Duration <= 0 {
			return fmt.Errorf("alerts.sync_lag: duration must be > 0")
		}
	}
	if a := c.Alerts.LatencyHigh; a != nil {
		if a.Threshold <= 0 {
			return fmt.Errorf("alerts.latency_high: threshold must be > 0")
		}
		if a.Duration.Duration <= 0 {
			return fmt.Errorf("alerts.latency_high: duration must be > 0")
		}
	}
	if a := c.Alerts.RewardStale; a != nil {
		if a.MaxAge.Duration <= r.Interval.Duration {
			return fmt.Errorf("alerts.reward_stale: max_age must be greater than reward.interval")
		}
	}

	return nil
}

func defaults() *Config {
	return &Config{
		Listen:         ":3900",
		DBPath:         "/data/ledgerwatch.db",
		LogLevel:       "info",
		LogFormat:      "text",
		APIPrefix:      "/api/core/v2",
		RequestTimeout: Duration{10 * time.Second},
		PollInterval:   Duration{5 * time.Second},
		ErrorBackoff:   Duration{10 * time.Second},
		ReportInterval: Duration{5 * time.Minute},
		Reward: RewardConfig{
			Interval:              Duration{5 * time.Minute},
			RecentWindow:          Duration{1 * time.Hour},
			BaseRewardPerTx:       0.01,
			UptimeRewardFactor:    0.5,
			MilestoneSyncReward:   0.2,
			VolumeThreshold:       100,
			VolumeBonusMultiplier: 1.2,
			MaxLatencyMs:          5000,
			LatencyPenaltyFactor:  0.8,
		},
	}
}

// expandEnvVars replaces ${VAR_NAME} placeholders in raw YAML with the
// corresponding environment variable values. Unset variables are replaced
// with an empty string, which will then fail validation with a clear error.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		key := string(match[2 : len(match)-1]) // strip ${ and }
		return []byte(os.Getenv(key))
	})
}

// parseNodeList parses "name=url,name=url" into node configs. Entries without
// a name get "node-N" (1-based position); entries without a URL are dropped.
func parseNodeList(s string) []NodeConfig {
	var nodes []NodeConfig
	for i, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, u, ok := strings.Cut(entry, "=")
		if !ok {
			name, u = "", name
		}
		name, u = strings.TrimSpace(name), strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if name == "" {
			name = fmt.Sprintf("node-%d", i+1)
		}
		nodes = append(nodes, NodeConfig{Name: name, URL: u})
	}
	return nodes
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEDGERWATCH_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("LEDGERWATCH_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LEDGERWATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LEDGERWATCH_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("LEDGERWATCH_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}

	// Node list from env (only if no YAML nodes configured).
	if len(cfg.Nodes) == 0 {
		if v := os.Getenv("LEDGERWATCH_NODES"); v != "" {
			cfg.Nodes = parseNodeList(v)
		}
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"LEDGERWATCH_POLL_INTERVAL", &cfg.PollInterval},
		{"LEDGERWATCH_REPORT_INTERVAL", &cfg.ReportInterval},
		{"LEDGERWATCH_REWARD_INTERVAL", &cfg.Reward.Interval},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			if parsed, err := time.ParseDuration(v); err == nil {
				d.dst.Duration = parsed
			} else if secs, err := strconv.Atoi(v); err == nil {
				d.dst.Duration = time.Duration(secs) * time.Second
			}
		}
	}
}
