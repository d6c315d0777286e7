// Package model defines all shared domain types for Ledgerwatch.
package model

import "time"

// Node is a monitored ledger node as configured. Nodes are referenced by name
// everywhere else; the name is the foreign key of every table.
type Node struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Transaction is an ingested output identifier confirmed by a milestone.
type Transaction struct {
	ID             string `json:"id"`
	Node           string `json:"node_name"`
	MilestoneIndex int64  `json:"milestone_index"`
	Timestamp      int64  `json:"timestamp"` // unix epoch
}

// IngestResult reports the outcome of a single ledger insert.
type IngestResult struct {
	Added bool  `json:"added"`
	Total int64 `json:"total"` // counter after the insert; 0 when skipped
}

// NodeMetrics is the mutable health snapshot of a node.
type NodeMetrics struct {
	Node            string  `json:"node_name"`
	LastSeen        int64   `json:"last_seen"`
	UptimeSeconds   int64   `json:"uptime_seconds"`
	AvgLatencyMs    float64 `json:"avg_latency"`
	LatestMilestone int64   `json:"latest_milestone"`
}

// NodeSummary joins counters, metrics, balances and the recent transaction
// window for one node. It is both the reward engine input and the dashboard
// node row.
type NodeSummary struct {
	Node            string  `json:"node_name"`
	TotalTx         int64   `json:"total_transactions"`
	RecentTx        int64   `json:"recent_transactions"`
	RewardBalance   float64 `json:"reward_balance"`
	UptimeSeconds   int64   `json:"uptime_seconds"`
	AvgLatencyMs    float64 `json:"avg_latency"`
	LatestMilestone int64   `json:"latest_milestone"`
}

// RewardDetail is the engine output for one node in one cycle.
type RewardDetail struct {
	Node          string  `json:"node_name"`
	Reward        float64 `json:"reward"`
	Reason        string  `json:"reason"`
	BaseReward    float64 `json:"base_reward"`
	UptimeFactor  float64 `json:"uptime_factor"`
	LatencyFactor float64 `json:"latency_factor"`
	SyncFactor    float64 `json:"sync_factor"`
	SyncReward    float64 `json:"sync_reward"`
	VolumeBonus   float64 `json:"volume_bonus"`
}

// RewardRecord is a persisted reward history entry.
type RewardRecord struct {
	ID        int64   `json:"id"`
	Node      string  `json:"node_name"`
	Amount    float64 `json:"amount"`
	Reason    string  `json:"reason"`
	Timestamp int64   `json:"timestamp"`
}

// SystemStats aggregates all nodes for the dashboard header.
type SystemStats struct {
	TotalTx      int64   `json:"total_transactions"`
	RecentTx     int64   `json:"recent_transactions"`
	TotalRewards float64 `json:"total_rewards"`
	AvgLatencyMs float64 `json:"avg_latency"` // nodes with latency > 0 only
	MaxMilestone int64   `json:"max_milestone"`
	Timestamp    int64   `json:"timestamp"`
}

// ProtocolInfo is the informational subset of a node's /info response.
type ProtocolInfo struct {
	NetworkName   string `json:"network_name"`
	TokenName     string `json:"token_name"`
	TokenSymbol   string `json:"token_symbol"`
	TokenDecimals int    `json:"token_decimals"`
}

// PollStatus is the outcome of the most recent poll of a node.
type PollStatus struct {
	Node           string    `json:"node_name"`
	LastPoll       time.Time `json:"last_poll"`
	Reachable      bool      `json:"reachable"`
	LatencyMs      float64   `json:"latency_ms"`
	MilestoneIndex int64     `json:"milestone_index"`
	Added          int       `json:"added"`
	Skipped        int       `json:"skipped"`
	Error          string    `json:"error,omitempty"`
}

// Notification represents a structured alert message.
type Notification struct {
	AlertType string            `json:"alert_type"`
	Severity  string            `json:"severity"` // "info", "warning", "critical"
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Node      string            `json:"node_name,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Resolved  bool              `json:"resolved"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AlertRecord is a persisted alert history entry.
type AlertRecord struct {
	ID        int64  `json:"id"`
	Timestamp int64  `json:"timestamp"`
	AlertType string `json:"alert_type"`
	Node      string `json:"node_name"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
	Resolved  bool   `json:"resolved"`
}
