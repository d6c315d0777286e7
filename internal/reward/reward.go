// Package reward scores node performance. It performs no I/O: callers feed it
// node summaries and persist what it returns.
package reward

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
)

// Params holds every constant of the reward formula.
type Params struct {
	BaseRewardPerTx       float64
	UptimeRewardFactor    float64
	MilestoneSyncReward   float64
	VolumeThreshold       int64
	VolumeBonusMultiplier float64
	MaxLatencyMs          float64
	LatencyPenaltyFactor  float64
	Interval              time.Duration // uptime is measured against this
}

// DefaultParams returns the stock formula constants.
func DefaultParams() Params {
	return Params{
		BaseRewardPerTx:       0.01,
		UptimeRewardFactor:    0.5,
		MilestoneSyncReward:   0.2,
		VolumeThreshold:       100,
		VolumeBonusMultiplier: 1.2,
		MaxLatencyMs:          5000,
		LatencyPenaltyFactor:  0.8,
		Interval:              300 * time.Second,
	}
}

// Engine computes rewards with a fixed set of Params.
type Engine struct {
	params Params
}

// NewEngine creates an engine.
func NewEngine(p Params) *Engine {
	return &Engine{params: p}
}

// Compute scores every node in nodes. The sync factor is relative to the
// highest milestone among nodes, so nodes must come from one consistent read.
// Output order matches input order.
func (e *Engine) Compute(nodes []model.NodeSummary) []model.RewardDetail {
	milestones := make([]int64, len(nodes))
	for i, n := range nodes {
		milestones[i] = n.LatestMilestone
	}
	syncFactors := SyncFactors(milestones)

	p := e.params
	out := make([]model.RewardDetail, len(nodes))
	for i, n := range nodes {
		base := float64(n.RecentTx) * p.BaseRewardPerTx
		uptime := UptimeFactor(n.UptimeSeconds, p)
		latency := LatencyFactor(n.AvgLatencyMs, p)
		volume := VolumeBonus(n.RecentTx, p)
		syncReward := p.MilestoneSyncReward * syncFactors[i]
		amount := Round4(base*uptime*latency*volume + syncReward)

		out[i] = model.RewardDetail{
			Node:          n.Node,
			Reward:        amount,
			BaseReward:    base,
			UptimeFactor:  uptime,
			LatencyFactor: latency,
			SyncFactor:    syncFactors[i],
			SyncReward:    syncReward,
			VolumeBonus:   volume,
			Reason: fmt.Sprintf(
				"Base: %.4f × Uptime(%ds): %.2f × Latency(%.1fms): %.2f × Volume(%dtx): %.2f + Sync(%.2f): %.4f",
				base, n.UptimeSeconds, uptime, n.AvgLatencyMs, latency,
				n.RecentTx, volume, syncFactors[i], syncReward,
			),
		}
	}
	return out
}

// SyncFactors returns each milestone divided by the highest positive one.
// Non-positive milestones score 0, as does every node when none is positive.
func SyncFactors(milestones []int64) []float64 {
	var maxMilestone int64
	for _, m := range milestones {
		if m > maxMilestone {
			maxMilestone = m
		}
	}

	out := make([]float64, len(milestones))
	if maxMilestone == 0 {
		return out
	}
	for i, m := range milestones {
		if m > 0 {
			out[i] = float64(m) / float64(maxMilestone)
		}
	}
	return out
}

// UptimeFactor is 1 plus the uptime bonus, scaled by the share of the reward
// interval the node was up and capped at a full interval.
func UptimeFactor(uptimeSeconds int64, p Params) float64 {
	interval := p.Interval.Seconds()
	if interval <= 0 {
		return 1.0
	}
	return 1.0 + p.UptimeRewardFactor*math.Min(1.0, float64(uptimeSeconds)/interval)
}

// LatencyFactor falls linearly from 1 at zero latency to the penalty factor at
// MaxLatencyMs, and stays at the penalty factor beyond it.
func LatencyFactor(avgLatencyMs float64, p Params) float64 {
	if avgLatencyMs >= p.MaxLatencyMs {
		return p.LatencyPenaltyFactor
	}
	return math.Max(p.LatencyPenaltyFactor, 1.0-(1.0-p.LatencyPenaltyFactor)*avgLatencyMs/p.MaxLatencyMs)
}

// VolumeBonus rewards nodes at or above the volume threshold, growing with the
// log of the ratio and capped at the full multiplier.
func VolumeBonus(recentTx int64, p Params) float64 {
	if p.VolumeThreshold <= 0 || recentTx < p.VolumeThreshold {
		return 1.0
	}
	ratio := float64(recentTx) / float64(p.VolumeThreshold)
	return 1.0 + (p.VolumeBonusMultiplier-1.0)*math.Min(1.0, math.Log10(ratio+1))
}

// Round4 rounds x to four decimal places. Rounding is applied to the exact
// binary value of x, so 0.30005 (stored just below the tie) becomes 0.3.
func Round4(x float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 4, 64), 64)
	if err != nil {
		return x
	}
	return r
}
