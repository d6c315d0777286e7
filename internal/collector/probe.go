package collector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
)

// ProbeAPI extends NodeAPI with the tip endpoints used by Probe.
type ProbeAPI interface {
	NodeAPI
	Tips(ctx context.Context, node model.Node) ([]string, error)
	Blocks(ctx context.Context, node model.Node, ids []string) ([]json.RawMessage, error)
}

// ProbeResult is a one-off connectivity check of a single node.
type ProbeResult struct {
	Node      model.Node
	Protocol  model.ProtocolInfo
	Milestone int64
	LatencyMs float64
	Tips      int
	Blocks    int
	Err       error
}

// Probe checks every node concurrently through pool and returns one result
// per node in input order. It does not touch the store.
func Probe(ctx context.Context, client ProbeAPI, nodes []model.Node, pool *WorkerPool) []ProbeResult {
	results := make([]ProbeResult, len(nodes))
	for i, node := range nodes {
		results[i].Node = node
		if err := pool.Submit(ctx, func() { probeNode(ctx, client, &results[i]) }); err != nil {
			results[i].Err = err
		}
	}
	pool.Wait()
	return results
}

func probeNode(ctx context.Context, client ProbeAPI, r *ProbeResult) {
	index, latency, err := client.LatestMilestone(ctx, r.Node)
	r.Milestone, r.LatencyMs = index, latency
	if err != nil {
		r.Err = fmt.Errorf("latest milestone: %w", err)
		return
	}

	info, err := client.ProtocolParameters(ctx, r.Node)
	if err != nil {
		r.Err = fmt.Errorf("protocol parameters: %w", err)
		return
	}
	r.Protocol = info

	tips, err := client.Tips(ctx, r.Node)
	if err != nil {
		r.Err = fmt.Errorf("tips: %w", err)
		return
	}
	r.Tips = len(tips)

	blocks, err := client.Blocks(ctx, r.Node, tips)
	if err != nil {
		r.Err = fmt.Errorf("tip blocks: %w", err)
		return
	}
	r.Blocks = len(blocks)
}
