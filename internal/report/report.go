// Package report renders the periodic console status summary.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
)

// Render writes the node metrics table and the reward balance table.
func Render(w io.Writer, nodes []model.NodeSummary, now time.Time) error {
	metrics := table.NewWriter()
	metrics.SetTitle("Node Metrics")
	metrics.AppendHeader(table.Row{"Node", "Total Tx", "Recent Tx", "Uptime", "Avg Latency", "Milestone"})
	for _, n := range nodes {
		metrics.AppendRow(table.Row{
			n.Node,
			n.TotalTx,
			n.RecentTx,
			FormatUptime(n.UptimeSeconds),
			FormatLatency(n.AvgLatencyMs),
			n.LatestMilestone,
		})
	}
	metrics.SetColumnConfigs(alignRight(2, 3, 4, 5, 6))

	balances := table.NewWriter()
	balances.SetTitle("Reward Balances")
	balances.AppendHeader(table.Row{"Node", "Balance"})
	var total float64
	for _, n := range nodes {
		balances.AppendRow(table.Row{n.Node, FormatBalance(n.RewardBalance)})
		total += n.RewardBalance
	}
	balances.AppendFooter(table.Row{"Total", FormatBalance(total)})
	balances.SetColumnConfigs(alignRight(2))

	_, err := fmt.Fprintf(w, "Status report at %s\n%s\n%s\n",
		now.UTC().Format(time.RFC3339), metrics.Render(), balances.Render())
	if err != nil {
		return fmt.Errorf("writing status report: %w", err)
	}
	return nil
}

func alignRight(columns ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, len(columns))
	for i, n := range columns {
		cfgs[i] = table.ColumnConfig{Number: n, Align: text.AlignRight, AlignFooter: text.AlignRight}
	}
	return cfgs
}
