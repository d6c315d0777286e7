package collector

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var ErrFailedToRegisterStats = errors.New("failed to register stats collector")

// Stats are the scheduler's Prometheus series.
type Stats struct {
	pollLatency     *prometheus.GaugeVec
	latestMilestone *prometheus.GaugeVec
	pollFailures    *prometheus.CounterVec
	txIngested      *prometheus.CounterVec
	txSkipped       *prometheus.CounterVec
	nodeReward      *prometheus.GaugeVec
	iterationErrors prometheus.Counter
	rewardCycles    prometheus.Counter

	registerer prometheus.Registerer
}

// NewStats creates the scheduler series and registers them on reg.
func NewStats(reg prometheus.Registerer) (*Stats, error) {
	s := &Stats{
		pollLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledgerwatch_node_poll_latency_ms",
			Help: "Latency of the last milestone request per node, in milliseconds",
		}, []string{"node"}),
		latestMilestone: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledgerwatch_node_latest_milestone",
			Help: "Latest milestone index reported by each node",
		}, []string{"node"}),
		pollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerwatch_node_poll_failures_total",
			Help: "Failed node requests by reason",
		}, []string{"node", "reason"}),
		txIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerwatch_transactions_ingested_total",
			Help: "New transactions recorded per node",
		}, []string{"node"}),
		txSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerwatch_transactions_skipped_total",
			Help: "Already known transactions seen per node",
		}, []string{"node"}),
		nodeReward: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledgerwatch_node_reward",
			Help: "Reward computed for each node in the last cycle",
		}, []string{"node"}),
		iterationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerwatch_iteration_errors_total",
			Help: "Scheduler iterations that failed or panicked",
		}),
		rewardCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerwatch_reward_cycles_total",
			Help: "Reward cycles persisted",
		}),
		registerer: reg,
	}

	err := s.register(s.collectors()...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UnregisterStats removes every series from the registerer.
func (s *Stats) UnregisterStats() {
	for _, c := range s.collectors() {
		_ = s.registerer.Unregister(c)
	}
}

func (s *Stats) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.pollLatency, s.latestMilestone, s.pollFailures, s.txIngested,
		s.txSkipped, s.nodeReward, s.iterationErrors, s.rewardCycles,
	}
}

func (s *Stats) register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := s.registerer.Register(c); err != nil {
			return errors.Join(ErrFailedToRegisterStats, err)
		}
	}
	return nil
}
