// Package api provides the read-only HTTP surface for Ledgerwatch.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/darshan-rambhia/ledgerwatch/internal/cache"
	"github.com/darshan-rambhia/ledgerwatch/internal/model"
	"github.com/darshan-rambhia/ledgerwatch/internal/report"
	"github.com/darshan-rambhia/ledgerwatch/internal/reward"
	"github.com/darshan-rambhia/ledgerwatch/internal/store"

	_ "github.com/darshan-rambhia/ledgerwatch/docs/swagger"
)

const (
	defaultRewardLimit = 20
	maxRewardLimit     = 500
)

// Server is the HTTP server for Ledgerwatch.
type Server struct {
	cache  *cache.Cache
	store  *store.Store
	engine *reward.Engine
	window time.Duration // recent transaction window
	now    func() time.Time
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates a new HTTP server. A nil gatherer serves the default
// Prometheus registry.
func NewServer(addr string, c *cache.Cache, s *store.Store, e *reward.Engine, window time.Duration, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	srv := &Server{
		cache:  c,
		store:  s,
		engine: e,
		window: window,
		now:    time.Now,
		mux:    http.NewServeMux(),
	}

	srv.registerRoutes(gatherer)

	srv.server = &http.Server{
		Addr:         addr,
		Handler:      SecurityHeadersMiddleware(RecoveryMiddleware(LoggingMiddleware(srv.mux))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("HTTP server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("GET /api/nodes", s.handleNodes)
	s.mux.HandleFunc("GET /api/rewards", s.handleRewards)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	s.mux.HandleFunc("GET /api/protocol", s.handleProtocol)
	s.mux.HandleFunc("GET /api/transactions/{id}", s.handleTransaction)
	s.mux.HandleFunc("GET /api/alerts", s.handleAlerts)

	// Health check
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	// Prometheus exposition
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Swagger UI
	s.mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}

// writeJSON marshals v to JSON into a buffer first, then writes it to the
// response. This ensures marshalling errors can be returned as a proper 500.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding JSON response", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		slog.Debug("writing JSON response", "path", r.URL.Path, "error", err)
	}
}

// queryLimit returns the "limit" query parameter, or the default when it is
// missing or outside 1..maxRewardLimit.
func queryLimit(r *http.Request) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= maxRewardLimit {
			return v
		}
	}
	return defaultRewardLimit
}

func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "path", r.URL.Path, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func (s *Server) nodeSummaries(ctx context.Context) ([]model.NodeSummary, error) {
	nodes, err := s.store.NodeSummaries(ctx, s.window)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []model.NodeSummary{}
	}
	return nodes, nil
}

func (s *Server) rewardHistory(ctx context.Context, limit int) ([]model.RewardRecord, error) {
	rewards, err := s.store.RewardHistory(ctx, limit)
	if err != nil {
		return nil, err
	}
	if rewards == nil {
		rewards = []model.RewardRecord{}
	}
	return rewards, nil
}

// @Summary Node list
// @Description Returns counters, metrics and reward balance for every known node
// @Produce json
// @Success 200 {array} model.NodeSummary
// @Failure 500 {string} string "Internal Server Error"
// @Router /api/nodes [get]
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.nodeSummaries(r.Context())
	if err != nil {
		internalError(w, r, "querying node summaries", err)
		return
	}
	writeJSON(w, r, nodes)
}

// @Summary Reward history
// @Description Returns the most recent reward records, newest first
// @Produce json
// @Param limit query int false "Number of records (1-500)" default(20)
// @Success 200 {array} model.RewardRecord
// @Failure 500 {string} string "Internal Server Error"
// @Router /api/rewards [get]
func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)
	rewards, err := s.rewardHistory(r.Context(), limit)
	if err != nil {
		internalError(w, r, "querying reward history", err)
		return
	}
	writeJSON(w, r, rewards)
}

// @Summary System statistics
// @Description Returns transaction, reward and latency aggregates across all nodes
// @Produce json
// @Success 200 {object} model.SystemStats
// @Failure 500 {string} string "Internal Server Error"
// @Router /api/stats [get]
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.SystemStats(r.Context(), s.window)
	if err != nil {
		internalError(w, r, "querying system stats", err)
		return
	}
	writeJSON(w, r, stats)
}

// metricsResponse is the response body for GET /api/metrics.
type metricsResponse struct {
	Nodes         []model.NodeSummary  `json:"nodes"`
	Rewards       []model.RewardRecord `json:"rewards"`
	RewardDetails []model.RewardDetail `json:"reward_details"`
	Stats         model.SystemStats    `json:"stats"`
	Timestamp     int64                `json:"timestamp"`
}

// @Summary Dashboard metrics
// @Description Returns nodes, recent rewards, system stats and a preview of the next reward cycle computed over current state
// @Produce json
// @Success 200 {object} metricsResponse
// @Failure 500 {string} string "Internal Server Error"
// @Router /api/metrics [get]
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	nodes, err := s.nodeSummaries(ctx)
	if err != nil {
		internalError(w, r, "querying node summaries", err)
		return
	}
	rewards, err := s.rewardHistory(ctx, defaultRewardLimit)
	if err != nil {
		internalError(w, r, "querying reward history", err)
		return
	}
	stats, err := s.store.SystemStats(ctx, s.window)
	if err != nil {
		internalError(w, r, "querying system stats", err)
		return
	}

	writeJSON(w, r, metricsResponse{
		Nodes:         nodes,
		Rewards:       rewards,
		RewardDetails: s.engine.Compute(nodes),
		Stats:         stats,
		Timestamp:     s.now().Unix(),
	})
}

// @Summary Network description
// @Description Returns the protocol parameters reported by the first reachable node at startup
// @Produce json
// @Success 200 {object} model.ProtocolInfo
// @Failure 404 {string} string "No node reported protocol parameters"
// @Router /api/protocol [get]
func (s *Server) handleProtocol(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Snapshot()
	if snap.Protocol == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, r, snap.Protocol)
}

// @Summary Transaction lookup
// @Description Returns the ledger entry for an output identifier
// @Produce json
// @Param id path string true "Output identifier"
// @Success 200 {object} model.Transaction
// @Failure 404 {string} string "Transaction not found"
// @Failure 500 {string} string "Internal Server Error"
// @Router /api/transactions/{id} [get]
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok, err := s.store.Transaction(r.Context(), r.PathValue("id"))
	if err != nil {
		internalError(w, r, "querying transaction", err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, r, tx)
}

// @Summary Alert history
// @Description Returns the most recent fired and resolved alerts, newest first
// @Produce json
// @Param limit query int false "Number of records (1-500)" default(20)
// @Success 200 {array} model.AlertRecord
// @Failure 500 {string} string "Internal Server Error"
// @Router /api/alerts [get]
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.RecentAlerts(r.Context(), queryLimit(r))
	if err != nil {
		internalError(w, r, "querying alerts", err)
		return
	}
	if alerts == nil {
		alerts = []model.AlertRecord{}
	}
	writeJSON(w, r, alerts)
}

// nodeHealth is one node entry in the health response.
type nodeHealth struct {
	LastPoll  string  `json:"last_poll"`
	Reachable bool    `json:"reachable"`
	LatencyMs float64 `json:"latency_ms"`
	Milestone int64   `json:"milestone_index"`
	Error     string  `json:"error,omitempty"`
}

// @Summary Health check
// @Description Returns service health status, scheduler poll times and per-node reachability
// @Produce json
// @Success 200 {object} map[string]interface{} "Health status"
// @Router /healthz [get]
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Snapshot()
	now := s.now()

	status := "ok"
	if len(snap.LastPoll) == 0 {
		status = "no_data"
	}

	collectors := make(map[string]string, len(snap.LastPoll))
	for k, v := range snap.LastPoll {
		collectors[k] = report.FormatAge(v, now)
	}

	nodes := make(map[string]nodeHealth, len(snap.Polls))
	for name, p := range snap.Polls {
		nodes[name] = nodeHealth{
			LastPoll:  report.FormatAge(p.LastPoll, now),
			Reachable: p.Reachable,
			LatencyMs: p.LatencyMs,
			Milestone: p.MilestoneIndex,
			Error:     p.Error,
		}
	}

	writeJSON(w, r, map[string]any{
		"status":      status,
		"timestamp":   now.Unix(),
		"collectors":  collectors,
		"nodes":       nodes,
		"last_reward": report.FormatAge(snap.LastReward, now),
	})
}
