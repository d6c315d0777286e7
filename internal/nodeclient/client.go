// Package nodeclient talks to the REST API of a ledger node.
package nodeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
)

const maxBodyBytes = 10 << 20 // 10 MB

// Config holds settings shared by all requests.
type Config struct {
	AuthToken    string
	APIPrefix    string        // e.g. "/api/core/v2"
	Timeout      time.Duration // per request
	MaxLatencyMs float64       // reported as latency when a node fails
}

// Client issues requests against any configured node.
type Client struct {
	config Config
	client *http.Client
}

// New creates a client. A zero timeout defaults to 10s.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// LatestMilestone returns the node's latest milestone index and the wall-clock
// latency of the call. On any error the latency is the configured ceiling so
// the caller can still degrade the node's average.
func (c *Client) LatestMilestone(ctx context.Context, node model.Node) (int64, float64, error) {
	start := time.Now()
	body, err := c.do(ctx, node, http.MethodGet, "/info", nil)
	latency := float64(time.Since(start)) / float64(time.Millisecond)
	if err != nil {
		return 0, c.config.MaxLatencyMs, err
	}

	var resp struct {
		Status struct {
			LatestMilestone *struct {
				Index *int64 `json:"index"`
			} `json:"latestMilestone"`
		} `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, c.config.MaxLatencyMs, fmt.Errorf("%w: parsing node info: %w", ErrMalformed, err)
	}
	if resp.Status.LatestMilestone == nil || resp.Status.LatestMilestone.Index == nil {
		return 0, c.config.MaxLatencyMs, fmt.Errorf("%w: node info has no latest milestone", ErrMalformed)
	}
	return *resp.Status.LatestMilestone.Index, latency, nil
}

// MilestoneUTXOChanges returns the output IDs created and consumed by the
// given milestone, in the order the node lists them.
func (c *Client) MilestoneUTXOChanges(ctx context.Context, node model.Node, index int64) ([]string, []string, error) {
	body, err := c.do(ctx, node, http.MethodGet, fmt.Sprintf("/milestones/by-index/%d/utxo-changes", index), nil)
	if err != nil {
		return nil, nil, err
	}

	var resp struct {
		CreatedOutputs  []string `json:"createdOutputs"`
		ConsumedOutputs []string `json:"consumedOutputs"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("%w: parsing utxo changes: %w", ErrMalformed, err)
	}
	return resp.CreatedOutputs, resp.ConsumedOutputs, nil
}

// ProtocolParameters returns the network and base token description.
func (c *Client) ProtocolParameters(ctx context.Context, node model.Node) (model.ProtocolInfo, error) {
	body, err := c.do(ctx, node, http.MethodGet, "/info", nil)
	if err != nil {
		return model.ProtocolInfo{}, err
	}

	var resp struct {
		Protocol struct {
			NetworkName string `json:"networkName"`
			BaseToken   struct {
				Name         string `json:"name"`
				TickerSymbol string `json:"tickerSymbol"`
				Decimals     int    `json:"decimals"`
			} `json:"baseToken"`
		} `json:"protocol"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.ProtocolInfo{}, fmt.Errorf("%w: parsing protocol parameters: %w", ErrMalformed, err)
	}

	info := model.ProtocolInfo{
		NetworkName:   orUnknown(resp.Protocol.NetworkName),
		TokenName:     orUnknown(resp.Protocol.BaseToken.Name),
		TokenSymbol:   orUnknown(resp.Protocol.BaseToken.TickerSymbol),
		TokenDecimals: resp.Protocol.BaseToken.Decimals,
	}
	return info, nil
}

// Tips returns the node's current tip block IDs.
func (c *Client) Tips(ctx context.Context, node model.Node) ([]string, error) {
	body, err := c.do(ctx, node, http.MethodGet, "/tips", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Tips []string `json:"tips"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing tips: %w", ErrMalformed, err)
	}
	return resp.Tips, nil
}

// Blocks fetches the given blocks in one request. Blocks are returned
// undecoded since only their presence is of interest here.
func (c *Client) Blocks(ctx context.Context, node model.Node, ids []string) ([]json.RawMessage, error) {
	if len(ids) == 0 {
		return []json.RawMessage{}, nil
	}

	payload, err := json.Marshal(struct {
		BlockIDs []string `json:"blockIds"`
	}{BlockIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("encoding block request: %w", err)
	}

	body, err := c.do(ctx, node, http.MethodPost, "/blocks", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Blocks []json.RawMessage `json:"blocks"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing blocks: %w", ErrMalformed, err)
	}
	return resp.Blocks, nil
}

func (c *Client) do(ctx context.Context, node model.Node, method, path string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	endpoint := c.config.APIPrefix + path
	url := strings.TrimRight(node.URL, "/") + endpoint

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: requesting %s: %w", ErrUnreachable, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response from %s: %w", ErrUnreachable, endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Endpoint:   endpoint,
		}
	}
	return body, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
