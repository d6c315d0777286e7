package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
)

var (
	ntfyPriority = map[string]string{
		"critical": "urgent",
		"warning":  "high",
		"info":     "default",
	}
	ntfyEmoji = map[string]string{
		"critical": "rotating_light",
		"warning":  "warning",
		"info":     "information_source",
	}
)

// NtfyProvider publishes plain-text messages to an ntfy topic. Severity
// maps to the message priority; the alert type and node become tags.
type NtfyProvider struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewNtfy creates an ntfy provider for topic on the server at url. A
// non-empty token is sent as a bearer access token.
func NewNtfy(url, topic, token string) *NtfyProvider {
	return &NtfyProvider{
		endpoint: strings.TrimRight(url, "/") + "/" + topic,
		token:    token,
		client:   &http.Client{Timeout: sendTimeout},
	}
}

func (n *NtfyProvider) Name() string { return "ntfy" }

func (n *NtfyProvider) Send(ctx context.Context, notif model.Notification) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(notif.Message))
	if err != nil {
		return fmt.Errorf("ntfy: build request: %w", err)
	}

	req.Header.Set("Title", notif.Title)
	req.Header.Set("Priority", priority(notif.Severity))
	req.Header.Set("Tags", ntfyTags(notif))
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	return deliver(n.client, "ntfy", req)
}

func priority(severity string) string {
	if p, ok := ntfyPriority[severity]; ok {
		return p
	}
	return "default"
}

// ntfyTags lists the emoji tag first, then alert type and node. Resolved
// alerts carry a check mark instead of the severity emoji.
func ntfyTags(n model.Notification) string {
	var tags []string
	if n.Resolved {
		tags = append(tags, "white_check_mark")
	} else if emoji, ok := ntfyEmoji[n.Severity]; ok {
		tags = append(tags, emoji)
	}
	for _, t := range []string{n.AlertType, n.Node} {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return strings.Join(tags, ",")
}
