package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
)

// webhookPayload is the JSON body posted to webhooks: the notification
// fields plus the sending system and the event kind.
type webhookPayload struct {
	Source string `json:"source"`
	Event  string `json:"event"` // "fired" or "resolved"
	model.Notification
}

// WebhookProvider sends notifications as JSON to an HTTP endpoint. Configured
// headers are applied last and may override the defaults.
type WebhookProvider struct {
	url     string
	method  string
	headers map[string]string
	client  *http.Client
}

// NewWebhook creates a webhook provider. An empty method means POST.
func NewWebhook(url, method string, headers map[string]string) *WebhookProvider {
	if method == "" {
		method = http.MethodPost
	}
	return &WebhookProvider{
		url:     url,
		method:  method,
		headers: headers,
		client:  &http.Client{Timeout: sendTimeout},
	}
}

func (w *WebhookProvider) Name() string { return "webhook" }

func (w *WebhookProvider) Send(ctx context.Context, n model.Notification) error {
	event := "fired"
	if n.Resolved {
		event = "resolved"
	}
	body, err := json.Marshal(webhookPayload{Source: "ledgerwatch", Event: event, Notification: n})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, w.method, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ledgerwatch-Alert", n.AlertType)
	req.Header.Set("X-Ledgerwatch-Event", event)
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	return deliver(w.client, "webhook", req)
}
