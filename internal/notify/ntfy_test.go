package notify

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
)

func TestNtfyName(t *testing.T) {
	assert.Equal(t, "ntfy", NewNtfy("http://localhost", "alerts", "").Name())
}

func TestNtfySend(t *testing.T) {
	srv, last := captureServer(t, http.StatusOK)

	p := NewNtfy(srv.URL, "ledger-alerts", "")
	err := p.Send(context.Background(), model.Notification{
		AlertType: "node_down",
		Severity:  "critical",
		Title:     "Node Down: Hornet-1",
		Message:   "[Hornet-1] unreachable for 2m0s: connection refused",
		Node:      "Hornet-1",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	req := last()
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/ledger-alerts", req.path)
	assert.Equal(t, "Node Down: Hornet-1", req.header.Get("Title"))
	assert.Equal(t, "urgent", req.header.Get("Priority"))
	assert.Equal(t, "rotating_light,node_down,Hornet-1", req.header.Get("Tags"))
	assert.Empty(t, req.header.Get("Authorization"))
	assert.Equal(t, "[Hornet-1] unreachable for 2m0s: connection refused", string(req.body))
}

func TestNtfySend_Token(t *testing.T) {
	srv, last := captureServer(t, http.StatusOK)

	p := NewNtfy(srv.URL+"/", "alerts", "tk_secret")
	require.NoError(t, p.Send(context.Background(), model.Notification{Severity: "info", Message: "hi"}))

	assert.Equal(t, "/alerts", last().path)
	assert.Equal(t, "Bearer tk_secret", last().header.Get("Authorization"))
}

func TestNtfyPriority(t *testing.T) {
	tests := map[string]string{
		"critical": "urgent",
		"warning":  "high",
		"info":     "default",
		"":         "default",
		"bogus":    "default",
	}
	for severity, want := range tests {
		assert.Equal(t, want, priority(severity), severity)
	}
}

func TestNtfyTags(t *testing.T) {
	tests := []struct {
		name  string
		notif model.Notification
		want  string
	}{
		{
			name:  "warning with node",
			notif: model.Notification{Severity: "warning", AlertType: "sync_lag", Node: "Hornet-2"},
			want:  "warning,sync_lag,Hornet-2",
		},
		{
			name:  "no node",
			notif: model.Notification{Severity: "warning", AlertType: "reward_stale"},
			want:  "warning,reward_stale",
		},
		{
			name:  "resolved replaces severity emoji",
			notif: model.Notification{Severity: "info", AlertType: "node_down", Node: "Hornet-1", Resolved: true},
			want:  "white_check_mark,node_down,Hornet-1",
		},
		{
			name:  "unknown severity",
			notif: model.Notification{Severity: "bogus", AlertType: "latency_high"},
			want:  "latency_high",
		},
		{
			name: "empty",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ntfyTags(tt.notif))
		})
	}
}

func TestNtfySend_ServerError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusInternalServerError)

	err := NewNtfy(srv.URL, "alerts", "").Send(context.Background(), model.Notification{Severity: "info"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestNtfySend_CancelledContext(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewNtfy(srv.URL, "alerts", "").Send(ctx, model.Notification{Severity: "info"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ntfy: send:")
}

func TestNtfySend_BadURL(t *testing.T) {
	err := NewNtfy("://invalid", "alerts", "").Send(context.Background(), model.Notification{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ntfy: build request:")
}
