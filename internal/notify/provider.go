// Package notify delivers alert notifications to external channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/darshan-rambhia/ledgerwatch/internal/model"
)

const sendTimeout = 10 * time.Second

// Provider sends notifications through a specific channel.
type Provider interface {
	Name() string
	Send(ctx context.Context, n model.Notification) error
}

// StatusError is returned when a channel answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.StatusCode)
}

// SendAll delivers n to every provider. A failing provider does not stop
// delivery to the rest; all failures are returned joined.
func SendAll(ctx context.Context, providers []Provider, n model.Notification) error {
	var errs []error
	for _, p := range providers {
		if err := p.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// deliver performs req and checks the status. The response body is
// discarded.
func deliver(client *http.Client, provider string, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send: %w", provider, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Provider: provider, StatusCode: resp.StatusCode}
	}
	return nil
}
