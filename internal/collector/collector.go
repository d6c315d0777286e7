// Package collector drives polling of ledger nodes and the reward cycle.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Collector is a unit of periodic work.
type Collector interface {
	Name() string
	Collect(ctx context.Context) error
	Interval() time.Duration
}

// Backoffer is implemented by collectors that wait longer after a failed
// Collect than after a successful one.
type Backoffer interface {
	Backoff() time.Duration
}

// WorkerPool runs submitted functions with at most size of them in flight.
type WorkerPool struct {
	slots chan struct{}
	wg    sync.WaitGroup
}

// NewWorkerPool returns a pool of size slots. Sizes below one are raised to
// one.
func NewWorkerPool(size int) *WorkerPool {
	return &WorkerPool{slots: make(chan struct{}, max(size, 1))}
}

// Submit waits for a free slot and runs fn on its own goroutine. If ctx ends
// first, fn is not run and ctx.Err() is returned.
func (p *WorkerPool) Submit(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.slots }()
		fn()
	}()
	return nil
}

// Wait blocks until every submitted function has returned.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Run calls Collect immediately and then again after each pause until ctx
// is cancelled. The pause is Interval after a success and Backoff after a
// failure when c implements Backoffer. The pause starts once Collect
// returns, so iterations never overlap.
func Run(ctx context.Context, c Collector) error {
	interval := c.Interval()
	backoff := interval
	if b, ok := c.(Backoffer); ok {
		backoff = b.Backoff()
	}

	log := slog.With("collector", c.Name())
	log.Info("collector started", "interval", interval, "backoff", backoff)
	defer log.Info("collector stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait := interval
		if err := c.Collect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("collection failed", "error", err, "retry_in", backoff)
			wait = backoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
