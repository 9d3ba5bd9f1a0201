// Package trigger coalesces bursts of change notifications into single pipeline runs.
package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RunFunc performs one pipeline run
type RunFunc func(ctx context.Context) error

// Trigger runs fn at most once at a time. Kicks that arrive while a run is in
// flight queue exactly one follow-up run.
type Trigger struct {
	fn       RunFunc
	debounce time.Duration
	kick     chan struct{}

	mu      sync.Mutex
	running bool
}

func New(fn RunFunc, debounce time.Duration) *Trigger {
	return &Trigger{
		fn:       fn,
		debounce: debounce,
		kick:     make(chan struct{}, 1),
	}
}

// Schedule requests a run without blocking. It reports false when a run was
// already pending and this request was folded into it.
func (t *Trigger) Schedule() bool {
	select {
	case t.kick <- struct{}{}:
		return true
	default:
		return false
	}
}

// Running reports whether a run is in flight
func (t *Trigger) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Start serves kicks until ctx is cancelled. A run already underway finishes
// before Start returns.
func (t *Trigger) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.kick:
		}

		if t.debounce > 0 {
			timer := time.NewTimer(t.debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		// kicks from the debounce window belong to this run
		select {
		case <-t.kick:
		default:
		}

		t.run(ctx)
	}
}

func (t *Trigger) run(ctx context.Context) {
	t.mu.Lock()
	t.running = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	if err := t.fn(ctx); err != nil {
		slog.Error("Scheduled run failed", "err", err)
	}
}
