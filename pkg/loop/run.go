package loop

import (
	"context"
	"time"

	"github.com/meridian-network/node/pkg/log"
)

// Runner drives a Loop's Tick on a fixed cadence until Stop is
// called or its context is cancelled.
type Runner struct {
	loop         *Loop
	tickInterval time.Duration
	stopCh       chan struct{}
}

// NewRunner wraps loop in a ticker-driven run cycle.
func NewRunner(l *Loop, tickInterval time.Duration) *Runner {
	return &Runner{loop: l, tickInterval: tickInterval, stopCh: make(chan struct{})}
}

// Start begins the run loop in its own goroutine.
func (r *Runner) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the run loop to exit after its current tick.
func (r *Runner) Stop() {
	close(r.stopCh)
}

func (r *Runner) run(ctx context.Context) {
	logger := log.WithComponent("loop")
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.loop.Tick(ctx); err != nil {
				logger.Error().Err(err).Msg("tick failed")
			}
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		}
	}
}
