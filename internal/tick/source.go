package tick

import (
	"context"
	"runtime"
	"time"
)

// Run calls c.Tick for every value received on tick until ctx is done.
// Production code passes a time.Ticker channel; tests pass their own.
func Run(ctx context.Context, c *Counters, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			c.Tick()
		}
	}
}

// RunTicker drives c from a time.Ticker with the given period.
func RunTicker(ctx context.Context, c *Counters, period time.Duration) error {
	t := time.NewTicker(period)
	defer t.Stop()
	return Run(ctx, c, t.C)
}

// Spin ticks c as fast as the scheduler allows until ctx is done.
// It lets tests run through multi-second delays without wall-clock waits.
func Spin(ctx context.Context, c *Counters) {
	for ctx.Err() == nil {
		c.Tick()
		runtime.Gosched()
	}
}
