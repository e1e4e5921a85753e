package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer inserts a random delay in [Min, Max] before upstream calls so a burst
// of requests does not look scripted. The zero Pacer never waits.
type Pacer struct {
	Min time.Duration
	Max time.Duration
}

// NewPacer builds a pacer, swapping the bounds if they arrive reversed.
func NewPacer(minDelay, maxDelay time.Duration) Pacer {
	if maxDelay < minDelay {
		minDelay, maxDelay = maxDelay, minDelay
	}
	return Pacer{Min: minDelay, Max: maxDelay}
}

// Delay returns the next delay without sleeping.
func (p Pacer) Delay() time.Duration {
	if p.Max <= 0 {
		return 0
	}
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + rand.N(p.Max-p.Min)
}

// Wait sleeps for the next delay. It returns ctx.Err() if ctx ends first.
func (p Pacer) Wait(ctx context.Context) error {
	if !sleep(ctx, p.Delay()) {
		return ctx.Err()
	}
	return nil
}
