package citations

import (
	"context"
	"sync"
	"time"
)

// GateConfig holds pacing gate settings.
type GateConfig struct {
	// MinInterval is the minimum delay between any two lookup calls.
	MinInterval time.Duration

	// FailureCooldown is the pause imposed after FailureThreshold
	// consecutive failures.
	FailureCooldown time.Duration

	// FailureThreshold is the consecutive failure count that triggers
	// the cooldown.
	FailureThreshold int
}

// applyDefaults sets default values for unset configuration fields.
func (c *GateConfig) applyDefaults() {
	if c.MinInterval == 0 {
		c.MinInterval = 2 * time.Second
	}
	if c.FailureCooldown == 0 {
		c.FailureCooldown = time.Minute
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
}

// PacingGate spaces external lookup calls with a global minimum
// inter-call delay and imposes a cooldown after repeated failures. It is
// the citation subsystem's own backpressure, independent of per-provider
// token buckets.
type PacingGate struct {
	cfg GateConfig

	mu           sync.Mutex
	nextAllowed  time.Time
	failureCount int
}

// NewPacingGate creates a pacing gate with the given configuration.
func NewPacingGate(cfg GateConfig) *PacingGate {
	cfg.applyDefaults()
	return &PacingGate{cfg: cfg}
}

// Wait blocks until the next call is allowed or the context is canceled.
// The gate's slot is claimed under the lock; the sleep itself happens
// outside it so concurrent callers queue up behind each other without
// serializing on the mutex for the full delay.
func (g *PacingGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	now := time.Now()
	wait := g.nextAllowed.Sub(now)
	if wait < 0 {
		wait = 0
	}
	g.nextAllowed = now.Add(wait + g.cfg.MinInterval)
	g.mu.Unlock()

	if wait == 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RecordSuccess resets the consecutive failure count.
func (g *PacingGate) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failureCount = 0
}

// RecordFailure increments the consecutive failure count and, once the
// threshold is reached, pushes the next allowed call out by the cooldown.
func (g *PacingGate) RecordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failureCount++
	if g.failureCount >= g.cfg.FailureThreshold {
		cooldownUntil := time.Now().Add(g.cfg.FailureCooldown)
		if cooldownUntil.After(g.nextAllowed) {
			g.nextAllowed = cooldownUntil
		}
		g.failureCount = 0
	}
}
