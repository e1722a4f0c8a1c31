// Package ratelimit paces outbound page loads.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer bounds how fast the scraper hits the store: a fixed pause between
// consecutive targets plus a token-bucket cap on navigation attempts, which
// also covers retries inside one target.
type Pacer struct {
	mu         sync.RWMutex
	limiter    *rate.Limiter
	interDelay time.Duration
	waits      int64
	pauses     int64
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a Pacer. navPerSecond <= 0 disables the navigation cap.
func NewPacer(interDelay time.Duration, navPerSecond float64, burst int) *Pacer {
	limit := rate.Inf
	if navPerSecond > 0 {
		limit = rate.Limit(navPerSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Pacer{
		limiter:    rate.NewLimiter(limit, burst),
		interDelay: interDelay,
		sleep:      sleep,
	}
}

// Wait blocks until a navigation is allowed or ctx is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	p.waits++
	p.mu.Unlock()
	return p.limiter.Wait(ctx)
}

// Between blocks for the inter-target delay.
func (p *Pacer) Between(ctx context.Context) error {
	p.mu.Lock()
	d := p.interDelay
	p.pauses++
	p.mu.Unlock()

	return p.sleep(ctx, d)
}

// SetInterDelay changes the pause between targets.
func (p *Pacer) SetInterDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interDelay = d
}

// InterDelay returns the pause between targets.
func (p *Pacer) InterDelay() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.interDelay
}

// Stats returns pacer statistics.
func (p *Pacer) Stats() PacerStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PacerStats{
		InterDelay:      p.interDelay,
		NavigationRate:  float64(p.limiter.Limit()),
		NavigationBurst: p.limiter.Burst(),
		NavigationWaits: p.waits,
		Pauses:          p.pauses,
	}
}

// PacerStats contains pacer statistics.
type PacerStats struct {
	InterDelay      time.Duration `json:"inter_delay"`
	NavigationRate  float64       `json:"navigation_rate"`
	NavigationBurst int           `json:"navigation_burst"`
	NavigationWaits int64         `json:"navigation_waits"`
	Pauses          int64         `json:"pauses"`
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
