package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out connection attempts. It allows a burst of attempts and then
// holds every further attempt until a token frees up.
type Pacer struct {
	limiter *rate.Limiter
	metrics *Metrics
}

// Metrics tracks statistics about pacer usage.
type Metrics struct {
	totalAttempts   atomic.Int64
	delayedAttempts atomic.Int64
	deniedAttempts  atomic.Int64
}

// New creates a Pacer allowing the given number of attempts per period.
func New(attempts int, period time.Duration) *Pacer {
	if attempts < 1 {
		attempts = 1
	}
	return &Pacer{
		limiter: rate.NewLimiter(every(attempts, period), attempts),
		metrics: &Metrics{},
	}
}

func every(attempts int, period time.Duration) rate.Limit {
	if period <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(attempts) / period.Seconds())
}

// Wait blocks until an attempt is allowed or the context is cancelled.
// It returns how long the caller was held back.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	p.metrics.totalAttempts.Add(1)
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		p.metrics.deniedAttempts.Add(1)
		return time.Since(start), err
	}
	waited := time.Since(start)
	if waited > time.Millisecond {
		p.metrics.delayedAttempts.Add(1)
	}
	return waited, nil
}

// Metrics returns a snapshot of the current pacer statistics.
func (p *Pacer) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalAttempts:   p.metrics.totalAttempts.Load(),
		DelayedAttempts: p.metrics.delayedAttempts.Load(),
		DeniedAttempts:  p.metrics.deniedAttempts.Load(),
	}
}

// MetricsSnapshot is a point-in-time capture of pacer statistics.
type MetricsSnapshot struct {
	// TotalAttempts is the number of Wait calls.
	TotalAttempts int64
	// DelayedAttempts is the number of Wait calls that had to block.
	DelayedAttempts int64
	// DeniedAttempts is the number of attempts refused or cancelled.
	DeniedAttempts int64
}
