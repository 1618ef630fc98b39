package backoff

import (
	"sync"
	"time"
)

// Config holds the parameters of the reconnect wait schedule.
type Config struct {
	// BaseWait is the wait returned after the first failure and after every Reset.
	BaseWait time.Duration
	// MaxWait caps every wait returned by Next.
	MaxWait time.Duration
	// Multiplier is the factor applied to the wait after each consecutive failure.
	Multiplier float64
}

// DefaultConfig returns a Config with a 1s floor doubling up to 30s.
func DefaultConfig() Config {
	return Config{
		BaseWait:   1 * time.Second,
		MaxWait:    30 * time.Second,
		Multiplier: 2.0,
	}
}

// Backoff counts consecutive connection failures and turns them into waits.
// It is safe for concurrent use.
type Backoff struct {
	config Config

	mu       sync.Mutex
	attempts int
}

// New creates a Backoff. Zero-valued configuration fields take their defaults.
func New(config Config) *Backoff {
	def := DefaultConfig()
	if config.BaseWait <= 0 {
		config.BaseWait = def.BaseWait
	}
	if config.MaxWait <= 0 {
		config.MaxWait = def.MaxWait
	}
	if config.MaxWait < config.BaseWait {
		config.MaxWait = config.BaseWait
	}
	if config.Multiplier < 1 {
		config.Multiplier = def.Multiplier
	}
	return &Backoff{config: config}
}

// Next returns the wait before the next connection attempt and records one more failure.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	wait := Calculate(b.config, b.attempts)
	if wait < b.config.MaxWait {
		b.attempts++
	}
	return wait
}

// Reset returns the schedule to its floor.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.attempts = 0
	b.mu.Unlock()
}

// Attempts returns the number of failures recorded since the last Reset,
// saturating once the wait has reached MaxWait.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Config returns the effective configuration.
func (b *Backoff) Config() Config {
	return b.config
}

// Calculate returns BaseWait*Multiplier^attempts capped at MaxWait.
func Calculate(config Config, attempts int) time.Duration {
	wait := config.BaseWait
	for range attempts {
		next := time.Duration(float64(wait) * config.Multiplier)
		if next >= config.MaxWait || next < wait {
			return config.MaxWait
		}
		wait = next
	}
	return min(wait, config.MaxWait)
}
