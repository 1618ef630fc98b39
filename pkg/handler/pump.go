package handler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"invitelink/pkg/core"
)

// Pump calls RunCallbacks on a fixed tick for the whole process lifetime,
// whether or not a session is open.
type Pump struct {
	runner   core.CallbackRunner
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewPump creates a Pump ticking every interval (100ms when zero).
func NewPump(runner core.CallbackRunner, interval time.Duration) *Pump {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Pump{
		runner:   runner,
		interval: interval,
		logger:   zerolog.Nop(),
	}
}

// SetLogger configures the logger for the pump.
func (p *Pump) SetLogger(logger zerolog.Logger) {
	p.logger = logger
}

// Start launches the pump goroutine. Calling Start on a running pump is a no-op.
func (p *Pump) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Go(func() {
		p.run(ctx)
	})
}

// Stop halts the pump and waits for the in-flight tick to finish.
func (p *Pump) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pump) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.runner.RunCallbacks(ctx); err != nil {
				p.logger.Warn().Err(err).Msg("callback pump tick failed")
			}
		}
	}
}
