// Package handler shares one application handler between message dispatch
// and the background callback pump.
package handler

import (
	"context"
	"sync"

	"invitelink/pkg/core"
)

// Guard serialises every call into the wrapped handler.
type Guard struct {
	mu      sync.Mutex
	handler core.Handler
}

// NewGuard wraps h. The same Guard must be handed to both the dispatcher and
// the pump; never wrap one handler twice.
func NewGuard(h core.Handler) *Guard {
	return &Guard{handler: h}
}

// HandleMessage forwards msg to the wrapped handler under the lock.
func (g *Guard) HandleMessage(ctx context.Context, msg *core.ServerMessage, reply core.Sender) (core.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.handler.HandleMessage(ctx, msg, reply)
}

// RunCallbacks runs the wrapped handler's periodic work under the lock.
// Handlers that do not implement core.CallbackRunner are skipped.
func (g *Guard) RunCallbacks(ctx context.Context) error {
	runner, ok := g.handler.(core.CallbackRunner)
	if !ok {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return runner.RunCallbacks(ctx)
}
