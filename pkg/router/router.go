// Package router maps server commands to application handlers.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"invitelink/pkg/core"
)

// HandlerFunc handles one server command.
type HandlerFunc func(ctx context.Context, msg *core.ServerMessage, reply core.Sender) (core.Outcome, error)

// TickFunc is called periodically by the handler pump.
type TickFunc func(ctx context.Context) error

// Router dispatches server messages by their cmd field. It implements
// core.Handler and core.CallbackRunner.
type Router struct {
	mu     sync.RWMutex
	routes map[string]HandlerFunc
	ticks  []TickFunc
	logger zerolog.Logger
}

// New creates an empty Router.
func New() *Router {
	return &Router{
		routes: make(map[string]HandlerFunc),
		logger: zerolog.Nop(),
	}
}

// SetLogger configures the logger. Handlers can reach it with zerolog.Ctx.
func (r *Router) SetLogger(logger zerolog.Logger) {
	r.logger = logger
}

// Handle registers fn for cmd, replacing any previous registration.
func (r *Router) Handle(cmd string, fn HandlerFunc) {
	r.mu.Lock()
	r.routes[cmd] = fn
	r.mu.Unlock()
}

// OnTick registers fn to be run by RunCallbacks.
func (r *Router) OnTick(fn TickFunc) {
	r.mu.Lock()
	r.ticks = append(r.ticks, fn)
	r.mu.Unlock()
}

// HandleMessage routes msg. Unknown commands are ignored.
func (r *Router) HandleMessage(ctx context.Context, msg *core.ServerMessage, reply core.Sender) (core.Outcome, error) {
	r.mu.RLock()
	fn, ok := r.routes[msg.Cmd]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug().Str("cmd", msg.Cmd).Msg("unhandled command")
		return core.OutcomeContinue, nil
	}

	ctx = r.logger.With().Str("cmd", msg.Cmd).Logger().WithContext(ctx)
	outcome, err := fn(ctx, msg, reply)
	if err != nil {
		return outcome, fmt.Errorf("%s: %w", msg.Cmd, err)
	}
	return outcome, nil
}

// RunCallbacks runs every registered tick function once, in registration
// order. All functions run even if some fail.
func (r *Router) RunCallbacks(ctx context.Context) error {
	r.mu.RLock()
	ticks := append([]TickFunc(nil), r.ticks...)
	r.mu.RUnlock()

	var errs []error
	for _, tick := range ticks {
		if err := tick(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExitHandler shows the server's message and stops the client.
func ExitHandler(ctx context.Context, msg *core.ServerMessage, _ core.Sender) (core.Outcome, error) {
	logger := zerolog.Ctx(ctx)
	if msg.Message != "" {
		logger.Info().Msg(msg.Message)
	} else {
		logger.Info().Msg("the server closed this client")
	}
	return core.OutcomeTerminate, nil
}

// MessageHandler shows the server's message and keeps the session open.
func MessageHandler(ctx context.Context, msg *core.ServerMessage, _ core.Sender) (core.Outcome, error) {
	if msg.Message != "" {
		zerolog.Ctx(ctx).Info().Msg(msg.Message)
	}
	return core.OutcomeContinue, nil
}
