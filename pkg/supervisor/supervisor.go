package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"invitelink/internal/backoff"
	"invitelink/internal/ratelimit"
	"invitelink/internal/ws"
	"invitelink/pkg/core"
	"invitelink/pkg/dispatch"
	"invitelink/pkg/lifecycle"
)

// Reason explains why Run returned.
type Reason int

const (
	// ReasonCancelled means the process context ended.
	ReasonCancelled Reason = iota
	// ReasonSetupFailed means the target address was unusable; nothing was dialled.
	ReasonSetupFailed
	// ReasonRejected means the server refused the handshake in a way that retrying cannot fix.
	ReasonRejected
	// ReasonHandlerRequested means the application handler asked to stop.
	ReasonHandlerRequested
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonCancelled:
		return "CANCELLED"
	case ReasonSetupFailed:
		return "SETUP_FAILED"
	case ReasonRejected:
		return "REJECTED"
	case ReasonHandlerRequested:
		return "HANDLER_REQUESTED"
	default:
		return "UNKNOWN"
	}
}

// Result is the final state of a Run.
type Result struct {
	Reason Reason
	// Message is the user-facing explanation, set for rejections and setup failures.
	Message string
	Err     error
	// Sessions is the number of connection attempts made.
	Sessions int
}

// Supervisor drives one session after another against a fixed address until
// the handler asks to stop, the server rejects the client for good, or the
// context ends.
type Supervisor struct {
	addr       string
	config     *core.Config
	dialer     lifecycle.Dialer
	lifecycle  *lifecycle.Manager
	dispatcher *dispatch.Dispatcher
	backoff    *backoff.Backoff
	pacer      *ratelimit.Pacer
	state      *ws.State
	logger     zerolog.Logger

	sleep     func(ctx context.Context, d time.Duration) error
	reconnect bool
	sessions  int
}

// New creates a Supervisor dialling addr over gws.
func New(addr string, handler core.Handler, config *core.Config) (*Supervisor, error) {
	if config == nil {
		config = core.DefaultConfig()
	}
	return NewWithDialer(addr, handler, config, ws.NewDialer(dialerConfig(config)))
}

// handshakeSlack keeps the gws handshake bound behind the connect timeout so
// the context deadline is always what ends a slow dial.
const handshakeSlack = time.Second

func dialerConfig(config *core.Config) ws.DialerConfig {
	return ws.DialerConfig{HandshakeTimeout: config.ConnectTimeout + handshakeSlack}
}

// NewWithDialer creates a Supervisor using the given dialer.
// The configuration is validated; the address is only checked by Run.
func NewWithDialer(addr string, handler core.Handler, config *core.Config, dialer lifecycle.Dialer) (*Supervisor, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if config == nil {
		config = core.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, core.NewConnError(core.ErrorTypeSetup, "config", "invalid supervisor configuration", err)
	}

	retry := backoff.New(backoff.Config{
		BaseWait:   config.BackoffBaseWait,
		MaxWait:    config.BackoffMaxWait,
		Multiplier: config.BackoffMultiplier,
	})

	s := &Supervisor{
		addr:   addr,
		config: config,
		dialer: dialer,
		lifecycle: lifecycle.New(dialer, lifecycle.Config{
			ConnectTimeout: config.ConnectTimeout,
			IdleTimeout:    config.IdleTimeout,
		}),
		dispatcher: dispatch.New(handler, retry),
		backoff:    retry,
		pacer:      ratelimit.New(config.ReconnectRequests, config.ReconnectPeriod),
		state:      &ws.State{},
		logger:     zerolog.Nop(),
		sleep:      sleepContext,
	}
	s.state.Store(ws.StateIdle)
	return s, nil
}

// SetLogger configures the logger for the supervisor and its components.
func (s *Supervisor) SetLogger(logger zerolog.Logger) {
	s.logger = logger
	s.lifecycle.SetLogger(logger)
	s.dispatcher.SetLogger(logger)
	if d, ok := s.dialer.(interface{ SetLogger(zerolog.Logger) }); ok {
		d.SetLogger(logger)
	}
}

// State returns the current state of the reconnect loop.
func (s *Supervisor) State() ws.ConnState {
	return s.state.Load()
}

// Run drives the reconnect loop and returns once it reaches the terminated
// state. Retryable failures are logged and retried after the backoff wait;
// a close from the server is retried at once.
func (s *Supervisor) Run(ctx context.Context) Result {
	if err := core.ValidateAddress(s.addr); err != nil {
		setupErr := core.NewConnError(core.ErrorTypeSetup, "address", "malformed target address", err)
		s.logger.Error().Err(setupErr).Msg("cannot start the connection loop")
		return s.terminate(Result{Reason: ReasonSetupFailed, Message: setupErr.Message, Err: setupErr})
	}

	schedule := s.backoff.Config()
	s.logger.Debug().
		Dur("base_wait", schedule.BaseWait).
		Dur("max_wait", schedule.MaxWait).
		Float64("multiplier", schedule.Multiplier).
		Msg("starting the connection loop")

	for {
		if !s.state.Transition(ws.StateConnecting) {
			return s.terminate(Result{Reason: ReasonCancelled})
		}
		if waited, err := s.pacer.Wait(ctx); err != nil {
			return s.terminate(Result{Reason: ReasonCancelled, Err: err})
		} else if waited > time.Millisecond {
			s.logger.Debug().Dur("waited", waited).Msg("connection attempt paced")
		}

		end, err := s.runSession(ctx)
		if ctx.Err() != nil {
			return s.terminate(Result{Reason: ReasonCancelled, Err: ctx.Err()})
		}

		switch {
		case err == nil && end == dispatch.EndTerminate:
			s.logger.Info().Msg("the server asked this client to stop")
			return s.terminate(Result{Reason: ReasonHandlerRequested})

		case err == nil:
			s.logger.Info().Msg("connection closed by the server, reconnecting")

		case core.IsRetryable(err):
			s.logger.Error().
				Err(err).
				Str("type", core.ErrorTypeOf(err).String()).
				Int("failures", s.backoff.Attempts()).
				Msg(failureMessage(err))
			wait := s.backoff.Next()
			s.logger.Warn().Dur("wait", wait).Msgf("connection lost, reconnecting in %s", wait)
			if err := s.sleep(ctx, wait); err != nil {
				return s.terminate(Result{Reason: ReasonCancelled, Err: err})
			}

		default:
			message := err.Error()
			var connErr *core.ConnError
			if errors.As(err, &connErr) {
				message = connErr.Message
			}
			s.logger.Error().Err(err).Msg(message)
			return s.terminate(Result{Reason: ReasonRejected, Message: message, Err: err})
		}

		s.reconnect = true
	}
}

func (s *Supervisor) runSession(ctx context.Context) (dispatch.End, error) {
	s.sessions++
	if s.reconnect {
		s.logger.Info().Int("attempt", s.sessions).Msg("reconnecting to the server...")
	} else {
		s.logger.Info().Msg("connecting to the server...")
	}

	sess, err := s.lifecycle.Open(ctx, s.addr)
	if err != nil {
		return dispatch.EndClosed, err
	}
	defer sess.Close()

	s.state.Transition(ws.StateConnected)
	if s.reconnect {
		s.logger.Info().Msg("reconnected")
	} else {
		s.logger.Info().Msg("connected to the server")
	}

	return s.dispatcher.Serve(ctx, sess, s.lifecycle)
}

func (s *Supervisor) terminate(result Result) Result {
	s.state.Store(ws.StateTerminated)
	result.Sessions = s.sessions
	pacing := s.pacer.Metrics()
	s.logger.Debug().
		Str("reason", result.Reason.String()).
		Int("sessions", result.Sessions).
		Int64("paced_attempts", pacing.TotalAttempts).
		Int64("delayed_attempts", pacing.DelayedAttempts).
		Int64("denied_attempts", pacing.DeniedAttempts).
		Msg("connection loop terminated")
	return result
}

func failureMessage(err error) string {
	switch {
	case core.IsTimeoutError(err):
		return "connection timed out"
	case core.IsDecodeError(err):
		return "received a malformed message"
	default:
		return "connection failed"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
