package dispatch

import (
	"context"

	"github.com/rs/zerolog"

	"invitelink/internal/ws"
	"invitelink/pkg/core"
)

// End tells the supervisor how a session finished without error.
type End int

const (
	// EndClosed means the peer closed the session; the supervisor opens a new one.
	EndClosed End = iota
	// EndTerminate means the handler asked the whole process to stop reconnecting.
	EndTerminate
)

// String returns the string representation of the end reason.
func (e End) String() string {
	switch e {
	case EndClosed:
		return "CLOSED"
	case EndTerminate:
		return "TERMINATE"
	default:
		return "UNKNOWN"
	}
}

// Receiver yields the next frame of a session. *lifecycle.Manager implements it.
type Receiver interface {
	Recv(ctx context.Context, sess ws.Session) (ws.Frame, error)
}

// Resetter is notified of every liveness event. *backoff.Backoff implements it.
type Resetter interface {
	Reset()
}

// Dispatcher consumes the frames of one session at a time.
type Dispatcher struct {
	handler  core.Handler
	liveness Resetter
	logger   zerolog.Logger
}

// New creates a Dispatcher forwarding data messages to handler and
// reporting liveness events to liveness.
func New(handler core.Handler, liveness Resetter) *Dispatcher {
	return &Dispatcher{
		handler:  handler,
		liveness: liveness,
		logger:   zerolog.Nop(),
	}
}

// SetLogger configures the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger zerolog.Logger) {
	d.logger = logger
}

// Serve handles frames from sess, one at a time, until the peer closes the
// session, the handler asks to terminate, or an error ends the session.
// Errors are *core.ConnError values and are all retryable.
func (d *Dispatcher) Serve(ctx context.Context, sess ws.Session, recv Receiver) (End, error) {
	for {
		frame, err := recv.Recv(ctx, sess)
		if err != nil {
			return EndClosed, err
		}

		switch frame.Kind {
		case ws.FrameClose:
			d.logger.Debug().Msg("server closed the session")
			return EndClosed, nil

		case ws.FramePing:
			if err := sess.WritePong(frame.Payload); err != nil {
				return EndClosed, core.NewConnError(core.ErrorTypeTransport, "pong",
					"failed to send pong message to the server", err)
			}
			d.liveness.Reset()

		case ws.FrameText:
			end, err := d.dispatch(ctx, sess, frame.Payload)
			if err != nil || end == EndTerminate {
				return end, err
			}

		default:
			d.logger.Trace().Str("kind", frame.Kind.String()).Msg("ignoring frame")
		}
	}
}

// dispatch decodes one data frame and hands it to the handler. It returns
// EndClosed with a nil error when the session should keep going.
func (d *Dispatcher) dispatch(ctx context.Context, sess ws.Session, payload []byte) (End, error) {
	msg, err := core.DecodeServerMessage(payload)
	if err != nil {
		return EndClosed, core.NewConnError(core.ErrorTypeDecode, "decode",
			"failed to deserialize JSON message from the server", err)
	}

	d.logger.Debug().Str("cmd", msg.Cmd).Msg("received server message")

	outcome, err := d.handler.HandleMessage(ctx, msg, sess)
	if err != nil {
		return EndClosed, core.NewConnError(core.ErrorTypeHandler, "handle",
			"failed to handle message "+msg.Cmd, err)
	}
	if outcome == core.OutcomeTerminate {
		d.logger.Debug().Str("cmd", msg.Cmd).Msg("handler requested termination")
		return EndTerminate, nil
	}

	d.liveness.Reset()
	return EndClosed, nil
}
