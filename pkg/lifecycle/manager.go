// Package lifecycle opens one websocket session at a time and enforces the
// connect and idle timeouts that stand in for a transport keepalive.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"invitelink/internal/ws"
	"invitelink/pkg/core"
)

// Dialer opens a transport session. *ws.Dialer implements it.
type Dialer interface {
	Dial(ctx context.Context, addr string) (ws.Session, error)
}

// Classifier decides whether a handshake rejection should end the process.
// It returns the user-facing message and whether the rejection is terminal.
type Classifier func(rejection *ws.HandshakeError) (message string, terminal bool)

// Config holds the timeouts of a Manager.
type Config struct {
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	Classifier     Classifier
}

// Manager opens sessions and reads frames from them under the idle timeout.
type Manager struct {
	dialer Dialer
	config Config
	logger zerolog.Logger
}

// New creates a Manager. Zero-valued configuration fields take their defaults.
func New(dialer Dialer, config Config) *Manager {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 60 * time.Second
	}
	if config.Classifier == nil {
		config.Classifier = DefaultClassifier
	}
	return &Manager{
		dialer: dialer,
		config: config,
		logger: zerolog.Nop(),
	}
}

// SetLogger configures the logger for the manager.
func (m *Manager) SetLogger(logger zerolog.Logger) {
	m.logger = logger
}

// Open dials addr once. Failures are returned as *core.ConnError; a
// cancelled parent context is returned as ctx.Err().
func (m *Manager) Open(ctx context.Context, addr string) (ws.Session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()

	sess, err := m.dialer.Dial(dialCtx, addr)
	if err == nil {
		return sess, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, core.NewConnError(core.ErrorTypeConnectTimeout, "connect",
			fmt.Sprintf("connection timed out after %s", m.config.ConnectTimeout), core.ErrConnectTimeout)
	}

	var rejection *ws.HandshakeError
	if errors.As(err, &rejection) {
		message, terminal := m.config.Classifier(rejection)
		m.logger.Debug().
			Int("status", rejection.StatusCode).
			Bool("terminal", terminal).
			Msg("handshake rejected")
		if terminal {
			return nil, core.NewTerminalError(core.ErrorTypeRejected, "connect", message, err)
		}
		return nil, core.NewConnError(core.ErrorTypeRejected, "connect", message, err)
	}

	return nil, core.NewConnError(core.ErrorTypeTransport, "connect", "failed to connect to the server", err)
}

// Recv returns the next frame of sess. If no frame arrives within the idle
// timeout the session is closed and an idle-timeout error is returned.
// A receive side that ends without error is reported as a close frame.
func (m *Manager) Recv(ctx context.Context, sess ws.Session) (ws.Frame, error) {
	timer := time.NewTimer(m.config.IdleTimeout)
	defer timer.Stop()

	select {
	case frame, ok := <-sess.Frames():
		if ok {
			return frame, nil
		}
		if err := sess.Err(); err != nil {
			return ws.Frame{}, core.NewConnError(core.ErrorTypeTransport, "receive",
				"failed to receive message from the server", err)
		}
		return ws.Frame{Kind: ws.FrameClose}, nil
	case <-timer.C:
		_ = sess.Close()
		return ws.Frame{}, core.NewConnError(core.ErrorTypeIdleTimeout, "receive",
			fmt.Sprintf("no frame received for %s", m.config.IdleTimeout), core.ErrIdleTimeout)
	case <-ctx.Done():
		return ws.Frame{}, ctx.Err()
	}
}

// DefaultClassifier treats identity conflicts, outdated clients and refused
// identities as terminal; every other rejection is retried.
func DefaultClassifier(rejection *ws.HandshakeError) (string, bool) {
	var message string
	terminal := true

	switch rejection.StatusCode {
	case http.StatusConflict:
		message = "another client is already connected with this identity"
	case http.StatusUpgradeRequired:
		message = "this client version is outdated, please update"
	case http.StatusUnauthorized, http.StatusForbidden:
		message = "the server refused this identity"
	default:
		message = fmt.Sprintf("the server rejected the connection (%d)", rejection.StatusCode)
		terminal = false
	}

	if rejection.Body != "" {
		message += ": " + rejection.Body
	}
	return message, terminal
}
