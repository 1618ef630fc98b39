package ws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lxzan/gws"
	"github.com/rs/zerolog"

	"invitelink/pkg/core"
)

const maxRejectBody = 512

// DialerConfig holds configuration options for opening websocket sessions.
type DialerConfig struct {
	// HandshakeTimeout bounds the TCP dial plus the HTTP upgrade.
	HandshakeTimeout time.Duration
	// Header is sent with every upgrade request.
	Header http.Header
}

// HandshakeError is returned when the server answers the upgrade request
// with anything other than 101 Switching Protocols.
type HandshakeError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *HandshakeError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("websocket handshake rejected (%d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("websocket handshake rejected (%d)", e.StatusCode)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// Dialer opens gws-backed sessions.
type Dialer struct {
	config DialerConfig
	logger zerolog.Logger
}

// NewDialer creates a Dialer. Default values are applied for zero-valued fields.
func NewDialer(config DialerConfig) *Dialer {
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	return &Dialer{
		config: config,
		logger: zerolog.Nop(),
	}
}

// SetLogger configures the logger for the dialer and the sessions it opens.
func (d *Dialer) SetLogger(logger zerolog.Logger) {
	d.logger = logger
}

type dialResult struct {
	socket *gws.Conn
	resp   *http.Response
	err    error
}

// Dial opens one session to addr. It returns ctx.Err() if ctx ends before the
// handshake completes; a late connection is closed in the background.
func (d *Dialer) Dial(ctx context.Context, addr string) (Session, error) {
	conn := newConn(d.logger.With().Str("url", addr).Logger())

	results := make(chan dialResult, 1)
	go func() {
		socket, resp, err := gws.NewClient(&eventHandler{conn: conn}, &gws.ClientOption{
			Addr:             addr,
			RequestHeader:    d.config.Header.Clone(),
			HandshakeTimeout: d.config.HandshakeTimeout,
		})
		results <- dialResult{socket: socket, resp: resp, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			return nil, dialError(r.resp, r.err)
		}
		conn.start(r.socket)
		return conn, nil
	case <-ctx.Done():
		go func() {
			if r := <-results; r.socket != nil {
				_ = r.socket.NetConn().Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func dialError(resp *http.Response, err error) error {
	if resp == nil || resp.StatusCode == http.StatusSwitchingProtocols {
		return fmt.Errorf("connect websocket: %w", err)
	}
	return &HandshakeError{
		StatusCode: resp.StatusCode,
		Body:       readBody(resp),
		Err:        err,
	}
}

func readBody(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxRejectBody))
	return strings.TrimSpace(string(data))
}

// Conn is a Session over a gws client connection.
type Conn struct {
	socket *gws.Conn
	logger zerolog.Logger

	frames     chan Frame
	done       chan struct{}
	finishOnce sync.Once
	closeOnce  sync.Once
	wg         sync.WaitGroup

	mu  sync.Mutex
	err error
}

func newConn(logger zerolog.Logger) *Conn {
	return &Conn{
		logger: logger,
		frames: make(chan Frame),
		done:   make(chan struct{}),
	}
}

func (c *Conn) start(socket *gws.Conn) {
	c.socket = socket
	c.wg.Go(func() {
		socket.ReadLoop()
	})
}

// Frames returns the inbound frames. The channel is closed when the receive side ends.
func (c *Conn) Frames() <-chan Frame {
	return c.frames
}

// Err returns the receive-side error once Frames is closed.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// WritePong sends a pong control frame carrying payload.
func (c *Conn) WritePong(payload []byte) error {
	if c.closed() {
		return core.ErrSessionClosed
	}
	return c.socket.WritePong(payload)
}

// WriteText sends data as a text frame.
func (c *Conn) WriteText(data []byte) error {
	if c.closed() {
		return core.ErrSessionClosed
	}
	return c.socket.WriteMessage(gws.OpcodeText, data)
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// SendJSON marshals the given value to JSON and sends it as a text frame.
func (c *Conn) SendJSON(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return c.WriteText(data)
}

// Close releases the connection and waits for the read loop to exit.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.socket != nil {
			_ = c.socket.NetConn().Close()
		}
	})
	c.wg.Wait()
	return nil
}

func (c *Conn) push(frame Frame) {
	select {
	case c.frames <- frame:
	case <-c.done:
	}
}

func (c *Conn) finish(err error) {
	c.finishOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.frames)
	})
}

type eventHandler struct {
	conn *Conn
}

func (h *eventHandler) OnOpen(socket *gws.Conn) {
	h.conn.logger.Debug().Msg("websocket opened")
}

func (h *eventHandler) OnClose(socket *gws.Conn, err error) {
	var closeErr *gws.CloseError
	if errors.As(err, &closeErr) {
		h.conn.logger.Debug().
			Uint16("code", closeErr.Code).
			Str("reason", string(closeErr.Reason)).
			Msg("websocket closed by peer")
		h.conn.push(Frame{Kind: FrameClose, Payload: bytes.Clone(closeErr.Reason)})
		h.conn.finish(nil)
		return
	}
	h.conn.logger.Debug().Err(err).Msg("websocket read loop ended")
	h.conn.finish(err)
}

func (h *eventHandler) OnPing(socket *gws.Conn, payload []byte) {
	h.conn.push(Frame{Kind: FramePing, Payload: bytes.Clone(payload)})
}

func (h *eventHandler) OnPong(socket *gws.Conn, payload []byte) {
	h.conn.push(Frame{Kind: FrameOther, Payload: bytes.Clone(payload)})
}

func (h *eventHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	kind := FrameOther
	if message.Opcode == gws.OpcodeText {
		kind = FrameText
	}
	h.conn.push(Frame{Kind: kind, Payload: bytes.Clone(message.Bytes())})
}
