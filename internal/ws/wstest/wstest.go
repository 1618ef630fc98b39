// Package wstest provides in-memory ws.Session and dialer fakes for tests.
package wstest

import (
	"context"
	"errors"
	"sync"

	"github.com/bytedance/sonic"

	"invitelink/internal/ws"
)

// Session is an in-memory ws.Session. Frames pushed with Send are delivered
// in order; End closes the receive side.
type Session struct {
	frames chan ws.Frame

	mu       sync.Mutex
	err      error
	ended    bool
	closed   bool
	pongs    [][]byte
	texts    [][]byte
	pongErr  error
	writeErr error
	done     chan struct{}
}

// NewSession returns a Session whose frames channel holds up to buffer frames.
func NewSession(buffer int) *Session {
	return &Session{
		frames: make(chan ws.Frame, buffer),
		done:   make(chan struct{}),
	}
}

// NewScripted returns a Session preloaded with frames. When end is true the
// receive side is closed after the last frame.
func NewScripted(end bool, frames ...ws.Frame) *Session {
	s := NewSession(len(frames))
	for _, f := range frames {
		s.frames <- f
	}
	if end {
		s.End(nil)
	}
	return s
}

// Send queues one frame.
func (s *Session) Send(frame ws.Frame) {
	s.frames <- frame
}

// End closes the receive side with err.
func (s *Session) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.err = err
	close(s.frames)
}

// FailPong makes every WritePong return err.
func (s *Session) FailPong(err error) {
	s.mu.Lock()
	s.pongErr = err
	s.mu.Unlock()
}

// FailWrite makes every WriteText and SendJSON return err.
func (s *Session) FailWrite(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

func (s *Session) Frames() <-chan ws.Frame {
	return s.frames
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) WritePong(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed")
	}
	if s.pongErr != nil {
		return s.pongErr
	}
	s.pongs = append(s.pongs, append([]byte(nil), payload...))
	return nil
}

func (s *Session) WriteText(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed")
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	s.texts = append(s.texts, append([]byte(nil), data...))
	return nil
}

func (s *Session) SendJSON(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return s.WriteText(data)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Done is closed when Close is called.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Pongs returns the payloads written with WritePong.
func (s *Session) Pongs() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.pongs...)
}

// Texts returns the text frames written.
func (s *Session) Texts() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.texts...)
}

// DialFunc adapts a function to the lifecycle Dialer interface.
type DialFunc func(ctx context.Context, addr string) (ws.Session, error)

func (f DialFunc) Dial(ctx context.Context, addr string) (ws.Session, error) {
	return f(ctx, addr)
}

// Step is one scripted dial result.
type Step struct {
	Session ws.Session
	Err     error
	// Block makes the dial wait for ctx instead of returning.
	Block bool
}

// Dialer replays Steps in order. Once the script is exhausted every dial
// blocks until ctx ends.
type Dialer struct {
	mu    sync.Mutex
	steps []Step
	addrs []string
}

// NewDialer creates a scripted Dialer.
func NewDialer(steps ...Step) *Dialer {
	return &Dialer{steps: steps}
}

func (d *Dialer) Dial(ctx context.Context, addr string) (ws.Session, error) {
	d.mu.Lock()
	d.addrs = append(d.addrs, addr)
	var step Step
	if len(d.steps) == 0 {
		step = Step{Block: true}
	} else {
		step = d.steps[0]
		d.steps = d.steps[1:]
	}
	d.mu.Unlock()

	if step.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return step.Session, step.Err
}

// Calls returns the number of dials made.
func (d *Dialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.addrs)
}

// Addrs returns the addresses dialled, in order.
func (d *Dialer) Addrs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.addrs...)
}
