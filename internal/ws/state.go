package ws

import "sync/atomic"

// ConnState represents where a supervised connection is in its lifecycle.
type ConnState int32

// Connection states of the reconnect loop.
const (
	// StateIdle indicates the loop has not made its first attempt yet.
	StateIdle ConnState = iota
	// StateConnecting indicates a session is being opened.
	StateConnecting
	// StateConnected indicates a session is open and frames are being dispatched.
	StateConnected
	// StateTerminated indicates the loop has ended and will not connect again.
	StateTerminated
)

// String returns the string representation of the connection state.
func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// State provides thread-safe atomic access to a ConnState value.
type State struct {
	state atomic.Int32
}

// Load returns the current connection state.
func (s *State) Load() ConnState {
	return ConnState(s.state.Load())
}

// Store sets the connection state to the given value.
func (s *State) Store(state ConnState) {
	s.state.Store(int32(state))
}

// CompareAndSwap atomically compares the current state with old and swaps to new if equal.
// It returns true if the swap was performed.
func (s *State) CompareAndSwap(old, new ConnState) bool {
	return s.state.CompareAndSwap(int32(old), int32(new))
}

// Transition moves to next unless the state is already StateTerminated.
// It returns false when the state was terminal.
func (s *State) Transition(next ConnState) bool {
	for {
		current := s.Load()
		if current == StateTerminated {
			return false
		}
		if s.CompareAndSwap(current, next) {
			return true
		}
	}
}
