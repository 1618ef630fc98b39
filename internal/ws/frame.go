package ws

// FrameKind tags an inbound frame.
type FrameKind int

const (
	// FrameOther is any frame the dispatcher does not act on (binary, pong).
	FrameOther FrameKind = iota
	// FrameClose is a close frame sent by the peer.
	FrameClose
	// FramePing is a liveness probe; its payload must be echoed in a pong.
	FramePing
	// FrameText is a UTF-8 data frame carrying a JSON message.
	FrameText
)

// String returns the string representation of the frame kind.
func (k FrameKind) String() string {
	switch k {
	case FrameOther:
		return "other"
	case FrameClose:
		return "close"
	case FramePing:
		return "ping"
	case FrameText:
		return "text"
	default:
		return "unknown"
	}
}

// Frame is one inbound frame. Payload is owned by the receiver.
type Frame struct {
	Kind    FrameKind
	Payload []byte
}

// Session is one established transport connection.
// Frames is closed when the receive side ends; Err then reports why,
// and is nil when the peer closed the connection normally.
type Session interface {
	Frames() <-chan Frame
	Err() error
	WritePong(payload []byte) error
	WriteText(data []byte) error
	SendJSON(v any) error
	Close() error
}
