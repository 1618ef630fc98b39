package core

import (
	"context"
	"encoding/json"

	"github.com/bytedance/sonic"
)

// ServerMessage is the JSON envelope carried by every data frame from the server.
type ServerMessage struct {
	// Cmd selects the application command.
	Cmd string `json:"cmd" validate:"required"`
	// Message is optional text meant for the user.
	Message string `json:"message,omitempty"`
	// Data is the command payload, left undecoded for the handler.
	Data json.RawMessage `json:"data,omitempty"`
}

// ClientMessage is the JSON envelope sent back to the server.
type ClientMessage struct {
	Cmd  string `json:"cmd"`
	Data any    `json:"data,omitempty"`
}

// Outcome tells the dispatcher what to do after a message was handled.
type Outcome int

const (
	// OutcomeContinue keeps the session and the process running.
	OutcomeContinue Outcome = iota
	// OutcomeTerminate ends the whole reconnect loop.
	OutcomeTerminate
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "CONTINUE"
	case OutcomeTerminate:
		return "TERMINATE"
	default:
		return "UNKNOWN"
	}
}

// Sender is the send half of a session as seen by a Handler.
type Sender interface {
	SendJSON(v any) error
}

// Handler owns the application semantics of server messages.
// An error ends the current session and is retried like any other failure.
type Handler interface {
	HandleMessage(ctx context.Context, msg *ServerMessage, reply Sender) (Outcome, error)
}

// CallbackRunner is implemented by handlers that need periodic work
// driven by the background pump, independent of the connection.
type CallbackRunner interface {
	RunCallbacks(ctx context.Context) error
}

// DecodeServerMessage parses and validates a data frame payload.
func DecodeServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := validate.Struct(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
