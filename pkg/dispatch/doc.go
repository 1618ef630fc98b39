// Package dispatch interprets the frames of an open session.
//
// Close frames end the session normally. Ping frames are answered with a pong
// carrying the same payload. Text frames are decoded into a core.ServerMessage
// and handed to the application handler. Every other frame is ignored.
//
// A pong that was sent and a message the handler accepted are both liveness
// events: the dispatcher reports them to its Resetter so the reconnect
// backoff returns to its floor. A decode failure ends the session as an
// ordinary, retryable failure.
package dispatch
