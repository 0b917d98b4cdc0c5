package socketmode

import (
	"errors"
)

var (
	// ErrAlreadyAcked is returned when acknowledging the same envelope twice.
	ErrAlreadyAcked = errors.New("envelope already acknowledged")
	// ErrNotAckable is returned when acknowledging with a nil [AckToken].
	ErrNotAckable = errors.New("envelope does not require an acknowledgement")
	// ErrSessionClosed is returned when acknowledging an envelope
	// after the connection that delivered it has been closed.
	ErrSessionClosed = errors.New("socket mode session closed")
	// ErrAlreadyRunning is returned by [Client.Run] if it's called
	// concurrently with another [Client.Run] call of the same [Client].
	ErrAlreadyRunning = errors.New("socket mode client is already running")
)

// Reasons for ending a session and reconnecting. They are
// logged and recorded in metrics, but never returned to callers.
var (
	errConnectionClosed = errors.New("connection closed")
	errGrantExpired     = errors.New("socket mode URL expired before dialing")
	errDisconnect       = errors.New("disconnect requested by Slack")
	errHelloTimeout     = errors.New("timeout while waiting for hello")
	errPongTimeout      = errors.New("timeout while waiting for pong")
	errMalformedFrames  = errors.New("too many malformed frames")
)

// reason returns a short label for metric attributes.
func reason(err error) string {
	switch {
	case err == nil:
		return "cancelled"
	case errors.Is(err, errConnectionClosed):
		return "closed"
	case errors.Is(err, errDisconnect):
		return "disconnect"
	case errors.Is(err, errHelloTimeout):
		return "hello_timeout"
	case errors.Is(err, errPongTimeout):
		return "pong_timeout"
	case errors.Is(err, errMalformedFrames):
		return "malformed"
	default:
		return "error"
	}
}
