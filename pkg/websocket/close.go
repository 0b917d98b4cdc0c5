package websocket

import (
	"encoding/binary"
	"strconv"
	"time"
)

// StatusCode is the reason for closing a WebSocket connection:
// https://datatracker.ietf.org/doc/html/rfc6455#section-7.4
type StatusCode int

// https://www.iana.org/assignments/websocket/websocket.xhtml#close-code-number
const (
	StatusNormalClosure      StatusCode = 1000
	StatusGoingAway          StatusCode = 1001
	StatusProtocolError      StatusCode = 1002
	StatusUnsupportedData    StatusCode = 1003
	StatusNotReceived        StatusCode = 1005 // Never sent in a close frame.
	StatusClosedAbnormally   StatusCode = 1006 // Never sent in a close frame.
	StatusInvalidData        StatusCode = 1007
	StatusPolicyViolation    StatusCode = 1008
	StatusMessageTooBig      StatusCode = 1009
	StatusMandatoryExtension StatusCode = 1010
	StatusInternalError      StatusCode = 1011
	StatusServiceRestart     StatusCode = 1012
	StatusTryAgainLater      StatusCode = 1013
	StatusBadGateway         StatusCode = 1014
	StatusTLSHandshake       StatusCode = 1015 // Never sent in a close frame.
)

var statusNames = map[StatusCode]string{
	StatusNormalClosure:      "normal closure",
	StatusGoingAway:          "going away",
	StatusProtocolError:      "protocol error",
	StatusUnsupportedData:    "unsupported data",
	StatusNotReceived:        "status not received",
	StatusClosedAbnormally:   "closed abnormally",
	StatusInvalidData:        "invalid data",
	StatusPolicyViolation:    "policy violation",
	StatusMessageTooBig:      "message too big",
	StatusMandatoryExtension: "expected extension negotiation",
	StatusInternalError:      "internal error",
	StatusServiceRestart:     "service restart",
	StatusTryAgainLater:      "try again later",
	StatusBadGateway:         "bad gateway",
	StatusTLSHandshake:       "TLS handshake",
}

// String returns the status code's name, or its number if it's unrecognized.
func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return strconv.Itoa(int(s))
}

// A close frame's payload is a 2-byte status code, followed by an optional reason.
const maxCloseReason = maxControlPayload - 2

func parseClose(payload []byte) (StatusCode, string) {
	if len(payload) < 2 {
		return StatusNotReceived, ""
	}
	return StatusCode(binary.BigEndian.Uint16(payload)), string(payload[2:])
}

// sendClose sends a close control frame, at most once per connection,
// whether the closing handshake was initiated by the client or the server.
func (c *Conn) sendClose(s StatusCode, reason string) {
	c.closeOnce.Do(func() {
		reason = reason[:min(len(reason), maxCloseReason)]

		binary.BigEndian.PutUint16(c.closeBuf[:2], uint16(s))
		n := 2 + copy(c.closeBuf[2:], reason)

		l := c.logger.With().Stringer("close_status", s).Str("close_reason", reason).Logger()
		if err := <-c.sendControlFrame(OpcodeClose, c.closeBuf[:n]); err != nil {
			l.Debug().Err(err).Msg("failed to send WebSocket close control frame")
		} else {
			l.Trace().Msg("sent WebSocket close control frame")
		}

		c.closeSent.Store(true)
	})
}

// Close initiates the closing handshake, and stops publishing incoming
// messages. The network connection is torn down when the server responds
// with its own close control frame, or after a short timeout.
func (c *Conn) Close(s StatusCode) {
	c.closingOnce.Do(func() {
		close(c.closing)
		time.AfterFunc(closeTimeout, c.teardown)
	})
	c.sendClose(s, "")
}

// IsClosed reports whether the closing handshake is complete.
func (c *Conn) IsClosed() bool {
	return c.closeReceived.Load() && c.closeSent.Load()
}

// IsClosing reports whether the closing handshake is in progress.
func (c *Conn) IsClosing() bool {
	return c.closeReceived.Load() != c.closeSent.Load()
}
