package websocket

import (
	"bytes"
	"io"
	"unicode/utf8"
)

// readMessage reads incoming frames from the server, responds to
// control frames (whether or not they're interleaved with data frames),
// and defragments data frames if needed. This function handles errors
// and connection closures gracefully, and returns false in such cases.
//
// Do not call this function directly, it is meant to be used
// exclusively (and continuously) by [Conn.readMessages]!
//
// It is based on:
//   - Base framing protocol: https://datatracker.ietf.org/doc/html/rfc6455#section-5.2
//   - Fragmentation: https://datatracker.ietf.org/doc/html/rfc6455#section-5.4
//   - Control frames: https://datatracker.ietf.org/doc/html/rfc6455#section-5.5
//   - Data frames: https://datatracker.ietf.org/doc/html/rfc6455#section-5.6
//   - Closing the connection: https://datatracker.ietf.org/doc/html/rfc6455#section-7
func (c *Conn) readMessage() (Message, bool) {
	var msg bytes.Buffer
	var msgOpcode Opcode
	fragmented := false

	for {
		h, err := c.readFrameHeader()
		if err != nil {
			if !c.closeReceived.Load() && !c.closeSent.Load() {
				c.logger.Err(err).Msg("failed to read WebSocket frame header")
			}
			c.sendClose(StatusInternalError, "frame header reading error")
			return Message{}, false
		}
		c.logger.Trace().Str("opcode", h.opcode.String()).Uint64("length", h.payloadLength).
			Msg("received WebSocket frame")

		if reason, err := c.checkFrameHeader(h); err != nil {
			c.logger.Err(err).Msg("protocol error due to invalid frame")
			status := StatusProtocolError
			if reason == "message too big" {
				status = StatusMessageTooBig
			}
			c.sendClose(status, reason)
			return Message{}, false
		}

		var data []byte
		if h.payloadLength > 0 {
			data = make([]byte, h.payloadLength)
			if _, err := io.ReadFull(c.bufio, data); err != nil {
				c.logger.Err(err).Msg("failed to read WebSocket frame payload")
				c.sendClose(StatusInternalError, "frame payload reading error")
				return Message{}, false
			}
		}

		switch h.opcode {
		// "EXAMPLE: For a text message sent as three fragments, the first
		// fragment would have an opcode of 0x1 and a FIN bit clear, the
		// second fragment would have an opcode of 0x0 and a FIN bit clear,
		// and the third fragment would have an opcode of 0x0 and a FIN bit
		// that is set."
		case OpcodeText, OpcodeBinary:
			if fragmented {
				c.sendClose(StatusProtocolError, "expected continuation frame")
				return Message{}, false
			}
			msgOpcode = h.opcode
			fragmented = !h.fin
			msg.Write(data)

		case OpcodeContinuation:
			if !fragmented {
				c.sendClose(StatusProtocolError, "unexpected continuation frame")
				return Message{}, false
			}
			fragmented = !h.fin
			msg.Write(data)

		// "If an endpoint receives a Close frame and did not previously send
		// a Close frame, the endpoint MUST send a Close frame in response."
		case OpcodeClose:
			status, reason := parseClose(data)
			c.logger.Trace().Str("close_status", status.String()).Str("close_reason", reason).
				Msg("received WebSocket close control frame")
			c.closeReceived.Store(true)
			if status == StatusNotReceived {
				status = StatusNormalClosure
			}
			c.sendClose(status, "")
			return Message{}, false // Not an error, but we no longer need to receive new frames.

		// "An endpoint MUST be capable of handling control
		// frames in the middle of a fragmented message."
		case OpcodePing:
			if err := <-c.sendControlFrame(OpcodePong, data); err != nil {
				c.logger.Err(err).Bytes("payload", data).Msg("failed to send WebSocket pong control frame")
			} else {
				c.logger.Trace().Bytes("payload", data).Msg("sent WebSocket pong control frame")
			}
			return Message{Opcode: OpcodePing, Data: data}, true

		case OpcodePong:
			return Message{Opcode: OpcodePong, Data: data}, true
		}

		if c.maxSize > 0 && int64(msg.Len()) > c.maxSize {
			c.sendClose(StatusMessageTooBig, "message too big")
			return Message{}, false
		}

		if !fragmented {
			data = msg.Bytes()
			if msgOpcode == OpcodeText && !utf8.Valid(data) {
				c.sendClose(StatusInvalidData, "invalid UTF-8 text")
				return Message{}, false
			}
			c.logger.Trace().Str("opcode", msgOpcode.String()).Int("length", len(data)).
				Msg("received WebSocket data message")
			return Message{Opcode: msgOpcode, Data: data}, true
		}
	}
}

// SendTextMessage sends a [UTF-8 text] message to the server.
//
// This is done asynchronously, to manage [isolation or safe multiplexing]
// of multiple concurrent calls, including interleaved control frames.
// Despite that, this function enables the caller to block and/or
// handle errors, with the returned channel.
//
// [UTF-8 text]: https://datatracker.ietf.org/doc/html/rfc6455#section-5.6
// [isolation or safe multiplexing]: https://datatracker.ietf.org/doc/html/rfc6455#section-5.4
func (c *Conn) SendTextMessage(data []byte) <-chan error {
	return c.send(OpcodeText, data)
}

// SendBinaryMessage sends a [binary] message to the server.
// Like [Conn.SendTextMessage], this is done asynchronously.
//
// [binary]: https://datatracker.ietf.org/doc/html/rfc6455#section-5.6
func (c *Conn) SendBinaryMessage(data []byte) <-chan error {
	return c.send(OpcodeBinary, data)
}

// SendPing sends a [ping control frame] to the server, which is expected
// to respond with a pong control frame that carries the same payload.
// The pong is published in [Conn.IncomingMessages].
//
// [ping control frame]: https://datatracker.ietf.org/doc/html/rfc6455#section-5.5.2
func (c *Conn) SendPing(payload []byte) <-chan error {
	if len(payload) > maxControlPayload {
		payload = payload[:maxControlPayload]
	}
	return c.sendControlFrame(OpcodePing, payload)
}

// sendControlFrame sends a [WebSocket control frame] to the server.
//
// Use this function instead of calling [Conn.writeFrame] directly!
//
// [WebSocket control frame]: https://datatracker.ietf.org/doc/html/rfc6455#section-5.5
func (c *Conn) sendControlFrame(opcode Opcode, payload []byte) <-chan error {
	return c.send(opcode, payload)
}
