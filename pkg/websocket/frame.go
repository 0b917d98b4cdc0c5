package websocket

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxControlPayload is the maximum payload length of control frames.
// See https://datatracker.ietf.org/doc/html/rfc6455#section-5.5.
const maxControlPayload = 125

// frameHeader is based on
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.2.
type frameHeader struct {
	fin           bool
	rsv           byte // RSV1-3, without extensions they must all be 0.
	opcode        Opcode
	masked        bool
	payloadLength uint64
	maskingKey    [4]byte
}

// readFrameHeader reads and parses the next frame header from the server.
// The frame's payload (if any) is left unread in the connection's buffer.
func (c *Conn) readFrameHeader() (frameHeader, error) {
	h := frameHeader{}

	if _, err := io.ReadFull(c.bufio, c.readBuf[:2]); err != nil {
		return h, err
	}

	h.fin = c.readBuf[0]&0x80 != 0
	h.rsv = (c.readBuf[0] >> 4) & 0x7
	h.opcode = Opcode(c.readBuf[0] & 0xF)
	h.masked = c.readBuf[1]&0x80 != 0
	h.payloadLength = uint64(c.readBuf[1] & 0x7F)

	switch h.payloadLength {
	case 126:
		if _, err := io.ReadFull(c.bufio, c.readBuf[:2]); err != nil {
			return h, err
		}
		h.payloadLength = uint64(binary.BigEndian.Uint16(c.readBuf[:2]))
	case 127:
		if _, err := io.ReadFull(c.bufio, c.readBuf[:8]); err != nil {
			return h, err
		}
		h.payloadLength = binary.BigEndian.Uint64(c.readBuf[:8])
	}

	if h.masked {
		if _, err := io.ReadFull(c.bufio, h.maskingKey[:]); err != nil {
			return h, err
		}
	}

	return h, nil
}

// checkFrameHeader validates the frame header, and returns a short reason
// to report in a closing handshake in case of a protocol error.
func (c *Conn) checkFrameHeader(h frameHeader) (string, error) {
	// "MUST be 0 unless an extension is negotiated that defines meanings for
	// non-zero values. If a nonzero value is received and none of the negotiated
	// extensions defines the meaning of such a nonzero value, the receiving
	// endpoint MUST _Fail the WebSocket Connection_."
	if h.rsv != 0 {
		return "non-zero reserved bits", fmt.Errorf("unexpected RSV bits: %03b", h.rsv)
	}

	if h.opcode.isReserved() {
		return "reserved opcode", fmt.Errorf("unexpected reserved opcode: %s", h.opcode)
	}

	// "A server MUST NOT mask any frames that it sends to the client."
	if h.masked {
		return "masked server frame", errors.New("server frame is masked")
	}

	// "All control frames MUST have a payload length of 125 bytes
	// or less and MUST NOT be fragmented."
	if h.opcode.isControl() {
		if h.payloadLength > maxControlPayload {
			return "control frame too long", fmt.Errorf("%s control frame payload length: %d", h.opcode, h.payloadLength)
		}
		if !h.fin {
			return "fragmented control frame", fmt.Errorf("fragmented %s control frame", h.opcode)
		}
	}

	if h.opcode == OpcodeClose && h.payloadLength == 1 {
		return "invalid close payload", errors.New("close control frame with a 1-byte payload")
	}

	if c.maxSize > 0 && h.payloadLength > uint64(c.maxSize) {
		return "message too big", fmt.Errorf("frame payload length %d exceeds limit %d", h.payloadLength, c.maxSize)
	}

	return "", nil
}

// writeFrame sends a single, unfragmented, masked frame to the server.
//
// Do not call this function directly, it is meant to be used
// exclusively (and sequentially) by [Conn.writeMessages]!
func (c *Conn) writeFrame(opcode Opcode, data []byte) error {
	// FIN bit is always set, RSV bits are always clear.
	c.writeBuf[0] = 0x80 | byte(opcode)
	n := 2

	l := len(data)
	switch {
	case l <= 125:
		c.writeBuf[1] = byte(l)
	case l <= 0xFFFF:
		c.writeBuf[1] = 126
		binary.BigEndian.PutUint16(c.writeBuf[2:4], uint16(l))
		n += 2
	default:
		c.writeBuf[1] = 127
		binary.BigEndian.PutUint64(c.writeBuf[2:10], uint64(l))
		n += 8
	}

	// "The client MUST mask all frames that it sends to the server."
	c.writeBuf[1] |= 0x80
	key := c.writeBuf[n : n+4]
	if _, err := io.ReadFull(c.maskGen, key); err != nil {
		return fmt.Errorf("failed to generate masking key: %w", err)
	}
	n += 4

	if _, err := c.bufio.Write(c.writeBuf[:n]); err != nil {
		return err
	}

	masked := make([]byte, l)
	copy(masked, data)
	mask(masked, key)

	if _, err := c.bufio.Write(masked); err != nil {
		return err
	}

	return c.bufio.Flush()
}

// mask applies (or removes) the masking of a frame's payload data in-place.
// See https://datatracker.ietf.org/doc/html/rfc6455#section-5.3.
func mask(data, key []byte) {
	for i := range data {
		data[i] ^= key[i%4]
	}
}
