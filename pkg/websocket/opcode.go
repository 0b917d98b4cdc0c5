package websocket

import (
	"fmt"
)

// Opcode defines the interpretation of a WebSocket frame's payload data, as
// defined in https://datatracker.ietf.org/doc/html/rfc6455#section-5.2.
type Opcode byte

const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	// 0x3-0x7 are reserved for further non-control frames.
	OpcodeClose Opcode = 0x8
	OpcodePing  Opcode = 0x9
	OpcodePong  Opcode = 0xA
	// 0xB-0xF are reserved for further control frames.
)

func (o Opcode) String() string {
	switch o {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("reserved (0x%X)", byte(o))
	}
}

// isControl reports whether the opcode belongs to a control frame.
// See https://datatracker.ietf.org/doc/html/rfc6455#section-5.5.
func (o Opcode) isControl() bool {
	return o&0x8 != 0
}

func (o Opcode) isReserved() bool {
	return (o > OpcodeBinary && o < OpcodeClose) || o > OpcodePong
}
