package websocket

import (
	"bufio"
	"bytes"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func testConn(in []byte, out *bytes.Buffer) *Conn {
	l := zerolog.Nop()
	return &Conn{
		logger:  &l,
		maxSize: 1024,
		bufio:   bufio.NewReadWriter(bufio.NewReader(bytes.NewReader(in)), bufio.NewWriter(out)),
		maskGen: bytes.NewReader([]byte{1, 2, 3, 4}),
	}
}

func TestReadFrameHeader(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		want    frameHeader
		wantErr bool
	}{
		{
			name:    "empty",
			wantErr: true,
		},
		{
			name: "short_text",
			in:   []byte{0x81, 0x05},
			want: frameHeader{fin: true, opcode: OpcodeText, payloadLength: 5},
		},
		{
			name: "fragment_start",
			in:   []byte{0x02, 0x7D},
			want: frameHeader{opcode: OpcodeBinary, payloadLength: 125},
		},
		{
			name: "16_bit_length",
			in:   []byte{0x81, 0x7E, 0x01, 0x00},
			want: frameHeader{fin: true, opcode: OpcodeText, payloadLength: 256},
		},
		{
			name: "64_bit_length",
			in:   []byte{0x82, 0x7F, 0, 0, 0, 0, 0, 1, 0, 0},
			want: frameHeader{fin: true, opcode: OpcodeBinary, payloadLength: 65536},
		},
		{
			name:    "truncated_64_bit_length",
			in:      []byte{0x82, 0x7F, 0, 0},
			wantErr: true,
		},
		{
			name: "masked_ping",
			in:   []byte{0x89, 0x80, 9, 8, 7, 6},
			want: frameHeader{fin: true, opcode: OpcodePing, masked: true, maskingKey: [4]byte{9, 8, 7, 6}},
		},
		{
			name: "rsv_bits",
			in:   []byte{0xF1, 0x00},
			want: frameHeader{fin: true, rsv: 7, opcode: OpcodeText},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConn(tt.in, nil)
			got, err := c.readFrameHeader()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Conn.readFrameHeader() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Conn.readFrameHeader() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCheckFrameHeader(t *testing.T) {
	tests := []struct {
		name    string
		h       frameHeader
		wantErr bool
	}{
		{
			name: "text",
			h:    frameHeader{fin: true, opcode: OpcodeText, payloadLength: 10},
		},
		{
			name: "continuation",
			h:    frameHeader{opcode: OpcodeContinuation, payloadLength: 10},
		},
		{
			name: "close_with_status",
			h:    frameHeader{fin: true, opcode: OpcodeClose, payloadLength: 2},
		},
		{
			name:    "rsv_bits",
			h:       frameHeader{fin: true, rsv: 4, opcode: OpcodeText},
			wantErr: true,
		},
		{
			name:    "reserved_data_opcode",
			h:       frameHeader{fin: true, opcode: Opcode(0x3)},
			wantErr: true,
		},
		{
			name:    "reserved_control_opcode",
			h:       frameHeader{fin: true, opcode: Opcode(0xB)},
			wantErr: true,
		},
		{
			name:    "masked",
			h:       frameHeader{fin: true, opcode: OpcodeText, masked: true},
			wantErr: true,
		},
		{
			name:    "long_ping",
			h:       frameHeader{fin: true, opcode: OpcodePing, payloadLength: 126},
			wantErr: true,
		},
		{
			name:    "fragmented_pong",
			h:       frameHeader{opcode: OpcodePong},
			wantErr: true,
		},
		{
			name:    "one_byte_close",
			h:       frameHeader{fin: true, opcode: OpcodeClose, payloadLength: 1},
			wantErr: true,
		},
		{
			name:    "too_big",
			h:       frameHeader{fin: true, opcode: OpcodeBinary, payloadLength: 1025},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConn(nil, nil)
			reason, err := c.checkFrameHeader(tt.h)
			if (err != nil) != tt.wantErr {
				t.Errorf("Conn.checkFrameHeader() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && reason == "" {
				t.Error("Conn.checkFrameHeader() returned an error without a reason")
			}
		})
	}
}

func TestWriteFrame(t *testing.T) {
	out := new(bytes.Buffer)
	c := testConn(nil, out)

	if err := c.writeFrame(OpcodeText, []byte("hello")); err != nil {
		t.Fatalf("Conn.writeFrame() error = %v", err)
	}

	got := out.Bytes()
	wantHeader := []byte{0x81, 0x85, 1, 2, 3, 4}
	if !bytes.Equal(got[:6], wantHeader) {
		t.Fatalf("Conn.writeFrame() header = %v, want %v", got[:6], wantHeader)
	}

	payload := bytes.Clone(got[6:])
	mask(payload, wantHeader[2:])
	if string(payload) != "hello" {
		t.Errorf("Conn.writeFrame() unmasked payload = %q, want %q", payload, "hello")
	}
}

func TestWriteFrameExtendedLength(t *testing.T) {
	out := new(bytes.Buffer)
	c := testConn(nil, out)

	data := bytes.Repeat([]byte("x"), 300)
	if err := c.writeFrame(OpcodeBinary, data); err != nil {
		t.Fatalf("Conn.writeFrame() error = %v", err)
	}

	got := out.Bytes()
	wantHeader := []byte{0x82, 0xFE, 0x01, 0x2C, 1, 2, 3, 4}
	if !bytes.Equal(got[:8], wantHeader) {
		t.Errorf("Conn.writeFrame() header = %v, want %v", got[:8], wantHeader)
	}
	if len(got) != 8+300 {
		t.Errorf("Conn.writeFrame() length = %d, want %d", len(got), 8+300)
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		o    Opcode
		want string
	}{
		{OpcodeText, "text"},
		{OpcodePong, "pong"},
		{Opcode(0x3), "reserved (0x3)"},
	}

	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("Opcode(%d).String() = %q, want %q", tt.o, got, tt.want)
		}
	}
}

func TestParseClose(t *testing.T) {
	tests := []struct {
		name       string
		payload    []byte
		wantStatus StatusCode
		wantReason string
	}{
		{
			name:       "empty",
			wantStatus: StatusNotReceived,
		},
		{
			name:       "status_only",
			payload:    []byte{0x03, 0xE9},
			wantStatus: StatusGoingAway,
		},
		{
			name:       "status_and_reason",
			payload:    []byte{0x03, 0xE8, 'b', 'y', 'e'},
			wantStatus: StatusNormalClosure,
			wantReason: "bye",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotStatus, gotReason := parseClose(tt.payload)
			if gotStatus != tt.wantStatus {
				t.Errorf("parseClose() status = %v, want %v", gotStatus, tt.wantStatus)
			}
			if gotReason != tt.wantReason {
				t.Errorf("parseClose() reason = %q, want %q", gotReason, tt.wantReason)
			}
		})
	}
}
