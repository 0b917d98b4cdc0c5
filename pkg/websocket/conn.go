package websocket

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed is reported when sending a message after the connection is gone.
var ErrClosed = errors.New("websocket connection closed")

// closeTimeout bounds the wait for the server's half of the closing handshake.
const closeTimeout = 5 * time.Second

// Conn respresents the configuration and state of
// an open client connection to a WebSocket server.
type Conn struct {
	// Initialized before the actual handshake.
	logger  *zerolog.Logger
	client  *http.Client
	headers http.Header
	maxSize int64

	// Initialized after the actual handshake.
	bufio  *bufio.ReadWriter
	readC  chan Message
	writeC chan internalMessage
	closer io.ReadWriteCloser

	// Closed by [Conn.teardown], at most once.
	done     chan struct{}
	doneOnce sync.Once

	// Closed by [Conn.Close], at most once, to stop publishing data
	// messages while the closing handshake is still in progress.
	closing     chan struct{}
	closingOnce sync.Once

	// Each side of the closing handshake happens at most once.
	closeReceived atomic.Bool
	closeSent     atomic.Bool
	closeOnce     sync.Once

	// Only for the purpose of minimizing memory allocations (safely),
	// not for state management or memory sharing of any kind.
	readBuf  [8]byte
	writeBuf [14]byte
	closeBuf [maxControlPayload]byte

	// Random sources, replaceable for unit-testing only.
	nonceGen io.Reader
	maskGen  io.Reader
}

// Message is a complete data message, or a control frame, that was
// received from the server. Ping control frames are answered by the
// connection itself before they are published.
type Message struct {
	Opcode Opcode
	Data   []byte
}

// internalMessage is used to synchronize concurrent calls to [Conn.writeFrame].
type internalMessage struct {
	opcode Opcode
	data   []byte
	err    chan<- error
}

// IncomingMessages returns the connection's channel that publishes
// messages as they are received from the server. The channel is
// closed when the connection is closed, for any reason.
func (c *Conn) IncomingMessages() <-chan Message {
	return c.readC
}

// Done returns a channel that is closed when the underlying
// network connection has been torn down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// readMessages runs as a [Conn] goroutine, to call [Conn.readMessage]
// continuously, in order to process control and data frames, and
// publish messages to the subscriber of this connection.
func (c *Conn) readMessages() {
	defer c.teardown()
	defer close(c.readC)

	for {
		msg, ok := c.readMessage()
		if !ok {
			return
		}

		select {
		case c.readC <- msg:
		case <-c.closing:
			// Nobody is listening anymore, keep reading
			// only to complete the closing handshake.
		}
	}
}

// writeMessages runs as a [Conn] goroutine, to synchronize concurrent
// calls to [Conn.writeFrame]. For the time being, this package doesn't
// need to implement frame fragmentation in outbound messages.
func (c *Conn) writeMessages() {
	for {
		select {
		case msg := <-c.writeC:
			msg.err <- c.writeFrame(msg.opcode, msg.data)
			// The message's error channel can be used at most once.
			close(msg.err)
		case <-c.done:
			return
		}
	}
}

// send queues a frame for [Conn.writeMessages], unless the connection is gone.
func (c *Conn) send(opcode Opcode, data []byte) <-chan error {
	err := make(chan error, 1)
	select {
	case c.writeC <- internalMessage{opcode: opcode, data: data, err: err}:
	case <-c.done:
		err <- ErrClosed
		close(err)
	}
	return err
}

// teardown closes the underlying network connection, which also
// unblocks [Conn.readMessages] if it's still waiting for data.
func (c *Conn) teardown() {
	c.doneOnce.Do(func() {
		if err := c.closer.Close(); err != nil {
			c.logger.Trace().Err(err).Msg("error while closing WebSocket network connection")
		}
		close(c.done)
	})
}
