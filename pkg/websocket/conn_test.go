package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	nws "nhooyr.io/websocket"
)

const testTimeout = 3 * time.Second

// startServer runs a WebSocket server that passes
// each accepted connection to the given function.
func startServer(t *testing.T, f func(ctx context.Context, c *nws.Conn)) string {
	t.Helper()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := nws.Accept(w, r, nil)
		if err != nil {
			t.Errorf("websocket.Accept() error = %v", err)
			return
		}
		defer c.CloseNow()
		f(r.Context(), c)
	}))
	t.Cleanup(s.Close)

	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func receive(t *testing.T, c *Conn) (Message, bool) {
	t.Helper()

	select {
	case msg, ok := <-c.IncomingMessages():
		return msg, ok
	case <-time.After(testTimeout):
		t.Fatal("timeout while waiting for an incoming message")
		return Message{}, false
	}
}

func waitDone(t *testing.T, c *Conn) {
	t.Helper()

	select {
	case <-c.Done():
	case <-time.After(closeTimeout + testTimeout):
		t.Fatal("timeout while waiting for the connection to be torn down")
	}
}

func echo(ctx context.Context, c *nws.Conn) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		if err := c.Write(ctx, typ, data); err != nil {
			return
		}
	}
}

func TestDialEcho(t *testing.T) {
	url := startServer(t, echo)

	c, err := Dial(t.Context(), url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	if err := <-c.SendTextMessage([]byte(`{"envelope_id":"1"}`)); err != nil {
		t.Fatalf("Conn.SendTextMessage() error = %v", err)
	}

	msg, ok := receive(t, c)
	if !ok {
		t.Fatal("Conn.IncomingMessages() closed unexpectedly")
	}
	if msg.Opcode != OpcodeText || string(msg.Data) != `{"envelope_id":"1"}` {
		t.Errorf("received message = %s %q", msg.Opcode, msg.Data)
	}

	if err := <-c.SendBinaryMessage([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Conn.SendBinaryMessage() error = %v", err)
	}

	msg, _ = receive(t, c)
	if msg.Opcode != OpcodeBinary || len(msg.Data) != 3 {
		t.Errorf("received message = %s %v", msg.Opcode, msg.Data)
	}

	c.Close(StatusNormalClosure)
	waitDone(t, c)

	if !c.IsClosed() {
		t.Error("Conn.IsClosed() = false after closing handshake")
	}
	if err := <-c.SendTextMessage([]byte("late")); err == nil {
		t.Error("Conn.SendTextMessage() after close: error = nil")
	}
}

func TestDialRejected(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer s.Close()

	if _, err := Dial(t.Context(), "ws"+strings.TrimPrefix(s.URL, "http")); err == nil {
		t.Error("Dial() error = nil, want handshake error")
	}
}

func TestServerPing(t *testing.T) {
	pingErr := make(chan error, 1)
	url := startServer(t, func(ctx context.Context, c *nws.Conn) {
		ctx = c.CloseRead(ctx)
		pingErr <- c.Ping(ctx)
		<-ctx.Done()
	})

	c, err := Dial(t.Context(), url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close(StatusNormalClosure)

	msg, ok := receive(t, c)
	if !ok || msg.Opcode != OpcodePing {
		t.Fatalf("received message = %s, %v, want ping", msg.Opcode, ok)
	}

	select {
	case err := <-pingErr:
		if err != nil {
			t.Errorf("server Ping() error = %v", err)
		}
	case <-time.After(testTimeout):
		t.Error("server did not receive a pong")
	}
}

func TestClientPing(t *testing.T) {
	url := startServer(t, echo)

	c, err := Dial(t.Context(), url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close(StatusNormalClosure)

	if err := <-c.SendPing([]byte("liveness")); err != nil {
		t.Fatalf("Conn.SendPing() error = %v", err)
	}

	msg, ok := receive(t, c)
	if !ok {
		t.Fatal("Conn.IncomingMessages() closed unexpectedly")
	}
	if msg.Opcode != OpcodePong || string(msg.Data) != "liveness" {
		t.Errorf("received message = %s %q, want pong %q", msg.Opcode, msg.Data, "liveness")
	}
}

func TestServerClose(t *testing.T) {
	url := startServer(t, func(_ context.Context, c *nws.Conn) {
		_ = c.Close(nws.StatusGoingAway, "refresh")
	})

	c, err := Dial(t.Context(), url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	if _, ok := receive(t, c); ok {
		t.Error("Conn.IncomingMessages() not closed after server close")
	}
	waitDone(t, c)

	if !c.IsClosed() {
		t.Error("Conn.IsClosed() = false after server-initiated closing handshake")
	}
	if c.IsClosing() {
		t.Error("Conn.IsClosing() = true after closing handshake")
	}
}

func TestFragmentedMessage(t *testing.T) {
	url := startServer(t, func(ctx context.Context, c *nws.Conn) {
		w, err := c.Writer(ctx, nws.MessageText)
		if err != nil {
			return
		}
		_, _ = w.Write([]byte(`{"type":`))
		_, _ = w.Write([]byte(`"hello"}`))
		_ = w.Close()
		echo(ctx, c)
	})

	c, err := Dial(t.Context(), url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close(StatusNormalClosure)

	msg, ok := receive(t, c)
	if !ok {
		t.Fatal("Conn.IncomingMessages() closed unexpectedly")
	}
	if string(msg.Data) != `{"type":"hello"}` {
		t.Errorf("received message = %q", msg.Data)
	}
}

func TestMessageTooBig(t *testing.T) {
	url := startServer(t, func(ctx context.Context, c *nws.Conn) {
		_ = c.Write(ctx, nws.MessageBinary, make([]byte, 100))
		_, _, _ = c.Read(ctx)
	})

	c, err := Dial(t.Context(), url, WithMaxMessageSize(10))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	if _, ok := receive(t, c); ok {
		t.Error("Conn.IncomingMessages() published a message over the size limit")
	}
	waitDone(t, c)
}
