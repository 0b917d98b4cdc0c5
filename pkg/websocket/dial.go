package websocket

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // Mandated by RFC 6455.
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// https://datatracker.ietf.org/doc/html/rfc6455#section-1.3
	acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

	handshakeTimeout = 10 * time.Second
	defaultMaxSize   = 16 << 20 // 16 MiB.
)

// DialOpt is a functional option of [Dial].
type DialOpt func(*Conn)

// WithHTTPClient overrides the default HTTP client used for the opening
// handshake. The client is copied and adjusted, not modified in-place.
func WithHTTPClient(c *http.Client) DialOpt {
	return func(conn *Conn) {
		conn.client = adjustHTTPClient(*c)
	}
}

// WithHTTPHeaders adds custom HTTP headers to the opening handshake request.
func WithHTTPHeaders(hs http.Header) DialOpt {
	return func(conn *Conn) {
		for k, vs := range hs {
			for _, v := range vs {
				conn.headers.Add(k, v)
			}
		}
	}
}

// WithMaxMessageSize limits the size of incoming data messages.
// Zero or negative values disable the limit.
func WithMaxMessageSize(n int64) DialOpt {
	return func(conn *Conn) {
		conn.maxSize = n
	}
}

// Dial performs the [opening handshake] with a WebSocket server, and
// returns an open [Conn], with goroutines that process incoming frames
// and serialize outgoing ones. The context is used for logging, and to
// bound the duration of the handshake, not the lifetime of the connection.
//
// [opening handshake]: https://datatracker.ietf.org/doc/html/rfc6455#section-4
func Dial(ctx context.Context, wsURL string, opts ...DialOpt) (*Conn, error) {
	c := &Conn{
		logger:   zerolog.Ctx(ctx),
		client:   adjustHTTPClient(*http.DefaultClient),
		headers:  http.Header{},
		maxSize:  defaultMaxSize,
		nonceGen: rand.Reader,
		maskGen:  rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}

	nonce, err := generateNonce(c.nonceGen)
	if err != nil {
		return nil, fmt.Errorf("failed to generate WebSocket handshake nonce: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	req, err := c.handshakeRequest(ctx, wsURL, nonce)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send WebSocket handshake request: %w", err)
	}

	if err := checkHandshakeResponse(resp, nonce); err != nil {
		resp.Body.Close()
		return nil, err
	}

	// "For 101 Switching Protocols responses, Response.Body is an
	// io.ReadWriteCloser" (https://pkg.go.dev/net/http#Response).
	rwc, ok := resp.Body.(io.ReadWriteCloser)
	if !ok {
		resp.Body.Close()
		return nil, errors.New("WebSocket handshake response body is not writable")
	}

	c.bufio = bufio.NewReadWriter(bufio.NewReader(rwc), bufio.NewWriter(rwc))
	c.closer = rwc
	c.readC = make(chan Message)
	c.writeC = make(chan internalMessage)
	c.done = make(chan struct{})
	c.closing = make(chan struct{})

	go c.readMessages()
	go c.writeMessages()

	c.logger.Trace().Str("host", req.URL.Host).Msg("WebSocket connection established")
	return c, nil
}

// adjustHTTPClient returns a copy of the given HTTP client that doesn't follow
// redirects, and doesn't time-out (because it affects the upgraded connection).
func adjustHTTPClient(c http.Client) *http.Client {
	c.CheckRedirect = func(_ *http.Request, _ []*http.Request) error {
		return http.ErrUseLastResponse
	}
	c.Timeout = 0
	return &c
}

// generateNonce returns a base64-encoded random 16-byte value,
// for the "Sec-WebSocket-Key" header of the opening handshake.
func generateNonce(r io.Reader) (string, error) {
	b := make([]byte, 16)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// handshakeRequest is based on
// https://datatracker.ietf.org/doc/html/rfc6455#section-4.1.
func (c *Conn) handshakeRequest(ctx context.Context, wsURL, nonce string) (*http.Request, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid WebSocket URL: %w", err)
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to construct WebSocket handshake request: %w", err)
	}

	req.Header = c.headers.Clone()
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Key", nonce)
	req.Header.Set("Sec-WebSocket-Version", "13")

	return req, nil
}

// checkHandshakeResponse is based on
// https://datatracker.ietf.org/doc/html/rfc6455#section-4.2.2.
func checkHandshakeResponse(resp *http.Response, nonce string) error {
	if resp.StatusCode != http.StatusSwitchingProtocols {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := resp.Status
		if len(body) > 0 {
			msg = fmt.Sprintf("%s: %s", msg, string(body))
		}
		return fmt.Errorf("unexpected WebSocket handshake response: %s", msg)
	}

	if err := checkHTTPHeader(resp.Header, "Upgrade", "websocket"); err != nil {
		return err
	}
	if err := checkHTTPHeader(resp.Header, "Connection", "Upgrade"); err != nil {
		return err
	}
	return checkHTTPHeader(resp.Header, "Sec-WebSocket-Accept", acceptKey(nonce))
}

func checkHTTPHeader(hs http.Header, key, want string) error {
	got := hs.Get(key)
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("unexpected WebSocket handshake response header %q: got %q, want %q", key, got, want)
	}
	return nil
}

func acceptKey(nonce string) string {
	h := sha1.New() //nolint:gosec // Mandated by RFC 6455.
	h.Write([]byte(nonce + acceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
