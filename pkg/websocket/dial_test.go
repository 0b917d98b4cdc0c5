package websocket

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	nws "nhooyr.io/websocket"
)

func TestAdjustHTTPClient(t *testing.T) {
	orig := &http.Client{Timeout: time.Second}
	got := adjustHTTPClient(*orig)

	if orig.CheckRedirect != nil || orig.Timeout != time.Second {
		t.Errorf("adjustHTTPClient() modified its input: %+v", orig)
	}
	if got.CheckRedirect == nil {
		t.Error("adjustHTTPClient().CheckRedirect = nil")
	}
	if got.Timeout != 0 {
		t.Errorf("adjustHTTPClient().Timeout = %v, want 0", got.Timeout)
	}
}

func TestGenerateNonce(t *testing.T) {
	random := map[string]bool{}
	for range 2 {
		n, err := generateNonce(rand.Reader)
		if err != nil {
			t.Fatalf("generateNonce() error = %v", err)
		}
		random[n] = true
	}
	if len(random) != 2 {
		t.Error("generateNonce(rand.Reader) returned the same value twice")
	}

	fixed := bytes.Repeat([]byte("0123456789abcdef"), 2)
	r := bytes.NewReader(fixed)
	n1, _ := generateNonce(r)
	n2, _ := generateNonce(r)
	if n1 != n2 || n1 != "MDEyMzQ1Njc4OWFiY2RlZg==" {
		t.Errorf("generateNonce() = %q, %q, want both %q", n1, n2, "MDEyMzQ1Njc4OWFiY2RlZg==")
	}

	if _, err := generateNonce(strings.NewReader("short")); err == nil {
		t.Error("generateNonce() error = nil for a short reader")
	}
}

func TestHandshakeRequest(t *testing.T) {
	tests := []struct {
		url        string
		wantScheme string
		wantErr    bool
	}{
		{url: "ws://example.com/link", wantScheme: "http"},
		{url: "wss://example.com/link?ticket=1", wantScheme: "https"},
		{url: "http://example.com", wantScheme: "http"},
		{url: "https://example.com", wantScheme: "https"},
		{url: "wss://%zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			c := &Conn{headers: http.Header{"Sec-Websocket-Key": {"custom"}, "X-Test": {"1"}}}

			req, err := c.handshakeRequest(t.Context(), tt.url, "nonce")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Conn.handshakeRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if req.URL.Scheme != tt.wantScheme {
				t.Errorf("Conn.handshakeRequest().URL.Scheme = %q, want %q", req.URL.Scheme, tt.wantScheme)
			}

			want := map[string]string{
				"Upgrade":               "websocket",
				"Connection":            "Upgrade",
				"Sec-WebSocket-Key":     "nonce",
				"Sec-WebSocket-Version": "13",
				"X-Test":                "1",
			}
			for k, v := range want {
				if got := req.Header.Values(k); len(got) != 1 || got[0] != v {
					t.Errorf("Conn.handshakeRequest().Header[%q] = %v, want [%s]", k, got, v)
				}
			}
		})
	}
}

func TestCheckHandshakeResponse(t *testing.T) {
	// https://datatracker.ietf.org/doc/html/rfc6455#section-1.3
	const nonce = "dGhlIHNhbXBsZSBub25jZQ=="
	const accept = "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="

	tests := []struct {
		name    string
		status  int
		headers map[string]string
		wantErr string
	}{
		{
			name:    "success",
			status:  http.StatusSwitchingProtocols,
			headers: map[string]string{"Upgrade": "websocket", "Connection": "Upgrade", "Sec-WebSocket-Accept": accept},
		},
		{
			name:    "case_insensitive_values",
			status:  http.StatusSwitchingProtocols,
			headers: map[string]string{"upgrade": "WebSocket", "connection": "upgrade", "Sec-WebSocket-Accept": accept},
		},
		{
			name:    "http_error",
			status:  http.StatusUnauthorized,
			wantErr: "401",
		},
		{
			name:    "missing_upgrade",
			status:  http.StatusSwitchingProtocols,
			headers: map[string]string{"Connection": "Upgrade", "Sec-WebSocket-Accept": accept},
			wantErr: "Upgrade",
		},
		{
			name:    "wrong_connection",
			status:  http.StatusSwitchingProtocols,
			headers: map[string]string{"Upgrade": "websocket", "Connection": "keep-alive", "Sec-WebSocket-Accept": accept},
			wantErr: "Connection",
		},
		{
			name:    "wrong_accept_key",
			status:  http.StatusSwitchingProtocols,
			headers: map[string]string{"Upgrade": "websocket", "Connection": "Upgrade", "Sec-WebSocket-Accept": "bad"},
			wantErr: "Sec-WebSocket-Accept",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tt.status,
				Status:     fmt.Sprintf("%d %s", tt.status, http.StatusText(tt.status)),
				Header:     http.Header{},
				Body:       io.NopCloser(strings.NewReader("body")),
			}
			for k, v := range tt.headers {
				resp.Header.Set(k, v)
			}

			err := checkHandshakeResponse(resp, nonce)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("checkHandshakeResponse() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("checkHandshakeResponse() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDialWithHTTPHeaders(t *testing.T) {
	got := make(chan string, 1)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Authorization")
		c, err := nws.Accept(w, r, nil)
		if err != nil {
			return
		}
		c.Close(nws.StatusNormalClosure, "")
	}))
	defer s.Close()

	hs := http.Header{}
	hs.Set("Authorization", "Bearer xapp-test")
	c, err := Dial(t.Context(), "ws"+strings.TrimPrefix(s.URL, "http"), WithHTTPHeaders(hs), WithHTTPClient(s.Client()))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close(StatusNormalClosure)

	if auth := <-got; auth != "Bearer xapp-test" {
		t.Errorf("Authorization header = %q, want %q", auth, "Bearer xapp-test")
	}
}
