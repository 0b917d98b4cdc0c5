package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://slack.com/api/"

	connOpenMethod = "apps.connections.open"
	timeout        = 3 * time.Second
	maxSize        = 1024 // 1 KiB.

	// Slack doesn't specify an expiry time for connection
	// URLs, but they are single-use and meant to be used
	// immediately, so this is just a conservative hint.
	grantTTL = 30 * time.Second
)

type slackAPIResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Grant is a temporary, single-use Socket Mode WebSocket URL.
type Grant struct {
	URL       string
	ExpiresAt time.Time
}

// Client calls the Slack API. It is stateless and safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	now        func() time.Time
}

// Opt is a functional option of [NewClient].
type Opt func(*Client)

// WithHTTPClient overrides [http.DefaultClient].
func WithHTTPClient(c *http.Client) Opt {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithBaseURL overrides [DefaultBaseURL], mainly for testing.
func WithBaseURL(u string) Opt {
	return func(client *Client) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		client.baseURL = u
	}
}

func NewClient(opts ...Opt) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenConnection generates a temporary Socket Mode WebSocket URL ("wss://...")
// that a Slack app can connect to, to receive events and interactive payloads.
// Based on https://docs.slack.dev/reference/methods/apps.connections.open.
//
// All errors are of type [*Error].
func (c *Client) OpenConnection(ctx context.Context, appToken string) (*Grant, error) {
	// Construct and send the request.
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+connOpenMethod, http.NoBody)
	if err != nil {
		return nil, &Error{Kind: ErrTransport, Err: fmt.Errorf("failed to construct HTTP request: %w", err)}
	}

	req.Header.Add("Authorization", "Bearer "+appToken)
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrTransport, Err: fmt.Errorf("failed to send HTTP request: %w", err)}
	}
	defer resp.Body.Close()

	// Read and parse the response.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSize))
	if err != nil {
		return nil, &Error{Kind: ErrTransport, Err: fmt.Errorf("failed to read HTTP response body: %w", err)}
	}

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: ErrRateLimited, Code: resp.Status, RetryAfter: retryAfter}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Kind: ErrInvalidAuth, Code: resp.Status}
	case resp.StatusCode != http.StatusOK:
		msg := resp.Status
		if len(body) > 0 {
			msg = fmt.Sprintf("%s: %s", msg, string(body))
		}
		return nil, &Error{Kind: ErrTransport, Code: msg}
	}

	decoded := &slackAPIResponse{}
	if err := json.Unmarshal(body, decoded); err != nil {
		return nil, &Error{Kind: ErrMalformed, Err: fmt.Errorf("failed to parse JSON in HTTP response body: %w", err)}
	}
	if !decoded.OK {
		zerolog.Ctx(ctx).Debug().Str("error", decoded.Error).Msg("Slack API error response")
		return nil, apiError(decoded.Error, retryAfter)
	}

	u, err := url.Parse(decoded.URL)
	if err != nil || (u.Scheme != "wss" && u.Scheme != "ws") {
		return nil, &Error{Kind: ErrMalformed, Code: "invalid WebSocket URL", Err: err}
	}

	return &Grant{URL: decoded.URL, ExpiresAt: c.now().Add(grantTTL)}, nil
}

// parseRetryAfter supports only the delay-seconds form of the "Retry-After"
// header, which is what Slack uses. See https://docs.slack.dev/apis/web-api/rate-limits.
func parseRetryAfter(s string) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
