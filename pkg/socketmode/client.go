package socketmode

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tzrikka/slackmode/pkg/slack"
	"github.com/tzrikka/slackmode/pkg/websocket"
)

const (
	DefaultIdleTimeout = 30 * time.Second
	DefaultPingTimeout = 10 * time.Second
	DefaultAckTimeout  = 3 * time.Second

	defaultMalformedLimit  = 10
	defaultMalformedPeriod = time.Minute
)

// Credentials are the two Slack tokens of a Socket Mode app. The app-level
// token (xapp-...) opens connections, and the bot token (xoxb-...) is
// available to handlers for Web API calls. Neither is ever logged.
type Credentials struct {
	AppToken string
	BotToken string
}

func (c Credentials) String() string {
	return fmt.Sprintf("{AppToken:%s BotToken:%s}", redact(c.AppToken), redact(c.BotToken))
}

func (c Credentials) GoString() string {
	return c.String()
}

// MarshalZerologObject implements [zerolog.LogObjectMarshaler].
func (c Credentials) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("app_token", c.AppToken != "").Bool("bot_token", c.BotToken != "")
}

func redact(token string) string {
	if token == "" {
		return "<empty>"
	}
	return "<redacted>"
}

// Resolver obtains a temporary WebSocket URL for a Socket Mode connection.
// [slack.Client] is the default implementation.
type Resolver interface {
	OpenConnection(ctx context.Context, appToken string) (*slack.Grant, error)
}

// Client maintains a Socket Mode connection to Slack, and dispatches
// the envelopes that it receives to a [Handler]. Create it with [New].
type Client struct {
	creds    Credentials
	resolver Resolver

	idleTimeout time.Duration
	pingTimeout time.Duration
	ackTimeout  time.Duration

	backoffBase time.Duration
	backoffMax  time.Duration

	malformedLimit  int
	malformedPeriod time.Duration

	debugReconnects bool
	dialOpts        []websocket.DialOpt

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	running atomic.Bool

	mu      sync.RWMutex
	state   State
	pending *pendingAcks
}

// Option is a functional option of [New].
type Option func(*Client)

// WithResolver overrides the default [slack.Client], e.g. to
// use a different HTTP client, or a fake one in tests.
func WithResolver(r Resolver) Option {
	return func(c *Client) {
		c.resolver = r
	}
}

// WithIdleTimeout sets how long a connection may stay silent before
// the client sends a ping. The default is [DefaultIdleTimeout].
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.idleTimeout = d
	}
}

// WithPingTimeout sets how long the client waits for a pong before it gives
// up on the connection and reconnects. The default is [DefaultPingTimeout].
func WithPingTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.pingTimeout = d
	}
}

// WithAckTimeout sets the deadline for handlers to acknowledge envelopes,
// after which the client does it automatically. The default is [DefaultAckTimeout].
func WithAckTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.ackTimeout = d
	}
}

// WithBackoff sets the initial and maximum delays between reconnection
// attempts. The defaults are 1 second and 60 seconds, respectively.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.backoffBase = base
		c.backoffMax = maxDelay
	}
}

// WithMalformedLimit sets how many malformed frames the client tolerates
// per period, before it reconnects. The default is 10 per minute.
func WithMalformedLimit(n int, per time.Duration) Option {
	return func(c *Client) {
		c.malformedLimit = n
		c.malformedPeriod = per
	}
}

// WithDebugReconnects asks Slack to disconnect much sooner than usual,
// to exercise the client's reconnection logic during development.
func WithDebugReconnects() Option {
	return func(c *Client) {
		c.debugReconnects = true
	}
}

// WithDialOptions passes options to [websocket.Dial].
func WithDialOptions(opts ...websocket.DialOpt) Option {
	return func(c *Client) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}

// WithMeterProvider overrides the global OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) {
		c.meterProvider = mp
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracerProvider = tp
	}
}

// New returns a [Client] that is ready to [Client.Run].
func New(creds Credentials, opts ...Option) *Client {
	c := &Client{
		creds:           creds,
		idleTimeout:     DefaultIdleTimeout,
		pingTimeout:     DefaultPingTimeout,
		ackTimeout:      DefaultAckTimeout,
		backoffBase:     defaultBackoffBase,
		backoffMax:      defaultBackoffMax,
		malformedLimit:  defaultMalformedLimit,
		malformedPeriod: defaultMalformedPeriod,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.resolver == nil {
		c.resolver = slack.NewClient()
	}
	if c.meterProvider == nil {
		c.meterProvider = otel.GetMeterProvider()
	}
	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}

	return c
}

// Credentials returns the tokens that the client was created with.
func (c *Client) Credentials() Credentials {
	return c.creds
}

// Run connects to Slack and dispatches incoming envelopes to the given
// handler, reconnecting whenever the connection breaks or Slack asks
// to disconnect. It blocks until the context is cancelled, in which case
// it returns nil, or until Slack rejects the app-level token, in which
// case it returns an error that matches [slack.ErrInvalidAuth].
//
// The context's [zerolog] logger is used for all the client's logging.
func (c *Client) Run(ctx context.Context, h Handler) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	if c.creds.AppToken == "" {
		return fmt.Errorf("%w: missing app-level token", slack.ErrInvalidAuth)
	}
	if h == nil {
		h = NopHandler{}
	}

	l := zerolog.Ctx(ctx)
	m, err := newMetrics(c.meterProvider)
	if err != nil {
		l.Warn().Err(err).Msg("failed to initialize Socket Mode metrics, disabling them")
		m, _ = newMetrics(noop.NewMeterProvider())
	}
	tracer := c.tracerProvider.Tracer(instrumentationName)

	b := newBackoff(c.backoffBase, c.backoffMax)
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := c.connect(ctx, m)
		if err != nil {
			if errors.Is(err, slack.ErrInvalidAuth) {
				l.Error().Err(err).Msg("Slack rejected the app-level token")
				return err
			}
			if ctx.Err() != nil {
				return nil
			}

			d := b.next()
			var se *slack.Error
			if errors.As(err, &se) && se.RetryAfter > d {
				d = se.RetryAfter
			}
			c.setReconnectAttempts(b.attempt)
			l.Warn().Err(err).Int("attempt", b.attempt).Dur("backoff", d).
				Msg("failed to connect to Slack")
			if !sleep(ctx, d) {
				return nil
			}
			continue
		}

		s := c.newSession(ctx, conn, h, b, m, tracer)
		err = s.run()
		m.recordSessionEnd(ctx, err)
		c.endSession()
		if err == nil {
			return nil
		}

		d := b.next()
		c.setReconnectAttempts(b.attempt)
		s.logger.Info().Str("reason", err.Error()).Dur("backoff", d).Msg("reconnecting to Slack")
		if !sleep(ctx, d) {
			return nil
		}
	}
}

// connect resolves a WebSocket URL and dials it.
func (c *Client) connect(ctx context.Context, m *metrics) (*websocket.Conn, error) {
	grant, err := c.resolver.OpenConnection(ctx, c.creds.AppToken)
	if err != nil {
		m.recordConnectFailure(ctx, "resolve")
		return nil, err
	}

	if !grant.ExpiresAt.IsZero() && time.Now().After(grant.ExpiresAt) {
		m.recordConnectFailure(ctx, "expired")
		return nil, fmt.Errorf("%w: %w", slack.ErrTransport, errGrantExpired)
	}

	wsURL := grant.URL
	if c.debugReconnects {
		wsURL = withDebugReconnects(wsURL)
	}

	conn, err := websocket.Dial(ctx, wsURL, c.dialOpts...)
	if err != nil {
		m.recordConnectFailure(ctx, "dial")
		return nil, fmt.Errorf("%w: %w", slack.ErrTransport, err)
	}

	return conn, nil
}

func withDebugReconnects(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return wsURL
	}

	q := u.Query()
	q.Set("debug_reconnects", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) newSession(ctx context.Context, conn *websocket.Conn, h Handler, b *backoff, m *metrics, t trace.Tracer) *session {
	p := newPendingAcks()

	c.mu.Lock()
	c.state.Generation++
	c.state.SessionID = shortuuid.New()
	c.state.Connected = false
	c.state.AppID = ""
	c.state.NumConnections = 0
	c.pending = p
	gen, id := c.state.Generation, c.state.SessionID
	c.mu.Unlock()

	l := zerolog.Ctx(ctx).With().Str("session_id", id).Uint64("generation", gen).Logger()
	ctx = l.WithContext(ctx)

	return &session{
		ctx:        ctx,
		handlerCtx: context.WithoutCancel(ctx),
		logger:     &l,
		client:     c,
		conn:       conn,
		handler:    h,
		backoff:    b,
		metrics:    m,
		tracer:     t,
		pending:    p,
		writer:     newAckWriter(conn, p, defaultAckQueueSize),
		malformed:  rate.NewLimiter(rate.Every(c.malformedPeriod/time.Duration(max(c.malformedLimit, 1))), c.malformedLimit),
	}
}

// State is a snapshot of a [Client]'s connection status.
type State struct {
	Connected         bool      `json:"connected"`
	Generation        uint64    `json:"generation"`
	SessionID         string    `json:"session_id,omitempty"`
	AppID             string    `json:"app_id,omitempty"`
	NumConnections    int       `json:"num_connections,omitempty"`
	LastHello         time.Time `json:"last_hello,omitzero"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
	PendingAcks       int       `json:"pending_acks"`
}

// State returns a snapshot of the client's connection status.
// It is safe to call concurrently with [Client.Run].
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.state
	if c.pending != nil {
		s.PendingAcks = c.pending.len()
	}
	return s
}

func (c *Client) setConnected(appID string, numConns int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Connected = true
	c.state.AppID = appID
	c.state.NumConnections = numConns
	c.state.LastHello = time.Now().UTC()
	c.state.ReconnectAttempts = 0
}

func (c *Client) setReconnectAttempts(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.ReconnectAttempts = n
}

func (c *Client) endSession() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Connected = false
	c.pending = nil
}
