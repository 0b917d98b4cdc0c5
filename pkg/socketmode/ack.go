package socketmode

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tzrikka/slackmode/pkg/events"
	"github.com/tzrikka/slackmode/pkg/websocket"
)

// Origins of acknowledgements, for logging and metrics.
const (
	ackByHandler  = "handler"
	ackOnReturn   = "return"
	ackOnDeadline = "deadline"
	ackOnPanic    = "panic"
)

const defaultAckQueueSize = 64

// AckToken is a one-time handle for acknowledging a single envelope.
// All its methods are safe for concurrent use, and a nil token is
// valid: it represents an envelope that must not be acknowledged.
type AckToken struct {
	envelopeID     string
	acceptsPayload bool
	received       time.Time

	acked    atomic.Bool
	deadline *time.Timer

	ctx     context.Context
	writer  *ackWriter
	metrics *metrics
}

// ack is the outbound acknowledgement frame.
//
// https://docs.slack.dev/apis/events-api/using-socket-mode#acknowledge
type ack struct {
	EnvelopeID string          `json:"envelope_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func newAckToken(ctx context.Context, h events.Header, w *ackWriter, m *metrics) *AckToken {
	return &AckToken{
		envelopeID:     h.EnvelopeID,
		acceptsPayload: h.AcceptsResponsePayload,
		received:       time.Now(),
		ctx:            ctx,
		writer:         w,
		metrics:        m,
	}
}

// EnvelopeID returns the ID of the envelope that this token acknowledges.
func (t *AckToken) EnvelopeID() string {
	if t == nil {
		return ""
	}
	return t.envelopeID
}

// AcceptsResponsePayload reports whether Slack will relay an acknowledgement
// payload to the user (e.g. as a response to a slash command).
func (t *AckToken) AcceptsResponsePayload() bool {
	return t != nil && t.acceptsPayload
}

// Acked reports whether the envelope has already been acknowledged.
func (t *AckToken) Acked() bool {
	return t != nil && t.acked.Load()
}

// Ack acknowledges the envelope, without a payload.
// It returns [ErrAlreadyAcked] if this isn't the first call.
func (t *AckToken) Ack() error {
	return t.ack(nil, ackByHandler)
}

// AckWithPayload acknowledges the envelope with a JSON-encodable payload.
// If the envelope doesn't accept response payloads, the payload is dropped
// (with a warning), and the envelope is acknowledged without it. Encoding
// errors do not consume the token.
func (t *AckToken) AckWithPayload(payload any) error {
	if t == nil {
		return ErrNotAckable
	}

	if !t.acceptsPayload {
		zerolog.Ctx(t.ctx).Warn().Str("envelope_id", t.envelopeID).
			Msg("dropping ack payload: envelope does not accept response payloads")
		return t.ack(nil, ackByHandler)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode ack payload: %w", err)
	}

	return t.ack(b, ackByHandler)
}

func (t *AckToken) ack(payload json.RawMessage, origin string) error {
	if t == nil {
		return ErrNotAckable
	}

	if !t.acked.CompareAndSwap(false, true) {
		if origin == ackByHandler {
			zerolog.Ctx(t.ctx).Warn().Str("envelope_id", t.envelopeID).Msg("ignoring duplicate ack")
			t.metrics.ackViolations.Add(t.ctx, 1)
		}
		return ErrAlreadyAcked
	}

	// The deadline timer is set before the handler can call this function,
	// but the timer's own callback must not access it.
	if origin != ackOnDeadline && t.deadline != nil {
		t.deadline.Stop()
	}

	l := zerolog.Ctx(t.ctx)
	if err := t.writer.enqueue(ack{EnvelopeID: t.envelopeID, Payload: payload}); err != nil {
		l.Err(err).Str("envelope_id", t.envelopeID).Str("origin", origin).Msg("failed to send ack")
		return err
	}

	t.metrics.recordAck(t.ctx, origin)
	l.Trace().Str("envelope_id", t.envelopeID).Str("origin", origin).
		Dur("latency", time.Since(t.received)).Msg("sent ack")
	return nil
}

// armDeadline schedules an automatic acknowledgement, in case the
// handler is still running when the acknowledgement deadline passes.
func (t *AckToken) armDeadline(d time.Duration) {
	t.deadline = time.AfterFunc(d, func() {
		if t.ack(nil, ackOnDeadline) == nil {
			zerolog.Ctx(t.ctx).Warn().Str("envelope_id", t.envelopeID).Dur("timeout", d).
				Msg("handler did not ack before the deadline, sent automatic ack")
		}
	})
}

// conn is the subset of [websocket.Conn] that an [ackWriter] needs.
type conn interface {
	SendTextMessage(data []byte) <-chan error
}

var _ conn = (*websocket.Conn)(nil)

// ackWriter serializes acknowledgements and writes them to the connection,
// in the order they were enqueued, from a single goroutine. It stops at the
// first write error, which also signals the session to reconnect.
type ackWriter struct {
	conn    conn
	queue   chan ack
	pending *pendingAcks

	mu     sync.RWMutex
	closed bool

	done   chan struct{}
	failed chan error
}

func newAckWriter(c conn, p *pendingAcks, size int) *ackWriter {
	return &ackWriter{
		conn:    c,
		queue:   make(chan ack, size),
		pending: p,
		done:    make(chan struct{}),
		failed:  make(chan error, 1),
	}
}

func (w *ackWriter) enqueue(a ack) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrSessionClosed
	}

	// Don't enqueue after a write error.
	select {
	case <-w.done:
		return ErrSessionClosed
	default:
	}

	select {
	case w.queue <- a:
		return nil
	case <-w.done:
		return ErrSessionClosed
	}
}

// run is the writer's goroutine. It returns when the queue is closed
// and drained, or when a write fails. Failures are reported in
// [ackWriter.failed] after the writer stops accepting new acks.
func (w *ackWriter) run(l *zerolog.Logger) {
	err := w.drain(l)
	close(w.done)
	if err != nil {
		w.failed <- err
	}
}

func (w *ackWriter) drain(l *zerolog.Logger) error {
	for a := range w.queue {
		b, err := json.Marshal(a)
		if err != nil {
			l.Err(err).Str("envelope_id", a.EnvelopeID).Msg("failed to encode ack, sending it without payload")
			b, _ = json.Marshal(ack{EnvelopeID: a.EnvelopeID})
		}

		if err := <-w.conn.SendTextMessage(b); err != nil {
			return fmt.Errorf("failed to write ack: %w", err)
		}

		w.pending.remove(a.EnvelopeID)
	}
	return nil
}

// close stops accepting new acknowledgements, and waits until all the
// previously-enqueued ones have been written, or the context is done.
func (w *ackWriter) close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pendingAcks tracks the IDs of envelopes that were received in
// the current session, but whose acknowledgement wasn't written yet.
type pendingAcks struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newPendingAcks() *pendingAcks {
	return &pendingAcks{ids: make(map[string]struct{})}
}

// add returns false if the ID is already pending.
func (p *pendingAcks) add(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.ids[id]; ok {
		return false
	}
	p.ids[id] = struct{}{}
	return true
}

func (p *pendingAcks) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.ids, id)
}

func (p *pendingAcks) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.ids)
}
