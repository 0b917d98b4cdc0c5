package socketmode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tzrikka/slackmode/pkg/events"
	"github.com/tzrikka/slackmode/pkg/websocket"
)

const (
	// Bounds the time spent on flushing acks and
	// on the closing handshake, when a session ends.
	teardownTimeout = 5 * time.Second

	pingPayload = "slackmode"
)

// session is the state of a single WebSocket connection. All its fields
// are owned by the goroutine that calls [session.run], except for the
// ones that are explicitly shared with the [ackWriter] and [AckToken]s.
type session struct {
	ctx        context.Context
	handlerCtx context.Context
	logger     *zerolog.Logger

	client  *Client
	conn    *websocket.Conn
	handler Handler
	backoff *backoff
	metrics *metrics
	tracer  trace.Tracer

	pending   *pendingAcks
	writer    *ackWriter
	malformed *rate.Limiter

	helloDeadline time.Time
	helloReceived bool
	awaitingPong  bool
}

// run is the inner receive loop. It returns nil if the session's context
// is cancelled, or the reason for reconnecting in all other cases.
func (s *session) run() error {
	go s.writer.run(s.logger)

	// Until the first hello, the timer is a deadline for receiving
	// it. Afterwards it tracks idle time and pong timeouts.
	s.helloDeadline = time.Now().Add(s.client.idleTimeout + s.client.pingTimeout)
	timer := time.NewTimer(time.Until(s.helloDeadline))
	defer timer.Stop()

	msgs := s.conn.IncomingMessages()
	for {
		select {
		case <-s.ctx.Done():
			s.end(websocket.StatusNormalClosure, true)
			return nil

		case err := <-s.writer.failed:
			s.logger.Warn().Err(err).Msg("ack writer failed")
			s.end(websocket.StatusGoingAway, false)
			return err

		case msg, ok := <-msgs:
			if err := s.receive(timer, msg, ok); err != nil {
				s.end(websocket.StatusNormalClosure, false)
				return err
			}

		case <-timer.C:
			// Frames that are already waiting take precedence over timeouts.
			select {
			case msg, ok := <-msgs:
				if err := s.receive(timer, msg, ok); err != nil {
					s.end(websocket.StatusNormalClosure, false)
					return err
				}
				continue
			default:
			}

			if err := s.checkLiveness(timer); err != nil {
				s.logger.Warn().Err(err).Msg("Socket Mode connection is unresponsive")
				s.end(websocket.StatusGoingAway, false)
				return err
			}
		}
	}
}

// receive handles a single incoming message, and then resets the liveness timer.
func (s *session) receive(timer *time.Timer, msg websocket.Message, ok bool) error {
	if !ok {
		return errConnectionClosed
	}

	switch msg.Opcode {
	case websocket.OpcodeText:
		if err := s.handleText(msg.Data); err != nil {
			return err
		}
	case websocket.OpcodePing, websocket.OpcodePong:
		s.logger.Trace().Str("opcode", msg.Opcode.String()).Bytes("payload", msg.Data).
			Msg("received WebSocket control frame")
	default:
		s.logger.Debug().Str("opcode", msg.Opcode.String()).Int("length", len(msg.Data)).
			Msg("ignoring non-text WebSocket message")
	}

	s.awaitingPong = false
	if s.helloReceived {
		timer.Reset(s.client.idleTimeout)
	} else {
		timer.Reset(time.Until(s.helloDeadline))
	}
	return nil
}

// checkLiveness is called when the liveness timer fires without any
// incoming messages. It either sends a ping, or gives up on the connection.
func (s *session) checkLiveness(timer *time.Timer) error {
	switch {
	case !s.helloReceived:
		return errHelloTimeout
	case s.awaitingPong:
		return errPongTimeout
	}

	s.logger.Debug().Dur("idle_timeout", s.client.idleTimeout).Msg("connection is idle, sending ping")
	if err := <-s.conn.SendPing([]byte(pingPayload)); err != nil {
		return fmt.Errorf("failed to send ping: %w", err)
	}

	s.awaitingPong = true
	timer.Reset(s.client.pingTimeout)
	return nil
}

func (s *session) handleText(data []byte) error {
	e, err := events.Parse(data)
	if err != nil {
		return s.handleParseError(err)
	}

	s.metrics.recordEnvelope(s.ctx, e.EnvelopeType())

	switch e := e.(type) {
	case *events.Hello:
		s.handleHello(e)
		s.dispatch(e, nil)
		return nil

	case *events.Disconnect:
		s.logger.Info().Str("reason", e.Reason).Msg("Slack requested to disconnect")
		s.dispatch(e, nil)
		return errDisconnect

	default:
		s.dispatchAckable(e)
		return nil
	}
}

func (s *session) handleHello(e *events.Hello) {
	if !s.helloReceived {
		s.metrics.connected.Add(s.ctx, 1)
	}
	s.helloReceived = true
	s.backoff.reset()
	s.client.setConnected(e.ConnectionInfo.AppID, e.NumConnections)

	l := s.logger.Info().Str("app_id", e.ConnectionInfo.AppID).Int("num_connections", e.NumConnections)
	if e.DebugInfo != nil {
		l = l.Str("host", e.DebugInfo.Host).Int("approximate_connection_time", e.DebugInfo.ApproximateConnectionTime)
	}
	l.Msg("connected to Slack in Socket Mode")
}

// handleParseError dispatches envelopes of unknown types, and drops
// other unparsable frames. It returns an error only when there are
// too many malformed frames, which is a reason to reconnect.
func (s *session) handleParseError(err error) error {
	var pe *events.ParseError
	if !errors.As(err, &pe) {
		pe = &events.ParseError{Kind: events.ErrMalformed, Err: err}
	}

	if u := pe.Unknown(); u != nil {
		s.logger.Warn().Str("type", u.Type).Str("envelope_id", u.EnvelopeID).
			Msg("received Socket Mode envelope of unknown type")
		s.metrics.recordEnvelope(s.ctx, "unknown")
		s.dispatchAckable(u)
		return nil
	}

	s.logger.Warn().Err(err).Str("type", pe.Type).Str("envelope_id", pe.EnvelopeID).
		Msg("dropping malformed Socket Mode frame")
	s.metrics.recordDrop(s.ctx, "malformed")

	if !s.malformed.Allow() {
		return errMalformedFrames
	}
	return nil
}

// dispatchAckable dispatches envelopes that may require an acknowledgement.
// Envelopes whose ID is still pending in this session are dropped.
func (s *session) dispatchAckable(e events.Event) {
	a, ok := e.(events.Ackable)
	if !ok || a.Envelope().EnvelopeID == "" {
		s.dispatch(e, nil)
		return
	}

	h := a.Envelope()
	if !s.pending.add(h.EnvelopeID) {
		s.logger.Warn().Str("type", e.EnvelopeType()).Str("envelope_id", h.EnvelopeID).
			Msg("dropping duplicate Socket Mode envelope")
		s.metrics.recordDrop(s.ctx, "duplicate")
		return
	}

	if h.RetryAttempt > 0 {
		s.logger.Debug().Str("envelope_id", h.EnvelopeID).Int("retry_attempt", h.RetryAttempt).
			Str("retry_reason", h.RetryReason).Msg("received retried Socket Mode envelope")
	}

	s.logCatchAll(e, h.EnvelopeID)
	s.dispatch(e, &h)
}

// logCatchAll warns about payloads with unrecognized nested discriminators.
// They are still dispatched as-is, so handlers can inspect the raw JSON.
func (s *session) logCatchAll(e events.Event, envelopeID string) {
	var kind, value string
	switch e := e.(type) {
	case *events.EventsAPI:
		switch ie := e.Payload.Event.(type) {
		case *events.UnknownEvent:
			kind, value = "event_type", ie.Type
		case *events.UnknownMessage:
			kind, value = "message_subtype", ie.Subtype
		}
	case *events.Interactive:
		if i, ok := e.Payload.(*events.UnknownInteraction); ok {
			kind, value = "interaction_type", i.Type
		}
	}

	if kind != "" {
		s.logger.Warn().Str("envelope_id", envelopeID).Str(kind, value).
			Msg("received Socket Mode payload of unknown type")
	}
}

// end flushes pending acks, and closes the connection. If wait is true,
// it also waits for the closing handshake to complete. Both are bounded
// by [teardownTimeout].
func (s *session) end(status websocket.StatusCode, wait bool) {
	ctx, cancel := context.WithTimeout(s.handlerCtx, teardownTimeout)
	defer cancel()

	if err := s.writer.close(ctx); err != nil {
		s.logger.Warn().Err(err).Int("pending_acks", s.pending.len()).Msg("failed to flush acks")
	}

	s.conn.Close(status)
	if wait {
		select {
		case <-s.conn.Done():
		case <-ctx.Done():
			s.logger.Debug().Msg("timeout while closing WebSocket connection")
		}
	}

	if s.helloReceived {
		s.metrics.connected.Add(s.handlerCtx, -1)
	}
	s.logger.Debug().Str("close_status", status.String()).Msg("Socket Mode session ended")
}
