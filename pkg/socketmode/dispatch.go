package socketmode

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tzrikka/slackmode/pkg/events"
)

// dispatch calls the [Handler] method that matches the envelope's type.
// If h isn't nil, the handler also receives an [AckToken], which is
// reclaimed (i.e. acknowledged automatically) if the handler doesn't
// use it before it returns, panics, or reaches the ack deadline.
func (s *session) dispatch(e events.Event, h *events.Header) {
	attrs := []attribute.KeyValue{attribute.String("envelope.type", e.EnvelopeType())}
	if h != nil {
		attrs = append(attrs, attribute.String("envelope.id", h.EnvelopeID))
	}

	ctx, span := s.tracer.Start(s.handlerCtx, "socketmode.dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer), trace.WithAttributes(attrs...))
	defer span.End()

	var t *AckToken
	if h != nil {
		t = newAckToken(ctx, *h, s.writer, s.metrics)
		t.armDeadline(s.client.ackTimeout)
	}

	start := time.Now()
	p := s.invoke(ctx, e, t)
	s.metrics.recordHandler(ctx, e.EnvelopeType(), time.Since(start), p != nil)

	if p != nil {
		err := fmt.Errorf("handler panic: %v", p)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if t == nil {
		return
	}

	origin := ackOnReturn
	if p != nil {
		origin = ackOnPanic
	}
	if err := t.ack(nil, origin); err == nil && p == nil {
		zerolog.Ctx(ctx).Warn().Str("envelope_id", t.envelopeID).Str("type", e.EnvelopeType()).
			Msg("handler returned without ack, sent automatic ack")
	}
}

// invoke calls the handler, and returns the value of a recovered panic, if any.
func (s *session) invoke(ctx context.Context, e events.Event, t *AckToken) (p any) {
	defer func() {
		if r := recover(); r != nil {
			p = r
			zerolog.Ctx(ctx).Error().Str("type", e.EnvelopeType()).Str("envelope_id", t.EnvelopeID()).
				Any("panic", r).Str("stack", string(debug.Stack())).Msg("recovered from handler panic")
		}
	}()

	switch e := e.(type) {
	case *events.Hello:
		s.handler.OnHello(ctx, e)
	case *events.Disconnect:
		s.handler.OnDisconnect(ctx, e)
	case *events.EventsAPI:
		s.handler.OnEventsAPI(ctx, e, t)
	case *events.Interactive:
		s.handler.OnInteractive(ctx, e, t)
	case *events.SlashCommands:
		s.handler.OnSlashCommands(ctx, e, t)
	case *events.Unknown:
		s.handler.OnUnknown(ctx, e, t)
	default:
		zerolog.Ctx(ctx).Error().Str("type", e.EnvelopeType()).Msg("no handler method for Socket Mode envelope")
	}

	return nil
}
