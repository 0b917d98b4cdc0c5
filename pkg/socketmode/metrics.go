package socketmode

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tzrikka/slackmode/pkg/socketmode"

// metrics holds the client's OpenTelemetry instruments.
type metrics struct {
	envelopesReceived metric.Int64Counter
	framesDropped     metric.Int64Counter
	acksSent          metric.Int64Counter
	ackViolations     metric.Int64Counter
	handlerDuration   metric.Float64Histogram
	handlerPanics     metric.Int64Counter
	sessions          metric.Int64Counter
	reconnects        metric.Int64Counter
	connected         metric.Int64UpDownCounter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(instrumentationName)
	m := &metrics{}

	var err error

	m.envelopesReceived, err = meter.Int64Counter(
		"socketmode.envelopes.received",
		metric.WithDescription("Number of parsed envelopes, by type"),
		metric.WithUnit("{envelopes}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating envelopes_received: %w", err)
	}

	m.framesDropped, err = meter.Int64Counter(
		"socketmode.frames.dropped",
		metric.WithDescription("Number of malformed or duplicate frames that were dropped"),
		metric.WithUnit("{frames}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames_dropped: %w", err)
	}

	m.acksSent, err = meter.Int64Counter(
		"socketmode.acks.sent",
		metric.WithDescription("Number of envelope acknowledgements, by origin"),
		metric.WithUnit("{acks}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating acks_sent: %w", err)
	}

	m.ackViolations, err = meter.Int64Counter(
		"socketmode.acks.violations",
		metric.WithDescription("Number of rejected duplicate acknowledgements"),
		metric.WithUnit("{acks}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ack_violations: %w", err)
	}

	m.handlerDuration, err = meter.Float64Histogram(
		"socketmode.handler.duration",
		metric.WithDescription("Handler execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating handler_duration: %w", err)
	}

	m.handlerPanics, err = meter.Int64Counter(
		"socketmode.handler.panics",
		metric.WithDescription("Number of recovered handler panics"),
		metric.WithUnit("{panics}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating handler_panics: %w", err)
	}

	m.sessions, err = meter.Int64Counter(
		"socketmode.sessions.ended",
		metric.WithDescription("Number of WebSocket sessions that ended, by reason"),
		metric.WithUnit("{sessions}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sessions_ended: %w", err)
	}

	m.reconnects, err = meter.Int64Counter(
		"socketmode.connect.failures",
		metric.WithDescription("Number of failed attempts to resolve or dial a WebSocket URL"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating connect_failures: %w", err)
	}

	m.connected, err = meter.Int64UpDownCounter(
		"socketmode.connected",
		metric.WithDescription("Number of WebSocket sessions that received a hello"),
		metric.WithUnit("{sessions}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating connected: %w", err)
	}

	return m, nil
}

func (m *metrics) recordEnvelope(ctx context.Context, envelopeType string) {
	m.envelopesReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("envelope.type", envelopeType)))
}

func (m *metrics) recordDrop(ctx context.Context, reason string) {
	m.framesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *metrics) recordAck(ctx context.Context, origin string) {
	m.acksSent.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", origin)))
}

func (m *metrics) recordHandler(ctx context.Context, envelopeType string, d time.Duration, panicked bool) {
	attrs := metric.WithAttributes(attribute.String("envelope.type", envelopeType))
	m.handlerDuration.Record(ctx, d.Seconds(), attrs)
	if panicked {
		m.handlerPanics.Add(ctx, 1, attrs)
	}
}

func (m *metrics) recordSessionEnd(ctx context.Context, err error) {
	m.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason(err))))
}

func (m *metrics) recordConnectFailure(ctx context.Context, stage string) {
	m.reconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}
