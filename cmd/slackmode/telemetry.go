package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "slackmode"

// telemetry holds the OpenTelemetry providers that the Socket Mode
// client reports to, and the Prometheus handler that exposes metrics.
type telemetry struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler

	shutdowns []func(context.Context) error
}

// initTelemetry sets up a Prometheus metrics exporter, and optionally
// a stdout span exporter. Tracing is a no-op when that is disabled.
func initTelemetry(version string, traceStdout bool) (*telemetry, error) {
	res, err := resource.New(context.Background(), resource.WithAttributes(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenTelemetry resource: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	t := &telemetry{
		meterProvider:  mp,
		tracerProvider: noop.NewTracerProvider(),
		metricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		shutdowns:      []func(context.Context) error{mp.Shutdown},
	}

	if traceStdout {
		se, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout span exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res), sdktrace.WithBatcher(se))
		t.tracerProvider = tp
		t.shutdowns = append(t.shutdowns, tp.Shutdown)
	}
	otel.SetTracerProvider(t.tracerProvider)

	return t, nil
}

// shutdown flushes and stops all the providers.
func (t *telemetry) shutdown(ctx context.Context) {
	var errs []error
	for _, f := range t.shutdowns {
		errs = append(errs, f(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Msg("failed to shut down OpenTelemetry providers")
	}
}
