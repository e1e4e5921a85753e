package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/sells-group/orgmetrics/internal/config"
)

// initTracing installs an OTLP/HTTP trace exporter as the global tracer
// provider. With no endpoint configured the global no-op provider stays and
// the returned shutdown does nothing.
func initTracing(ctx context.Context, tc config.TelemetryConfig) (func(context.Context) error, error) {
	if tc.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(tc.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, eris.Wrap(err, "telemetry: build resource")
	}

	exportCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	exporter, err := otlptracehttp.New(
		exportCtx,
		otlptracehttp.WithEndpointURL(tc.OTLPEndpoint),
		otlptracehttp.WithHeaders(tc.OTLPHeaders),
	)
	if err != nil {
		return nil, eris.Wrap(err, "telemetry: create exporter")
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	zap.L().Info("telemetry: trace export enabled",
		zap.String("endpoint", tc.OTLPEndpoint),
		zap.Bool("headers", len(tc.OTLPHeaders) > 0),
	)
	return tp.Shutdown, nil
}
