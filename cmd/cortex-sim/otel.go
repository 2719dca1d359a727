package main

import (
	"context"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/QuestoM/cortex-docs-sub005/cortex/telemetry"
)

// newStdoutTelemetry builds a telemetry.OTel backed by the stdout trace and
// metric exporters, for local/debug runs of cortex-sim — the same
// local-visibility role the teacher framework uses a stdout exporter for,
// without requiring a collector endpoint. The returned shutdown func flushes
// both providers and must be called before the process exits.
func newStdoutTelemetry() (telemetry.Telemetry, func() error, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))

	metricExporter, err := stdoutmetric.New()
	if err != nil {
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))

	shutdown := func() error {
		ctx := context.Background()
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}
	return telemetry.NewOTel(tp, mp), shutdown, nil
}
