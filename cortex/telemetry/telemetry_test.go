package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNoOpNeverPanics(t *testing.T) {
	var tel Telemetry = NoOp{}
	ctx, span := tel.StartSpan(context.Background(), "turn")
	require.NotNil(t, ctx)
	span.SetAttribute("k", "v")
	span.RecordError(nil)
	span.End()
	tel.RecordMetric("cortex.weights.updated", 1.0, map[string]string{"kind": "tool"})
}

func TestWeightUpdatedHelperDoesNotPanicOnNoOp(t *testing.T) {
	WeightUpdated(NoOp{}, "tool", "search", 0.8)
	ReorganizationCycle(NoOp{}, 0, 3)
	Quarantined(NoOp{}, "tool_q", 1000)
	ResolverLatency(NoOp{}, "gpt-5", 0)
}

// OTel must actually drive the MeterProvider and TracerProvider it was built
// with, not just satisfy the Telemetry interface: RecordMetric through a real
// sdkmetric.ManualReader must surface the instrument it created.
func TestOTelRecordMetricReachesRealMeterProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	tel := NewOTel(tp, mp)
	tel.RecordMetric("cortex.weights.updated", 0.75, map[string]string{"kind": "tool", "entity": "search"})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "cortex.weights.updated" {
				found = true
			}
		}
	}
	require.True(t, found, "expected cortex.weights.updated instrument to be recorded through the real MeterProvider")
}

// StartSpan/End must drive a real TracerProvider end to end: a span
// processor registered on the provider must observe exactly one ended span.
func TestOTelStartSpanReachesRealTracerProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	tel := NewOTel(tp, mp)
	ctx, span := tel.StartSpan(context.Background(), "turn")
	require.NotNil(t, ctx)
	span.SetAttribute("task_type", "coding")
	span.RecordError(nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, "turn", ended[0].Name())
}
