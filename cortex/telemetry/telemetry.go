// Package telemetry wires OpenTelemetry metrics and tracing into the core's
// observable events (spec §1 ambient stack): weight updates, reorganization
// cycles, quarantine events, resolver latency, and per-turn decision
// spans. It mirrors the teacher's own `Telemetry`/`Span` interface shape
// (`core/interfaces.go`) so a caller can swap this for any other collector
// without touching the components that emit through it.
package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/QuestoM/cortex-docs-sub005/cortex"

// Telemetry is the interface session.Session accepts through its Options,
// matching the teacher's StartSpan/RecordMetric contract.
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span mirrors the teacher's Span interface.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// NoOp discards every metric and span, the default when no collector is
// configured.
type NoOp struct{}

func (NoOp) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, noOpSpan{}
}
func (NoOp) RecordMetric(string, float64, map[string]string) {}

type noOpSpan struct{}

func (noOpSpan) End()                             {}
func (noOpSpan) SetAttribute(string, interface{}) {}
func (noOpSpan) RecordError(error)                {}

// OTel adapts an OpenTelemetry MeterProvider and TracerProvider to the
// Telemetry interface, instantiating one Float64Gauge per metric name on
// first use.
type OTel struct {
	tracer trace.Tracer
	meter  metric.Meter

	gauges map[string]metric.Float64Gauge
}

// NewOTel constructs an OTel collector from the given providers. Passing
// nil for either uses the global otel provider, matching how a caller
// typically wires an SDK at process init.
func NewOTel(tp trace.TracerProvider, mp metric.MeterProvider) *OTel {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	return &OTel{
		tracer: tp.Tracer(instrumentationName),
		meter:  mp.Meter(instrumentationName),
		gauges: make(map[string]metric.Float64Gauge),
	}
}

func (o *OTel) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := o.tracer.Start(ctx, name)
	return ctx, otelSpan{span}
}

func (o *OTel) RecordMetric(name string, value float64, labels map[string]string) {
	gauge, err := o.gaugeFor(name)
	if err != nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	gauge.Record(context.Background(), value, metric.WithAttributes(attrs...))
}

func (o *OTel) gaugeFor(name string) (metric.Float64Gauge, error) {
	if g, ok := o.gauges[name]; ok {
		return g, nil
	}
	g, err := o.meter.Float64Gauge(name)
	if err != nil {
		return nil, err
	}
	o.gauges[name] = g
	return g, nil
}

type otelSpan struct{ span trace.Span }

func (s otelSpan) End() { s.span.End() }
func (s otelSpan) SetAttribute(key string, value interface{}) {
	s.span.SetAttributes(attribute.String(key, toString(value)))
}
func (s otelSpan) RecordError(err error) { s.span.RecordError(err) }

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// WeightUpdated emits the standard metric for a weight engine update (spec
// §4.1), named so a dashboard can group across tenants/sessions.
func WeightUpdated(t Telemetry, kind, entity string, value float64) {
	t.RecordMetric("cortex.weights.updated", value, map[string]string{"kind": kind, "entity": entity})
}

// ReorganizationCycle emits the duration and resulting territory count of
// one Cortical Map Reorganizer cycle (spec §4.2).
func ReorganizationCycle(t Telemetry, duration time.Duration, territoryCount int) {
	t.RecordMetric("cortex.territory.reorganize_ms", float64(duration.Milliseconds()), map[string]string{
		"territory_count": strconv.Itoa(territoryCount),
	})
}

// Quarantined emits an event when an entity crosses into quarantine (spec
// §4.6).
func Quarantined(t Telemetry, entity string, durationMs float64) {
	t.RecordMetric("cortex.router.quarantined", durationMs, map[string]string{"entity": entity})
}

// ResolverLatency emits the wall-clock cost of one Resolve call (spec §4.7).
func ResolverLatency(t Telemetry, model string, duration time.Duration) {
	t.RecordMetric("cortex.resolver.latency_ms", float64(duration.Milliseconds()), map[string]string{"model": model})
}

