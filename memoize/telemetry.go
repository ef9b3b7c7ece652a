package memoize

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// instrumentationName is the otel scope name for this package.
const instrumentationName = "github.com/jonwraymond/funcache/memoize"

// telemetry records per-call metrics and spans for one engine.
type telemetry struct {
	tracer     trace.Tracer
	calls      metric.Int64Counter
	hits       metric.Int64Counter
	misses     metric.Int64Counter
	promotions metric.Int64Counter
	duration   metric.Float64Histogram
}

// newTelemetry builds instruments from the given providers. Nil providers
// fall back to noop implementations.
func newTelemetry(mp metric.MeterProvider, tp trace.TracerProvider) (*telemetry, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}

	meter := mp.Meter(instrumentationName)

	calls, err := meter.Int64Counter(
		"memoize.calls",
		metric.WithDescription("Total number of memoized calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	hits, err := meter.Int64Counter(
		"memoize.hits",
		metric.WithDescription("Calls answered from a cached entry"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := meter.Int64Counter(
		"memoize.misses",
		metric.WithDescription("Calls that recomputed the wrapped function"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	promotions, err := meter.Int64Counter(
		"memoize.promotions",
		metric.WithDescription("Entries promoted from the persistent store into memory"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"memoize.duration_ms",
		metric.WithDescription("Memoized call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracer:     tp.Tracer(instrumentationName),
		calls:      calls,
		hits:       hits,
		misses:     misses,
		promotions: promotions,
		duration:   duration,
	}, nil
}

// startSpan opens a span for one memoized call.
func (t *telemetry) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "memoize.call."+name,
		trace.WithAttributes(attribute.String("cache.name", name)))
}

// endSpan closes the span, recording hit status and any error.
func (t *telemetry) endSpan(span trace.Span, hit bool, err error) {
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// recordCall records the outcome of one memoized call.
func (t *telemetry) recordCall(ctx context.Context, name string, hit bool, tier string, elapsed time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.name", name),
	}
	if hit {
		attrs = append(attrs, attribute.String("cache.tier", tier))
	}
	opt := metric.WithAttributes(attrs...)

	t.calls.Add(ctx, 1, opt)
	if hit {
		t.hits.Add(ctx, 1, opt)
	} else {
		t.misses.Add(ctx, 1, opt)
	}
	t.duration.Record(ctx, float64(elapsed.Milliseconds()), opt)
}

// recordPromotion records one disk-to-memory promotion.
func (t *telemetry) recordPromotion(ctx context.Context, name string) {
	t.promotions.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.name", name)))
}
