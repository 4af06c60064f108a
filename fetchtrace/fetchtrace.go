// Package fetchtrace wraps fetch functions in OpenTelemetry spans.
//
// Every attempt gets its own span, so retries show up as siblings. A nil
// *Config returns the function unchanged.
package fetchtrace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	fc "github.com/unkn0wn-root/fetchcache"
)

const instrumentation = "github.com/unkn0wn-root/fetchcache/fetchtrace"

type Config struct {
	// TracerProvider supplies the Tracer. Nil uses otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
}

func (c *Config) tracer() trace.Tracer {
	tp := c.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentation)
}

// Fetch traces fn as "fetchcache.fetch" tagged with the cache namespace
// and key.
func Fetch[V any](cfg *Config, cache, key string, fn fc.FetchFunc[V]) fc.FetchFunc[V] {
	if cfg == nil {
		return fn
	}
	return func(ctx context.Context) (V, error) {
		ctx, span := cfg.tracer().Start(ctx, "fetchcache.fetch",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("fetchcache.cache", cache),
				attribute.String("fetchcache.key", key),
			))
		defer span.End()

		v, err := fn(ctx)
		record(span, err)
		return v, err
	}
}

// Page traces fn as "fetchcache.page" and also records the page param.
func Page[P, R any](cfg *Config, cache, key string, fn fc.PageFetchFunc[P, R]) fc.PageFetchFunc[P, R] {
	if cfg == nil {
		return fn
	}
	return func(ctx context.Context, param P) (R, error) {
		ctx, span := cfg.tracer().Start(ctx, "fetchcache.page",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("fetchcache.cache", cache),
				attribute.String("fetchcache.key", key),
				attribute.String("fetchcache.page_param", fmt.Sprint(param)),
			))
		defer span.End()

		r, err := fn(ctx, param)
		record(span, err)
		return r, err
	}
}

// record marks failures as errors. Cancellation is expected churn and only
// gets an attribute.
func record(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case fc.IsCancellation(err):
		span.SetAttributes(attribute.Bool("fetchcache.cancelled", true))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
