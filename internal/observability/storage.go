package observability

import (
	"context"
	"time"

	"ratelimiter/internal/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedRateLimiter wraps a *ratelimit.RateLimiter with
// OpenTelemetry tracing and metrics around its two public operations.
// It never changes a Verdict or an error; it only observes them.
type InstrumentedRateLimiter struct {
	inner    *ratelimit.RateLimiter
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedRateLimiter wraps inner, recording a span, an
// operation-latency histogram, and an error counter for every call.
func NewInstrumentedRateLimiter(inner *ratelimit.RateLimiter) (*InstrumentedRateLimiter, error) {
	tracer := otel.Tracer("ratelimiter/engine")
	meter := otel.Meter("ratelimiter/engine")

	duration, err := meter.Float64Histogram(
		"ratelimiter.operation.duration",
		metric.WithDescription("Duration of rate limiter operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"ratelimiter.operation.errors",
		metric.WithDescription("Number of rate limiter operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedRateLimiter{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (r *InstrumentedRateLimiter) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := r.tracer.Start(ctx, "ratelimiter."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("ratelimiter.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (r *InstrumentedRateLimiter) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	r.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		r.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// CheckAndConsume wraps RateLimiter.CheckAndConsume with a span
// carrying the rate key and the resolved verdict.
func (r *InstrumentedRateLimiter) CheckAndConsume(ctx context.Context, tenant, client, action string, fallback *ratelimit.Quota) (ratelimit.Verdict, error) {
	ctx, span := r.startSpan(ctx, "CheckAndConsume",
		attribute.String("tenant_id", tenant),
		attribute.String("client_id", client),
		attribute.String("action_type", action),
	)
	start := time.Now()
	verdict, err := r.inner.CheckAndConsume(ctx, tenant, client, action, fallback)
	span.SetAttributes(
		attribute.String("ratelimiter.verdict_status", string(verdict.Status)),
		attribute.Bool("ratelimiter.allowed", verdict.Allowed),
	)
	r.record(ctx, span, "CheckAndConsume", start, err)
	return verdict, err
}

// Status wraps RateLimiter.Status with a span carrying the rate key.
func (r *InstrumentedRateLimiter) Status(ctx context.Context, tenant, client, action string, fallback *ratelimit.Quota) (remaining int, resetAt time.Time, currentUsage int, err error) {
	ctx, span := r.startSpan(ctx, "Status",
		attribute.String("tenant_id", tenant),
		attribute.String("client_id", client),
		attribute.String("action_type", action),
	)
	start := time.Now()
	remaining, resetAt, currentUsage, err = r.inner.Status(ctx, tenant, client, action, fallback)
	span.SetAttributes(
		attribute.Int("ratelimiter.remaining", remaining),
		attribute.Int("ratelimiter.current_usage", currentUsage),
	)
	r.record(ctx, span, "Status", start, err)
	return remaining, resetAt, currentUsage, err
}

func (r *InstrumentedRateLimiter) Start() {
	r.inner.Start()
}

func (r *InstrumentedRateLimiter) Shutdown(ctx context.Context) error {
	return r.inner.Shutdown(ctx)
}

func (r *InstrumentedRateLimiter) ActiveRateKeys() int {
	return r.inner.ActiveRateKeys()
}

func (r *InstrumentedRateLimiter) GlobalInFlight() int {
	return r.inner.GlobalInFlight()
}

func (r *InstrumentedRateLimiter) TenantQueueDepth(tenant string) int {
	return r.inner.TenantQueueDepth(tenant)
}

func (r *InstrumentedRateLimiter) ConfigStore() *ratelimit.ConfigStore {
	return r.inner.ConfigStore()
}
