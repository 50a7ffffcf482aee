package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

const instrumentationName = "github.com/felixgeelhaar/wsrpc"

// Metric instrument names.
const (
	MetricRequests        = "rpc.server.requests"
	MetricRequestDuration = "rpc.server.request.duration"
	MetricErrors          = "rpc.server.errors"
)

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	skipMethods    map[string]bool
}

// WithTracerProvider sets a custom tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) {
		c.meterProvider = mp
	}
}

// WithOTelServiceName sets the service name attribute.
func WithOTelServiceName(name string) OTelOption {
	return func(c *otelConfig) {
		c.serviceName = name
	}
}

// WithOTelSkipMethods excludes methods from tracing and metrics.
func WithOTelSkipMethods(methods ...string) OTelOption {
	return func(c *otelConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// OTel returns middleware that records a span per call plus request
// count, latency, and error count metrics.
func OTel(opts ...OTelOption) Middleware {
	cfg := &otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		serviceName:    "wsrpc",
		skipMethods:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(instrumentationName)
	meter := cfg.meterProvider.Meter(instrumentationName)

	requestCounter, _ := meter.Int64Counter(
		MetricRequests,
		metric.WithDescription("Total number of JSON-RPC calls"),
		metric.WithUnit("{request}"),
	)
	requestDuration, _ := meter.Float64Histogram(
		MetricRequestDuration,
		metric.WithDescription("Duration of JSON-RPC calls"),
		metric.WithUnit("ms"),
	)
	errorCounter, _ := meter.Int64Counter(
		MetricErrors,
		metric.WithDescription("Total number of failed JSON-RPC calls"),
		metric.WithUnit("{error}"),
	)

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (any, error) {
			if cfg.skipMethods[req.Method] {
				return next(ctx, req)
			}

			attrs := []attribute.KeyValue{
				attribute.String("rpc.system", "jsonrpc"),
				attribute.String("rpc.method", req.Method),
				attribute.String("service.name", cfg.serviceName),
			}

			ctx, span := tracer.Start(ctx, "jsonrpc."+req.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			if reqID := RequestIDFromContext(ctx); reqID != "" {
				span.SetAttributes(attribute.String("rpc.request_id", reqID))
			}
			if connID := protocol.GetRequestMeta(ctx, protocol.MetaConnectionID); connID != "" {
				span.SetAttributes(attribute.String("rpc.connection_id", connID))
			}

			start := time.Now()
			requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

			result, err := next(ctx, req)

			elapsed := float64(time.Since(start).Microseconds()) / 1000
			requestDuration.Record(ctx, elapsed, metric.WithAttributes(attrs...))

			if err == nil {
				span.SetStatus(codes.Ok, "")
				return result, nil
			}

			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			var rpcErr *protocol.Error
			if errors.As(err, &rpcErr) {
				span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", rpcErr.Code))
				attrs = append(attrs, attribute.Int("rpc.jsonrpc.error_code", rpcErr.Code))
			}
			errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
			return result, err
		}
	}
}

// SpanFromContext returns the current span, or a no-op span.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
