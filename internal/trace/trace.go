// Package trace owns the process-wide OpenTelemetry tracer provider.
package trace

import (
	"context"
	"os"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "findash"

// Config selects whether spans are recorded and how many are kept.
type Config struct {
	Enabled     bool
	PrettyPrint bool
	SampleRatio float64 // fraction of root spans kept, 1 keeps all
}

var (
	mu             sync.Mutex
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
)

// ConfigFromEnv reads LOG_TRACING_ENABLED, TRACE_PRETTY and TRACE_SAMPLE_RATIO.
func ConfigFromEnv() Config {
	cfg := Config{
		Enabled:     getEnv("LOG_TRACING_ENABLED", "true") == "true",
		PrettyPrint: getEnv("TRACE_PRETTY", "false") == "true",
		SampleRatio: 1,
	}
	if r, err := strconv.ParseFloat(os.Getenv("TRACE_SAMPLE_RATIO"), 64); err == nil && r >= 0 && r <= 1 {
		cfg.SampleRatio = r
	}
	return cfg
}

// Init installs the tracer provider described by the environment. Calling it
// again after a successful Init is a no-op.
func Init() error {
	return InitWithConfig(ConfigFromEnv())
}

func InitWithConfig(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if tracerProvider != nil {
		return nil
	}
	if !cfg.Enabled {
		return nil
	}

	var opts []stdouttrace.Option
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = tracerProvider.Tracer(serviceName)
	return nil
}

// Shutdown flushes pending spans and releases the provider.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := tracerProvider
	tracerProvider, tracer = nil, nil
	mu.Unlock()

	if tp != nil {
		return tp.Shutdown(ctx)
	}
	return nil
}

// StartSpan starts a span, or returns the span already in ctx when tracing
// is off.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	mu.Lock()
	t := tracer
	mu.Unlock()

	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.Start(ctx, spanName, opts...)
}

// Fail marks span as failed with err.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// GetTraceFields returns a fresh field map seeded with the trace and span ids
// of ctx, if any. Callers add their own fields to it.
func GetTraceFields(ctx context.Context) map[string]any {
	fields := make(map[string]any)
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return fields
	}
	fields["trace_id"] = sc.TraceID().String()
	fields["span_id"] = sc.SpanID().String()
	return fields
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
