package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceVersion = "1.0.0"
)

// TelemetryConfig holds configuration for tracing
type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
}

// DefaultConfig returns default telemetry configuration. Tracing is off until
// explicitly enabled.
func DefaultConfig() *TelemetryConfig {
	return &TelemetryConfig{
		Enabled:     false,
		ServiceName: "statforge",
		Environment: "development",
	}
}

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
)

// InitTelemetry initializes the OpenTelemetry tracer provider. With an empty
// OTLP endpoint, spans are written to stdout, which keeps development
// environments dependency-free.
func InitTelemetry(config TelemetryConfig) error {
	if !config.Enabled {
		return nil
	}

	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	if config.OTLPEndpoint != "" {
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(config.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	mu.Lock()
	provider = tp
	mu.Unlock()

	return nil
}

// ShutdownTelemetry flushes and stops the tracer provider. Safe to call when
// telemetry was never initialized.
func ShutdownTelemetry(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider = nil
	mu.Unlock()

	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// GetHTTPTracer returns the tracer used for HTTP request spans.
func GetHTTPTracer() trace.Tracer {
	return otel.Tracer("http")
}

// GetAnalysisTracer returns the tracer used for analytical computations.
func GetAnalysisTracer() trace.Tracer {
	return otel.Tracer("analysis")
}
