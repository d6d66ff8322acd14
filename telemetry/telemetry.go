package telemetry

import (
	"context"
	"os"
	"strings"

	"quoteflow/common"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	traceFilePrefix   = "traces-"
	traceFileSuffix   = ".json"
	maxTraceFileCount = 7
)

// GetOtelEnabled reports whether tracing is on. Unset means enabled.
func GetOtelEnabled() bool {
	val := os.Getenv("QF_OTEL_ENABLED")
	if val == "" {
		return true
	}
	lower := strings.ToLower(val)
	return lower != "false" && lower != "0"
}

// GetOtelEndpoint is an OTLP gRPC collector address. When empty, spans are
// written as json to a rotating file in the state home.
func GetOtelEndpoint() string {
	return os.Getenv("QF_OTEL_ENDPOINT")
}

// InitTracer installs the global tracer provider and returns its shutdown
// func.
func InitTracer(serviceName string) (func(context.Context) error, error) {
	if !GetOtelEnabled() {
		return func(ctx context.Context) error { return nil }, nil
	}

	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := newExporter(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if endpoint := GetOtelEndpoint(); endpoint != "" {
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
	}

	stateHome, err := common.GetStateHome()
	if err != nil {
		return nil, err
	}
	writer, err := common.NewRotatingFileWriter(stateHome, traceFilePrefix, traceFileSuffix, maxTraceFileCount)
	if err != nil {
		return nil, err
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithWriter(writer),
	)
	if err != nil {
		writer.Close()
		return nil, err
	}
	return exporter, nil
}
