package observability

import (
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "whether-backend"

// Trace exporters accepted by NewTracerProvider.
const (
	TracesNone   = "none"
	TracesStdout = "stdout"
)

// NewTracerProvider builds the SDK tracer provider. With TracesNone spans are
// still sampled so trace ids reach the request logs, but nothing is exported.
// TracesStdout writes finished spans to w as JSON.
func NewTracerProvider(exporter string, w io.Writer) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	}

	switch exporter {
	case "", TracesNone:
	case TracesStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unknown traces exporter %q", exporter)
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

// InstallTracing makes tp the global provider and propagates W3C trace context.
func InstallTracing(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
}
