package otel

import (
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// NewMeterProvider creates a local meter provider with the given service name
// and reader. Tests pass a ManualReader to inspect recorded instruments.
func NewMeterProvider(serviceName string, reader sdkmetric.Reader) metric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(NewResource(serviceName)),
		sdkmetric.WithReader(reader),
	)
}

// NewResource creates a new OpenTelemetry resource with service name.
func NewResource(serviceName string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)
}
