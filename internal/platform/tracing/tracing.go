// Package tracing builds the process-wide OpenTelemetry tracer used to
// wrap the ingestion pipeline with spans. No exporter is wired by default
// (spans are created and ended but go nowhere); the TracerProvider is
// registered as the global provider, where an exporter can be attached
// before the first span starts.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// New builds a TracerProvider tagged with serviceName, registers it as the
// global provider, and returns the tracer callers should use for ingestion
// spans.
func New(serviceName string) trace.Tracer {
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", serviceName),
	)
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp.Tracer(serviceName)
}
