package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns the named tracer from the globally registered provider.
// The process wires an exporter (or leaves the no-op default) in main; domain
// code only ever asks for spans through here.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
