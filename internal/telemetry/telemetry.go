// Package telemetry provides OpenTelemetry tracer plumbing for the engine.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/calyptra/redgraph"

// Tracer wraps an otel tracer with engine-level settings.
type Tracer struct {
	tracer trace.Tracer
	debug  bool
}

var (
	globalMu     sync.RWMutex
	globalTracer *Tracer
)

// Init configures the global tracer. Without an OpenTelemetry SDK installed
// the returned spans are no-ops, so Init is safe to call unconditionally.
func Init(debug bool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalTracer = &Tracer{
		tracer: otel.Tracer(instrumentationName),
		debug:  debug,
	}
}

// GetTracer returns the global tracer, initializing a default one if needed.
func GetTracer() *Tracer {
	globalMu.RLock()
	t := globalTracer
	globalMu.RUnlock()
	if t != nil {
		return t
	}
	Init(false)
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalTracer
}

// StartSpan starts a span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name)
}

// Debug reports whether verbose span attributes (task outputs) should be recorded.
func (t *Tracer) Debug() bool {
	return t.debug
}
