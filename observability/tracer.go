package observability

import (
	"medagent/events"
)

// TraceID represents a unique identifier for a trace across one agent invocation.
type TraceID string

// UsageMetrics holds token usage information for LLM calls (mirrors Langfuse schema).
// All fields are optional; zero-values mean unavailable.
// Langfuse will automatically calculate costs based on model name and token usage.
type UsageMetrics struct {
	InputTokens  int    `json:"input,omitempty"`
	OutputTokens int    `json:"output,omitempty"`
	TotalTokens  int    `json:"total,omitempty"`
	Unit         string `json:"unit,omitempty"` // e.g. "TOKENS"
}

// Span is one open observation inside a trace. It accepts the structured
// span events produced while the agent stream is consumed, plus the final
// generation record carrying token usage.
type Span interface {
	events.Sink

	// Generation records an LLM generation observation with usage metrics
	Generation(name, model string, usage UsageMetrics)

	// End closes the span
	End()
}

// Tracer defines the interface for observability tracers
type Tracer interface {
	// StartTrace opens a new trace and returns its ID. A caller-supplied id
	// may be passed to correlate with an externally created trace; empty
	// means generate one.
	StartTrace(id, name, userID, sessionID string, input interface{}) TraceID

	// EndTrace records the final output of a trace
	EndTrace(traceID TraceID, output interface{})

	// StartSpan opens an observation under the given trace
	StartSpan(traceID TraceID, name string) Span

	// Flush blocks until pending events have been delivered (best effort)
	Flush()

	// Shutdown stops background delivery and releases resources
	Shutdown()
}

// NoopTracer is a tracer that does nothing
type NoopTracer struct{}

func (NoopTracer) StartTrace(id, name, userID, sessionID string, input interface{}) TraceID {
	return ""
}

func (NoopTracer) EndTrace(traceID TraceID, output interface{}) {}

func (NoopTracer) StartSpan(traceID TraceID, name string) Span {
	return noopSpan{}
}

func (NoopTracer) Flush() {}

func (NoopTracer) Shutdown() {}

type noopSpan struct{}

func (noopSpan) Emit(events.Event) {}

func (noopSpan) Generation(name, model string, usage UsageMetrics) {}

func (noopSpan) End() {}
