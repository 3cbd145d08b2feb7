package events

import (
	"time"
)

// Level indicates the severity attached to a span event
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Span event names emitted while processing an agent invocation.
// One constant per structured observation the trace handlers produce.
const (
	ModelInput             = "agent-model-input"
	ModelOutput            = "agent-model-output"
	ReasoningStep          = "agent-reasoning-step"
	ToolInvocation         = "agent-tool-invocation"
	ToolResponse           = "agent-action-group-response"
	Collaborator           = "agent-agent-collaborator"
	CollaboratorResponse   = "agent-agent-collaborator-response"
	KnowledgeBaseLookup    = "agent-knowledge-base-lookup"
	KnowledgeBaseResponse  = "agent-knowledge-base-response"
	RepromptResponse       = "agent-reprompt-response"
	CodeInterpreter        = "agent-code-interpreter"
	PolicyAssessments      = "agent-policy-assessments"
	FailureTrace           = "agent-failure-trace"
	RoutingClassifierOut   = "agent-routing-classifier-output"
	PreProcessingStep      = "agent-preprocessing-step"
	PostProcessingStep     = "agent-postprocessing-step"
	CitationReferences     = "agent-citation-references"
	InvocationCosts        = "agent-costs"
)

// Event is one structured observability record. Events are write-only and
// append-only; consumers must not mutate Metadata after emission.
type Event struct {
	Name      string                 `json:"name"`
	Level     Level                  `json:"level"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// New creates an INFO-level event with the current timestamp
func New(name string, metadata map[string]interface{}) Event {
	return Event{
		Name:      name,
		Level:     LevelInfo,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// NewError creates an ERROR-level event with the current timestamp
func NewError(name string, metadata map[string]interface{}) Event {
	return Event{
		Name:      name,
		Level:     LevelError,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// Sink receives span events as they are produced. Implementations must be
// safe to call from the single stream-consuming goroutine and must never
// block on downstream delivery.
type Sink interface {
	Emit(event Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(event Event)

func (f SinkFunc) Emit(event Event) {
	f(event)
}

// Discard is a Sink that drops every event
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans one event out to several sinks in order
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(event Event) {
		for _, s := range sinks {
			s.Emit(event)
		}
	})
}
