package observability

import (
	"strings"

	"medagent/logger"
)

const (
	ProviderLangfuse = "langfuse"
	ProviderNoop     = "noop"
)

// GetTracer returns a Tracer implementation based on the provided provider string.
// Initialization failures fall back to the noop tracer so observability can
// never take an invocation down.
func GetTracer(provider string, log logger.Logger) Tracer {
	provider = strings.ToLower(provider)

	switch provider {
	case ProviderLangfuse:
		tracer, err := NewLangfuseTracer(log)
		if err != nil {
			log.Warn("langfuse tracer unavailable, falling back to noop", logger.Error(err))
			return NoopTracer{}
		}
		return tracer
	case ProviderNoop:
		return NoopTracer{}
	default:
		return NoopTracer{}
	}
}
