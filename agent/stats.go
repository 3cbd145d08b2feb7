package medagent

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

// Stats accumulates token usage and reasoning-step progress across one
// agent invocation. Steps are tracked as a major/minor pair: supervisor
// rationale advances the major step and resets the minor one, sub-agent
// rationale advances the minor step under the current major step.
type Stats struct {
	InputTokens  int32
	OutputTokens int32

	StepMajor int
	StepMinor int
}

// AddUsage folds a model invocation's token usage into the running totals.
// Nil usage or nil counters are ignored.
func (s *Stats) AddUsage(usage *types.Usage) {
	if usage == nil {
		return
	}
	if usage.InputTokens != nil {
		s.InputTokens += *usage.InputTokens
	}
	if usage.OutputTokens != nil {
		s.OutputTokens += *usage.OutputTokens
	}
}

// AdvanceMajorStep records a supervisor reasoning step: any sub-steps in
// flight are closed out and the major counter moves on.
func (s *Stats) AdvanceMajorStep() {
	s.StepMajor++
	s.StepMinor = 0
}

// AdvanceMinorStep records a sub-agent reasoning step under the current
// major step.
func (s *Stats) AdvanceMinorStep() {
	s.StepMinor++
}

// StepLabel renders the current step as "N" for supervisor steps and
// "N.M" for sub-agent steps.
func (s *Stats) StepLabel() string {
	if s.StepMinor == 0 {
		return fmt.Sprintf("%d", s.StepMajor)
	}
	return fmt.Sprintf("%d.%d", s.StepMajor, s.StepMinor)
}

// TotalTokens returns input plus output tokens.
func (s *Stats) TotalTokens() int32 {
	return s.InputTokens + s.OutputTokens
}
