package medagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"medagent/directory"
	"medagent/events"
	"medagent/logger"
)

// traceProcessor walks the trace side of an agent stream, folding token
// usage and step progress into Stats and emitting one span event per
// notable trace element.
type traceProcessor struct {
	stats    *Stats
	sink     events.Sink
	resolver directory.Resolver
	logger   logger.Logger
}

func newTraceProcessor(stats *Stats, sink events.Sink, resolver directory.Resolver, log logger.Logger) *traceProcessor {
	if sink == nil {
		sink = events.Discard
	}
	return &traceProcessor{stats: stats, sink: sink, resolver: resolver, logger: log}
}

// Process dispatches one trace part. The caller chain identifies which
// agent produced the trace: a chain longer than one entry means a
// sub-agent is speaking, and its alias ARN is resolved to a display name.
// Resolution failures fall back to the supervisor identity.
func (p *traceProcessor) Process(ctx context.Context, part types.TracePart) {
	agentName := directory.SupervisorName
	chainLength := len(part.CallerChain)
	if chainLength > 1 {
		if arn := callerAliasArn(part.CallerChain[1]); arn != "" && p.resolver != nil {
			name, err := p.resolver.ResolveAlias(ctx, arn)
			if err != nil {
				p.logger.Warn("failed to resolve sub-agent name",
					logger.String("agent_alias_arn", arn),
					logger.Error(err))
			} else {
				agentName = name
			}
		}
	}

	switch trace := part.Trace.(type) {
	case *types.TraceMemberRoutingClassifierTrace:
		p.handleRoutingClassifier(trace.Value)
	case *types.TraceMemberFailureTrace:
		p.handleFailure(trace.Value)
	case *types.TraceMemberGuardrailTrace:
		p.handleGuardrail(trace.Value)
	case *types.TraceMemberPreProcessingTrace:
		p.handlePreProcessing(trace.Value)
	case *types.TraceMemberOrchestrationTrace:
		p.handleOrchestration(trace.Value, agentName, chainLength)
	case *types.TraceMemberPostProcessingTrace:
		p.handlePostProcessing(trace.Value)
	default:
		p.logger.Warn("skipping unknown trace member",
			logger.String("member_type", fmt.Sprintf("%T", part.Trace)))
	}
}

func callerAliasArn(caller types.Caller) string {
	if c, ok := caller.(*types.CallerMemberAgentAliasArn); ok {
		return c.Value
	}
	return ""
}

func (p *traceProcessor) handleOrchestration(trace types.OrchestrationTrace, agentName string, chainLength int) {
	switch t := trace.(type) {
	case *types.OrchestrationTraceMemberModelInvocationInput:
		p.handleModelInput(t.Value)

	case *types.OrchestrationTraceMemberModelInvocationOutput:
		if t.Value.Metadata != nil {
			p.stats.AddUsage(t.Value.Metadata.Usage)
		}
		raw := ""
		if t.Value.RawResponse != nil && t.Value.RawResponse.Content != nil {
			raw = *t.Value.RawResponse.Content
		}
		p.sink.Emit(events.New(events.ModelOutput, map[string]any{
			"raw_resp": raw,
		}))

	case *types.OrchestrationTraceMemberRationale:
		p.handleReasoningStep(t.Value, agentName, chainLength)

	case *types.OrchestrationTraceMemberInvocationInput:
		p.handleInvocationInput(t.Value)

	case *types.OrchestrationTraceMemberObservation:
		p.handleObservation(t.Value)
	}
}

func (p *traceProcessor) handleModelInput(input types.ModelInvocationInput) {
	p.sink.Emit(events.New(events.ModelInput, map[string]any{
		"prompt_text": stringValue(input.Text),
	}))
}

// handleReasoningStep advances the step counter before emitting so the
// event carries the step number the user sees.
func (p *traceProcessor) handleReasoningStep(rationale types.Rationale, agentName string, chainLength int) {
	if chainLength <= 1 {
		p.stats.AdvanceMajorStep()
	} else {
		p.stats.AdvanceMinorStep()
	}

	p.sink.Emit(events.New(events.ReasoningStep, map[string]any{
		"step_number":    p.stats.StepLabel(),
		"agent_name":     agentName,
		"rationale_text": stringValue(rationale.Text),
	}))
}

func (p *traceProcessor) handleInvocationInput(input types.InvocationInput) {
	switch input.InvocationType {
	case types.InvocationTypeAgentCollaborator:
		if collab := input.AgentCollaboratorInvocationInput; collab != nil {
			text := ""
			if collab.Input != nil {
				text = stringValue(collab.Input.Text)
			}
			p.sink.Emit(events.New(events.Collaborator, map[string]any{
				"collaborator_name":  stringValue(collab.AgentCollaboratorName),
				"collaborator_input": text,
			}))
		}

	case types.InvocationTypeActionGroup:
		if action := input.ActionGroupInvocationInput; action != nil {
			toolName := stringValue(action.Function)
			if toolName == "" {
				toolName = stringValue(action.ApiPath)
			}
			params := make(map[string]string, len(action.Parameters))
			for _, param := range action.Parameters {
				params[stringValue(param.Name)] = stringValue(param.Value)
			}
			p.sink.Emit(events.New(events.ToolInvocation, map[string]any{
				"tool_name":  toolName,
				"parameters": params,
			}))
		}

	case types.InvocationTypeKnowledgeBase:
		if kb := input.KnowledgeBaseLookupInput; kb != nil {
			p.sink.Emit(events.New(events.KnowledgeBaseLookup, map[string]any{
				"kb_id":    stringValue(kb.KnowledgeBaseId),
				"kb_query": stringValue(kb.Text),
			}))
		}
	}

	if ci := input.CodeInterpreterInvocationInput; ci != nil && ci.Code != nil {
		p.sink.Emit(events.New(events.CodeInterpreter, map[string]any{
			"code": *ci.Code,
		}))
	}
}

func (p *traceProcessor) handleObservation(obs types.Observation) {
	switch obs.Type {
	case types.TypeAgentCollaborator:
		if out := obs.AgentCollaboratorInvocationOutput; out != nil {
			text := ""
			if out.Output != nil {
				text = stringValue(out.Output.Text)
			}
			p.sink.Emit(events.New(events.CollaboratorResponse, map[string]any{
				"collaborator_name":     stringValue(out.AgentCollaboratorName),
				"collaborator_response": text,
			}))
		}

	case types.TypeActionGroup:
		if out := obs.ActionGroupInvocationOutput; out != nil {
			p.sink.Emit(events.New(events.ToolResponse, map[string]any{
				"output_text": stringValue(out.Text),
			}))
		}

	case types.TypeKnowledgeBase:
		if out := obs.KnowledgeBaseLookupOutput; out != nil {
			refs := make([]map[string]string, 0, len(out.RetrievedReferences))
			for _, ref := range out.RetrievedReferences {
				entry := map[string]string{}
				if ref.Content != nil {
					entry["content"] = stringValue(ref.Content.Text)
				}
				if ref.Location != nil && ref.Location.S3Location != nil {
					entry["source"] = stringValue(ref.Location.S3Location.Uri)
				}
				refs = append(refs, entry)
			}
			p.sink.Emit(events.New(events.KnowledgeBaseResponse, map[string]any{
				"retrieved_references": refs,
			}))
		}

	case types.TypeReprompt:
		if out := obs.RepromptResponse; out != nil {
			p.sink.Emit(events.New(events.RepromptResponse, map[string]any{
				"source": string(out.Source),
				"text":   stringValue(out.Text),
			}))
		}
	}
}

func (p *traceProcessor) handlePreProcessing(trace types.PreProcessingTrace) {
	switch t := trace.(type) {
	case *types.PreProcessingTraceMemberModelInvocationInput:
		p.handleModelInput(t.Value)

	case *types.PreProcessingTraceMemberModelInvocationOutput:
		out := t.Value
		if parsed := out.ParsedResponse; parsed != nil {
			isValid := parsed.IsValid != nil && *parsed.IsValid
			p.sink.Emit(events.New(events.PreProcessingStep, map[string]any{
				"is_valid":  isValid,
				"rationale": stringValue(parsed.Rationale),
			}))
		}
		if out.Metadata != nil {
			p.stats.AddUsage(out.Metadata.Usage)
		}
	}
}

func (p *traceProcessor) handlePostProcessing(trace types.PostProcessingTrace) {
	switch t := trace.(type) {
	case *types.PostProcessingTraceMemberModelInvocationInput:
		p.handleModelInput(t.Value)

	case *types.PostProcessingTraceMemberModelInvocationOutput:
		out := t.Value
		if parsed := out.ParsedResponse; parsed != nil {
			p.sink.Emit(events.New(events.PostProcessingStep, map[string]any{
				"final_text": stringValue(parsed.Text),
			}))
		}
		if out.Metadata != nil {
			p.stats.AddUsage(out.Metadata.Usage)
		}
	}
}

func (p *traceProcessor) handleFailure(trace types.FailureTrace) {
	reason := "Unknown"
	if trace.FailureReason != nil {
		reason = *trace.FailureReason
	}
	p.sink.Emit(events.NewError(events.FailureTrace, map[string]any{
		"failure_reason": reason,
	}))
}

func (p *traceProcessor) handleGuardrail(trace types.GuardrailTrace) {
	for _, assessment := range trace.InputAssessments {
		p.emitPolicyAssessment("input", trace.Action, assessment)
	}
	for _, assessment := range trace.OutputAssessments {
		p.emitPolicyAssessment("output", trace.Action, assessment)
	}
}

// emitPolicyAssessment flattens one guardrail assessment into a single
// event covering all four policy families.
func (p *traceProcessor) emitPolicyAssessment(direction string, action types.GuardrailAction, assessment types.GuardrailAssessment) {
	meta := map[string]any{
		"direction": direction,
		"action":    string(action),
	}

	if tp := assessment.TopicPolicy; tp != nil {
		topics := make([]map[string]string, 0, len(tp.Topics))
		for _, topic := range tp.Topics {
			topics = append(topics, map[string]string{
				"name":   stringValue(topic.Name),
				"type":   string(topic.Type),
				"action": string(topic.Action),
			})
		}
		meta["topic_policy"] = topics
	}

	if cp := assessment.ContentPolicy; cp != nil {
		filters := make([]map[string]string, 0, len(cp.Filters))
		for _, filter := range cp.Filters {
			filters = append(filters, map[string]string{
				"type":       string(filter.Type),
				"confidence": string(filter.Confidence),
				"action":     string(filter.Action),
			})
		}
		meta["content_policy"] = filters
	}

	if wp := assessment.WordPolicy; wp != nil {
		words := make([]map[string]string, 0, len(wp.CustomWords)+len(wp.ManagedWordLists))
		for _, word := range wp.CustomWords {
			words = append(words, map[string]string{
				"match":  stringValue(word.Match),
				"action": string(word.Action),
			})
		}
		for _, word := range wp.ManagedWordLists {
			words = append(words, map[string]string{
				"type":   string(word.Type),
				"match":  stringValue(word.Match),
				"action": string(word.Action),
			})
		}
		meta["word_policy"] = words
	}

	if sp := assessment.SensitiveInformationPolicy; sp != nil {
		entities := make([]map[string]string, 0, len(sp.PiiEntities)+len(sp.Regexes))
		for _, entity := range sp.PiiEntities {
			entities = append(entities, map[string]string{
				"type":   string(entity.Type),
				"match":  stringValue(entity.Match),
				"action": string(entity.Action),
			})
		}
		for _, regex := range sp.Regexes {
			entities = append(entities, map[string]string{
				"name":   stringValue(regex.Name),
				"action": string(regex.Action),
			})
		}
		meta["sensitive_information_policy"] = entities
	}

	p.sink.Emit(events.New(events.PolicyAssessments, meta))
}

func (p *traceProcessor) handleRoutingClassifier(trace types.RoutingClassifierTrace) {
	out, ok := trace.(*types.RoutingClassifierTraceMemberModelInvocationOutput)
	if !ok {
		return
	}
	if out.Value.Metadata != nil {
		p.stats.AddUsage(out.Value.Metadata.Usage)
	}
	if out.Value.RawResponse == nil || out.Value.RawResponse.Content == nil {
		return
	}
	classification, ok := parseRoutingClassification(*out.Value.RawResponse.Content)
	if !ok {
		p.logger.Debug("could not parse routing classification response")
		return
	}
	p.sink.Emit(events.New(events.RoutingClassifierOut, map[string]any{
		"classification": classification,
	}))
}

// parseRoutingClassification extracts the routing decision from the
// classifier's raw model response, which arrives as a serialized message
// with an <a>-wrapped answer in its first content block.
func parseRoutingClassification(rawContent string) (string, bool) {
	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(rawContent), &resp); err != nil {
		return "", false
	}
	if len(resp.Content) == 0 {
		return "", false
	}
	classification := resp.Content[0].Text
	classification = strings.ReplaceAll(classification, "<a>", "")
	classification = strings.ReplaceAll(classification, "</a>", "")
	return classification, true
}

// handleCitationReferences emits the list of knowledge-base URIs backing
// the final answer.
func (p *traceProcessor) handleCitationReferences(docs []CitedDocument) {
	if len(docs) == 0 {
		return
	}
	uris := make([]string, 0, len(docs))
	for _, doc := range docs {
		uris = append(uris, doc.URL)
	}
	p.sink.Emit(events.New(events.CitationReferences, map[string]any{
		"uri_list": uris,
	}))
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
