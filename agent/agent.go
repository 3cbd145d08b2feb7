// Package medagent drives Bedrock agent invocations end to end: it sends a
// prompt with optional session documents, consumes the response stream, and
// turns it into a citation-annotated answer plus extracted media, token
// statistics, and a span-event feed for observability.
package medagent

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"medagent/directory"
	"medagent/events"
	"medagent/logger"
	"medagent/observability"
)

// fallbackAnswer is returned when the stream ends without a chunk event.
const fallbackAnswer = "no answer available"

const defaultCostModel = "claude-3-5-sonnet-20240620"

// InvokeAgentAPI is the slice of the Bedrock agent runtime client the
// agent needs. Narrow on purpose so tests can fake it.
type InvokeAgentAPI interface {
	InvokeAgent(ctx context.Context, params *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error)
}

// Agent invokes one configured Bedrock agent alias.
type Agent struct {
	client       InvokeAgentAPI
	agentID      string
	agentAliasID string

	resolver  directory.Resolver
	tracer    observability.Tracer
	emitter   *events.Emitter
	logger    logger.Logger
	costModel string
}

// Option configures an Agent.
type Option func(*Agent)

// WithResolver sets the directory used to name sub-agents in traces.
func WithResolver(resolver directory.Resolver) Option {
	return func(a *Agent) { a.resolver = resolver }
}

// WithTracer sets the observability tracer. Defaults to a no-op tracer.
func WithTracer(tracer observability.Tracer) Option {
	return func(a *Agent) { a.tracer = tracer }
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log logger.Logger) Option {
	return func(a *Agent) { a.logger = log }
}

// WithObserver registers an observer for the local span-event feed.
func WithObserver(observer events.Observer) Option {
	return func(a *Agent) { a.emitter.AddObserver(observer) }
}

// WithCostModel overrides the model name reported on the per-invocation
// cost generation.
func WithCostModel(model string) Option {
	return func(a *Agent) { a.costModel = model }
}

// New creates an Agent for the given agent id and alias id.
func New(client InvokeAgentAPI, agentID, agentAliasID string, opts ...Option) *Agent {
	a := &Agent{
		client:       client,
		agentID:      agentID,
		agentAliasID: agentAliasID,
		tracer:       observability.NoopTracer{},
		emitter:      events.NewEmitter(),
		logger:       logger.NewNoop(),
		costModel:    defaultCostModel,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// InputDocument is a user-supplied file forwarded to the agent as session
// state, e.g. a PDF report the question refers to.
type InputDocument struct {
	Name      string
	MediaType string
	Data      []byte
}

// Request is one user turn.
type Request struct {
	SessionID string
	UserID    string
	Prompt    string
	Documents []InputDocument
}

// Result is the outcome of one agent invocation. TraceID ties the turn to
// its observability trace so session state can key media and feedback on it.
type Result struct {
	TraceID   string
	Answer    string
	Citations []CitedDocument
	Images    []MediaFile
	HTMLFiles []HTMLFile
	Stats     Stats
}

// Invoke sends the prompt to the agent and consumes the full response
// stream. The returned Result is complete: the answer carries citation
// annotations, media has been extracted and de-duplicated, and token and
// step statistics are final.
func (a *Agent) Invoke(ctx context.Context, req Request) (*Result, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("empty prompt")
	}
	if req.SessionID == "" {
		return nil, fmt.Errorf("empty session id")
	}

	traceID := a.tracer.StartTrace("", "agent-invocation", req.UserID, req.SessionID, req.Prompt)
	span := a.tracer.StartSpan(traceID, "agent-stream")
	defer span.End()

	input := &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(a.agentID),
		AgentAliasId: aws.String(a.agentAliasID),
		SessionId:    aws.String(req.SessionID),
		InputText:    aws.String(req.Prompt),
		EnableTrace:  aws.Bool(true),
	}
	if state := sessionStateFromDocuments(req.Documents); state != nil {
		input.SessionState = state
	}

	out, err := a.client.InvokeAgent(ctx, input)
	if err != nil {
		a.tracer.EndTrace(traceID, nil)
		return nil, fmt.Errorf("invoke agent: %w", err)
	}

	stream := out.GetStream()
	defer stream.Close()

	result, err := a.consumeStream(ctx, stream.Events(), stream.Err, span)
	if result != nil {
		result.TraceID = string(traceID)
	}
	if err != nil {
		a.tracer.EndTrace(traceID, nil)
		return result, err
	}

	span.Generation(events.InvocationCosts, a.costModel, observability.UsageMetrics{
		InputTokens:  int(result.Stats.InputTokens),
		OutputTokens: int(result.Stats.OutputTokens),
		TotalTokens:  int(result.Stats.TotalTokens()),
		Unit:         "TOKENS",
	})
	a.tracer.EndTrace(traceID, result.Answer)

	return result, nil
}

// consumeStream drains the event channel and assembles the Result. A chunk
// event replaces the answer rather than appending: the agent sends the full
// answer in its final chunk. streamErr is checked once the channel closes
// to distinguish a clean end of stream from a broken one. On ctx
// cancellation the partial Result accumulated so far is returned alongside
// ctx.Err().
func (a *Agent) consumeStream(ctx context.Context, eventCh <-chan types.ResponseStream, streamErr func() error, span observability.Span) (*Result, error) {
	stats := &Stats{}
	sink := events.Multi(span, a.emitter)
	processor := newTraceProcessor(stats, sink, a.resolver, a.logger)
	media := newMediaCollector(a.logger)

	answer := fallbackAnswer
	var citations []CitedDocument

	build := func() *Result {
		return &Result{
			Answer:    answer,
			Citations: citations,
			Images:    media.Images(),
			HTMLFiles: media.HTMLFiles(),
			Stats:     *stats,
		}
	}

	for {
		select {
		case <-ctx.Done():
			return build(), ctx.Err()

		case event, ok := <-eventCh:
			if !ok {
				if err := streamErr(); err != nil {
					return nil, fmt.Errorf("agent stream: %w", err)
				}
				result := build()
				a.logger.Info("agent stream complete",
					logger.Int("input_tokens", int(stats.InputTokens)),
					logger.Int("output_tokens", int(stats.OutputTokens)),
					logger.String("final_step", stats.StepLabel()),
					logger.Int("images", len(result.Images)),
					logger.Int("html_files", len(result.HTMLFiles)))
				return result, nil
			}

			switch e := event.(type) {
			case *types.ResponseStreamMemberChunk:
				text := string(e.Value.Bytes)
				if e.Value.Attribution != nil && len(e.Value.Attribution.Citations) > 0 {
					annotated, docs := annotateCitations(text, e.Value.Attribution.Citations)
					answer = annotated
					citations = append(citations, docs...)
					processor.handleCitationReferences(docs)
				} else {
					answer = stripSourceMarkers(text)
				}

			case *types.ResponseStreamMemberTrace:
				processor.Process(ctx, e.Value)

			case *types.ResponseStreamMemberFiles:
				media.Add(e.Value.Files)

			default:
				a.logger.Warn("skipping unknown stream event",
					logger.String("member_type", fmt.Sprintf("%T", event)))
			}
		}
	}
}

// sessionStateFromDocuments builds the session state carrying user files
// as inline byte content for the chat use case. Returns nil when there are
// no documents.
func sessionStateFromDocuments(docs []InputDocument) *types.SessionState {
	if len(docs) == 0 {
		return nil
	}
	files := make([]types.InputFile, 0, len(docs))
	for _, doc := range docs {
		files = append(files, types.InputFile{
			Name:    aws.String(doc.Name),
			UseCase: types.FileUseCaseChat,
			Source: &types.FileSource{
				SourceType: types.FileSourceTypeByteContent,
				ByteContent: &types.ByteContentFile{
					Data:      doc.Data,
					MediaType: aws.String(doc.MediaType),
				},
			},
		})
	}
	return &types.SessionState{Files: files}
}
