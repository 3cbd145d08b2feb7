package medagent

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"medagent/directory"
	"medagent/events"
	"medagent/observability"
)

type recordingSpan struct {
	events []events.Event
}

func (s *recordingSpan) Emit(e events.Event) { s.events = append(s.events, e) }

func (s *recordingSpan) Generation(name, model string, usage observability.UsageMetrics) {}

func (s *recordingSpan) End() {}

func streamOf(evts ...types.ResponseStream) <-chan types.ResponseStream {
	ch := make(chan types.ResponseStream, len(evts))
	for _, e := range evts {
		ch <- e
	}
	close(ch)
	return ch
}

func noStreamErr() error { return nil }

func TestConsumeStreamFullTurn(t *testing.T) {
	subArn := "arn:aws:bedrock:eu-central-1:1:agent-alias/SUB/1"
	a := New(nil, "AGENT", "ALIAS",
		WithResolver(directory.StaticResolver{subArn: "TrialsHelper"}))
	span := &recordingSpan{}

	chunkText := "The trial shows efficacy in adults.<sources></sources>"
	stream := streamOf(
		// Supervisor reasons, then a sub-agent reasons under it.
		&types.ResponseStreamMemberTrace{
			Value: orchestrationPart(
				&types.OrchestrationTraceMemberRationale{
					Value: types.Rationale{Text: aws.String("plan the lookup")},
				},
				"arn:a/SUP/1",
			),
		},
		&types.ResponseStreamMemberTrace{
			Value: orchestrationPart(
				&types.OrchestrationTraceMemberRationale{
					Value: types.Rationale{Text: aws.String("query the registry")},
				},
				"arn:a/SUP/1", subArn,
			),
		},
		&types.ResponseStreamMemberTrace{
			Value: orchestrationPart(
				&types.OrchestrationTraceMemberModelInvocationOutput{
					Value: types.OrchestrationModelInvocationOutput{
						Metadata: &types.Metadata{
							Usage: &types.Usage{InputTokens: aws.Int32(100), OutputTokens: aws.Int32(30)},
						},
					},
				},
			),
		},
		&types.ResponseStreamMemberFiles{
			Value: types.FilePart{Files: []types.OutputFile{
				outputFile("chart.png", "image/png", []byte("v1")),
			}},
		},
		&types.ResponseStreamMemberFiles{
			Value: types.FilePart{Files: []types.OutputFile{
				outputFile("chart.png", "image/png", []byte("v2")),
				outputFile("summary.html", "text/html", []byte("<p>ok</p>")),
			}},
		},
		&types.ResponseStreamMemberChunk{
			Value: types.PayloadPart{
				Bytes: []byte(chunkText),
				Attribution: &types.Attribution{
					Citations: []types.Citation{makeCitation(5, 16, "s3://kb/doc.pdf")},
				},
			},
		},
	)

	result, err := a.consumeStream(context.Background(), stream, noStreamErr, span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := "The trial shows ef [s3://kb/doc.pdf] "; result.Answer != want {
		t.Errorf("answer = %q, want %q", result.Answer, want)
	}
	if len(result.Citations) != 1 || result.Citations[0].URL != "s3://kb/doc.pdf" {
		t.Errorf("citations = %v", result.Citations)
	}
	if result.Stats.InputTokens != 100 || result.Stats.OutputTokens != 30 {
		t.Errorf("stats = %d/%d", result.Stats.InputTokens, result.Stats.OutputTokens)
	}
	if got := result.Stats.StepLabel(); got != "1.1" {
		t.Errorf("final step = %q", got)
	}
	if len(result.Images) != 1 || string(result.Images[0].Bytes) != "v2" {
		t.Errorf("images = %v", result.Images)
	}
	if len(result.HTMLFiles) != 1 || result.HTMLFiles[0].Name != "summary.html" {
		t.Errorf("html files = %v", result.HTMLFiles)
	}

	// Every span event also reached the observability span.
	names := map[string]int{}
	for _, e := range span.events {
		names[e.Name]++
	}
	if names[events.ReasoningStep] != 2 {
		t.Errorf("reasoning events = %d, want 2", names[events.ReasoningStep])
	}
	if names[events.CitationReferences] != 1 {
		t.Errorf("citation reference events = %d, want 1", names[events.CitationReferences])
	}
}

func TestConsumeStreamNoChunk(t *testing.T) {
	a := New(nil, "AGENT", "ALIAS")
	span := &recordingSpan{}

	result, err := a.consumeStream(context.Background(), streamOf(), noStreamErr, span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != fallbackAnswer {
		t.Errorf("answer = %q, want fallback", result.Answer)
	}
}

func TestConsumeStreamChunkWithoutAttribution(t *testing.T) {
	a := New(nil, "AGENT", "ALIAS")
	span := &recordingSpan{}

	stream := streamOf(&types.ResponseStreamMemberChunk{
		Value: types.PayloadPart{Bytes: []byte("plain answer<sources><REDACTED></sources>")},
	})
	result, err := a.consumeStream(context.Background(), stream, noStreamErr, span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != "plain answer" {
		t.Errorf("answer = %q", result.Answer)
	}
}

func TestConsumeStreamLaterChunkReplacesAnswer(t *testing.T) {
	a := New(nil, "AGENT", "ALIAS")
	span := &recordingSpan{}

	stream := streamOf(
		&types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: []byte("draft")}},
		&types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: []byte("final")}},
	)
	result, err := a.consumeStream(context.Background(), stream, noStreamErr, span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != "final" {
		t.Errorf("answer = %q, want final chunk only", result.Answer)
	}
}

func TestConsumeStreamError(t *testing.T) {
	a := New(nil, "AGENT", "ALIAS")
	span := &recordingSpan{}

	streamErr := func() error { return errors.New("connection reset") }
	if _, err := a.consumeStream(context.Background(), streamOf(), streamErr, span); err == nil {
		t.Fatal("expected stream error")
	}
}

func TestConsumeStreamContextCancelledKeepsPartial(t *testing.T) {
	a := New(nil, "AGENT", "ALIAS")
	span := &recordingSpan{}

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan types.ResponseStream)

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := a.consumeStream(ctx, ch, noStreamErr, span)
		done <- outcome{result, err}
	}()

	// Unbuffered send: the chunk has been consumed before we cancel.
	ch <- &types.ResponseStreamMemberChunk{
		Value: types.PayloadPart{Bytes: []byte("partial answer")},
	}
	cancel()

	got := <-done
	if !errors.Is(got.err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", got.err)
	}
	if got.result == nil {
		t.Fatal("expected the partial result")
	}
	if got.result.Answer != "partial answer" {
		t.Errorf("answer = %q, want the accumulated chunk", got.result.Answer)
	}
}

func TestConsumeStreamUnknownMemberSkipped(t *testing.T) {
	log := newWarnRecorder()
	a := New(nil, "AGENT", "ALIAS", WithLogger(log))
	span := &recordingSpan{}

	stream := streamOf(
		&types.UnknownUnionMember{Tag: "futureEventKind"},
		&types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: []byte("answer")}},
	)
	result, err := a.consumeStream(context.Background(), stream, noStreamErr, span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != "answer" {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(log.messages) != 1 {
		t.Fatalf("warnings = %v", log.messages)
	}
}

func TestInvokeValidation(t *testing.T) {
	a := New(nil, "AGENT", "ALIAS")

	if _, err := a.Invoke(context.Background(), Request{SessionID: "s"}); err == nil {
		t.Error("expected error for empty prompt")
	}
	if _, err := a.Invoke(context.Background(), Request{Prompt: "question"}); err == nil {
		t.Error("expected error for empty session id")
	}
}

func TestSessionStateFromDocuments(t *testing.T) {
	if state := sessionStateFromDocuments(nil); state != nil {
		t.Errorf("expected nil state, got %v", state)
	}

	state := sessionStateFromDocuments([]InputDocument{
		{Name: "report.pdf", MediaType: "application/pdf", Data: []byte("%PDF")},
	})
	if state == nil || len(state.Files) != 1 {
		t.Fatalf("state = %v", state)
	}
	file := state.Files[0]
	if *file.Name != "report.pdf" {
		t.Errorf("name = %q", *file.Name)
	}
	if file.UseCase != types.FileUseCaseChat {
		t.Errorf("use case = %q", file.UseCase)
	}
	if file.Source.SourceType != types.FileSourceTypeByteContent {
		t.Errorf("source type = %q", file.Source.SourceType)
	}
	if *file.Source.ByteContent.MediaType != "application/pdf" {
		t.Errorf("media type = %q", *file.Source.ByteContent.MediaType)
	}
}
