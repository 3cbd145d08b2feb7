package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"

	"medagent/logger"
)

type fakeGetAgent struct {
	calls int
	name  string
	err   error
}

func (f *fakeGetAgent) GetAgent(_ context.Context, params *bedrockagent.GetAgentInput, _ ...func(*bedrockagent.Options)) (*bedrockagent.GetAgentOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockagent.GetAgentOutput{
		Agent: &agenttypes.Agent{
			AgentId:   params.AgentId,
			AgentName: aws.String(f.name),
		},
	}, nil
}

func TestResolveAlias(t *testing.T) {
	fake := &fakeGetAgent{name: "TrialsAgent"}
	dir := New(fake, logger.NewNoop())

	name, err := dir.ResolveAlias(context.Background(), "arn:aws:bedrock:us-east-1:123456789012:agent-alias/AGENT123/ALIAS456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "TrialsAgent" {
		t.Errorf("expected TrialsAgent, got %q", name)
	}
}

func TestResolveAliasCaches(t *testing.T) {
	fake := &fakeGetAgent{name: "TrialsAgent"}
	dir := New(fake, logger.NewNoop())

	arn := "arn:aws:bedrock:us-east-1:123456789012:agent-alias/AGENT123/ALIAS456"
	for i := 0; i < 3; i++ {
		if _, err := dir.ResolveAlias(context.Background(), arn); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 API call, got %d", fake.calls)
	}
}

func TestResolveAliasMalformedArn(t *testing.T) {
	dir := New(&fakeGetAgent{name: "x"}, logger.NewNoop())

	if _, err := dir.ResolveAlias(context.Background(), "not-an-arn"); err == nil {
		t.Fatal("expected error for malformed arn")
	}
}

func TestResolveAliasAPIError(t *testing.T) {
	fake := &fakeGetAgent{err: errors.New("access denied")}
	dir := New(fake, logger.NewNoop())

	if _, err := dir.ResolveAlias(context.Background(), "arn:aws:bedrock:us-east-1:123456789012:agent-alias/AGENT123/ALIAS456"); err == nil {
		t.Fatal("expected error from API failure")
	}
}

func TestStaticResolver(t *testing.T) {
	res := StaticResolver{"arn:x/A/1": "Helper"}

	name, err := res.ResolveAlias(context.Background(), "arn:x/A/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Helper" {
		t.Errorf("expected Helper, got %q", name)
	}
	if _, err := res.ResolveAlias(context.Background(), "arn:x/B/1"); err == nil {
		t.Fatal("expected error for unknown alias")
	}
}
