// Package directory resolves Bedrock agent alias ARNs to display names.
package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"

	"medagent/logger"
)

// SupervisorName is the fallback identity used when a caller chain does not
// name a sub-agent or when resolution fails.
const SupervisorName = "Supervisor"

const defaultLookupTimeout = 3 * time.Second

// Resolver maps an agent alias ARN to a human-readable agent name.
// Implementations must treat failure as non-fatal: callers fall back to
// SupervisorName.
type Resolver interface {
	ResolveAlias(ctx context.Context, agentAliasArn string) (string, error)
}

// GetAgentAPI is the slice of the Bedrock control-plane client we need
type GetAgentAPI interface {
	GetAgent(ctx context.Context, params *bedrockagent.GetAgentInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.GetAgentOutput, error)
}

// BedrockDirectory resolves agent names via the bedrock-agent GetAgent API.
// Results are cached per agent id for the lifetime of the directory; the
// lookup sits on the stream-consuming path, so it carries its own short
// timeout.
type BedrockDirectory struct {
	client  GetAgentAPI
	timeout time.Duration
	logger  logger.Logger

	mu    sync.Mutex
	cache map[string]string
}

// New creates a directory over the given Bedrock control-plane client
func New(client GetAgentAPI, log logger.Logger) *BedrockDirectory {
	return &BedrockDirectory{
		client:  client,
		timeout: defaultLookupTimeout,
		logger:  log,
		cache:   make(map[string]string),
	}
}

// ResolveAlias resolves an agent alias ARN to the agent's display name
func (d *BedrockDirectory) ResolveAlias(ctx context.Context, agentAliasArn string) (string, error) {
	agentID, err := agentIDFromAliasArn(agentAliasArn)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	if name, ok := d.cache[agentID]; ok {
		d.mu.Unlock()
		return name, nil
	}
	d.mu.Unlock()

	lookupCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.client.GetAgent(lookupCtx, &bedrockagent.GetAgentInput{
		AgentId: aws.String(agentID),
	})
	if err != nil {
		return "", fmt.Errorf("get agent %s: %w", agentID, err)
	}
	if out.Agent == nil || out.Agent.AgentName == nil {
		return "", fmt.Errorf("agent %s has no name", agentID)
	}

	name := *out.Agent.AgentName
	d.mu.Lock()
	d.cache[agentID] = name
	d.mu.Unlock()

	d.logger.Debug("resolved sub-agent name",
		logger.String("agent_id", agentID),
		logger.String("agent_name", name))

	return name, nil
}

// agentIDFromAliasArn extracts the agent id from an alias ARN of the form
// arn:aws:bedrock:<region>:<account>:agent-alias/<agentId>/<aliasId>
func agentIDFromAliasArn(arn string) (string, error) {
	parts := strings.Split(arn, "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("malformed agent alias arn %q", arn)
	}
	return parts[1], nil
}

// StaticResolver resolves from a fixed map; useful in tests and offline runs
type StaticResolver map[string]string

func (s StaticResolver) ResolveAlias(_ context.Context, agentAliasArn string) (string, error) {
	if name, ok := s[agentAliasArn]; ok {
		return name, nil
	}
	return "", fmt.Errorf("unknown agent alias %q", agentAliasArn)
}
