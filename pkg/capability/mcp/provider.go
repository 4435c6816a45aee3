package mcp

import (
	"context"
	"encoding/json"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/capability"
)

// principalArgument is the reserved argument key carrying the calling
// principal to MCP-hosted tools. A value supplied by the reasoning adapter
// is always overwritten.
const principalArgument = "principal"

// toolProvider adapts one discovered MCP tool to the capability contract.
type toolProvider struct {
	client *Client
	def    api.CapabilityDefinition
}

var _ capability.Provider = (*toolProvider)(nil)

func (p *toolProvider) Definition() api.CapabilityDefinition {
	return p.def
}

func (p *toolProvider) Execute(ctx context.Context, principal string, args json.RawMessage) (json.RawMessage, error) {
	parsed := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &parsed); err != nil {
			return nil, capability.NewValidationError("arguments are not valid JSON for this capability")
		}
	}
	parsed[principalArgument] = principal

	return p.client.callTool(ctx, p.def.Name, parsed)
}
