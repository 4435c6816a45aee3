// Package reasoning defines the contract between the turn engine and the
// natural-language reasoning backend. The engine hands the adapter a
// transcript window and the capability definitions; the adapter returns
// either a final answer or an ordered batch of capability calls.
package reasoning

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

// ErrUnavailable marks a reasoning backend failure: network error, timeout,
// or backend-side error. Adapters wrap the underlying cause with this
// sentinel so the engine can classify the turn without knowing transport
// details.
var ErrUnavailable = errors.New("reasoning backend unavailable")

// Role identifies the author of a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the context handed to the adapter.
type Message struct {
	Role    Role
	Content string

	// ToolCalls carries the calls an assistant message requested.
	ToolCalls []ToolCall

	// ToolCallID links a RoleTool result message to its originating call.
	ToolCallID string
}

// ToolCall is a reasoning-requested capability invocation.
type ToolCall struct {
	// ID is the backend-assigned call identifier, echoed back with the result.
	ID string

	// Capability is the requested capability name, exactly as produced by
	// the backend. The engine validates it against the registry.
	Capability string

	// Arguments is the raw argument JSON as produced by the backend.
	Arguments json.RawMessage
}

// Decision is one reasoning round's outcome: either a final Answer or a
// non-empty ordered batch of ToolCalls, never both.
type Decision struct {
	Answer    string
	ToolCalls []ToolCall
}

// Final reports whether the decision ends the turn.
func (d *Decision) Final() bool {
	return len(d.ToolCalls) == 0
}

// Adapter produces decisions from conversation context. Implementations
// must be safe for concurrent use; every call is independent.
type Adapter interface {
	Decide(ctx context.Context, messages []Message, capabilities []api.CapabilityDefinition) (*Decision, error)
}
