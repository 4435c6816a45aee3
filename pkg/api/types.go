package api

import (
	"encoding/json"
	"time"
)

// MessageRole identifies the sender of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Conversation is an ordered transcript owned by a single principal.
// Conversations are created lazily on the first turn that does not reference
// an existing one, and are never deleted.
type Conversation struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single entry in a conversation transcript. Messages are
// immutable once persisted and totally ordered by (conversation_id,
// created_at, id); the ID breaks ties between equal timestamps.
//
// ToolCalls is populated only on assistant messages and records the
// capability invocations made while producing the answer.
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	Owner          string           `json:"owner"`
	Role           MessageRole      `json:"role"`
	Content        string           `json:"content"`
	ToolCalls      []ToolCallRecord `json:"tool_calls,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ToolCallRecord documents one capability invocation embedded in an
// assistant message. Exactly one of Result or Error is set. Arguments and
// Result are opaque payloads validated only by the capability's own contract.
type ToolCallRecord struct {
	Capability string          `json:"capability"`
	Arguments  json.RawMessage `json:"arguments"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *ToolCallError  `json:"error,omitempty"`
}

// ToolCallError is a structured per-call failure. A failed tool call is
// data, not a turn failure: the record is embedded in the assistant message
// and the reasoning step gets a chance to explain it.
type ToolCallError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Tool call error codes.
const (
	ToolErrorNotFound   = "not_found"
	ToolErrorValidation = "validation"
	ToolErrorTimeout    = "timeout"
	ToolErrorExecution  = "execution"
)

// CapabilityDefinition describes an available capability to the reasoning
// backend: its name, a human-readable description, and a JSON Schema for
// its arguments.
type CapabilityDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// TurnRequest is the inbound payload for one conversation turn. The
// principal is not part of the body; it arrives via the verified credential
// boundary.
type TurnRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// TurnResponse is the result of a committed turn.
type TurnResponse struct {
	ConversationID string           `json:"-"`
	Answer         string           `json:"-"`
	ToolCalls      []ToolCallRecord `json:"-"`
}

// MarshalJSON ensures tool_calls is always an array, never null.
func (r TurnResponse) MarshalJSON() ([]byte, error) {
	type wire struct {
		ConversationID string           `json:"conversation_id"`
		Answer         string           `json:"answer"`
		ToolCalls      []ToolCallRecord `json:"tool_calls"`
	}
	w := wire{
		ConversationID: r.ConversationID,
		Answer:         r.Answer,
		ToolCalls:      r.ToolCalls,
	}
	if w.ToolCalls == nil {
		w.ToolCalls = []ToolCallRecord{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON deserializes a TurnResponse.
func (r *TurnResponse) UnmarshalJSON(data []byte) error {
	var w struct {
		ConversationID string           `json:"conversation_id"`
		Answer         string           `json:"answer"`
		ToolCalls      []ToolCallRecord `json:"tool_calls"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.ConversationID = w.ConversationID
	r.Answer = w.Answer
	r.ToolCalls = w.ToolCalls
	return nil
}

// Item is a single entry on a principal's task list. It is the domain
// entity the built-in capabilities operate on.
type Item struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Item field bounds, shared by the capabilities and the items REST API.
const (
	MaxItemTitleLength       = 200
	MaxItemDescriptionLength = 1000
)
