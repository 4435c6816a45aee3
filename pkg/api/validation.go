package api

import (
	"fmt"
	"strings"
)

// MaxMessageLength bounds the inbound user message.
const MaxMessageLength = 2000

// ValidateTurnRequest checks the inbound turn payload before any storage
// read happens. Returns a TurnError of kind invalid_request on failure.
func ValidateTurnRequest(req *TurnRequest) *TurnError {
	if req == nil {
		return NewInvalidRequestError("request body is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return NewInvalidRequestError("message must not be empty")
	}
	if len(req.Message) > MaxMessageLength {
		return NewInvalidRequestError(
			fmt.Sprintf("message exceeds %d characters", MaxMessageLength))
	}
	if req.ConversationID != "" && !ValidateConversationID(req.ConversationID) {
		return NewInvalidRequestError("conversation_id is malformed")
	}
	return nil
}

// ValidatePrincipal rejects absent or empty principals. The orchestrator
// calls this before any read occurs, as a second line of defense behind the
// auth middleware.
func ValidatePrincipal(principal string) *TurnError {
	if strings.TrimSpace(principal) == "" {
		return NewInvalidRequestError("authenticated principal is required")
	}
	return nil
}
