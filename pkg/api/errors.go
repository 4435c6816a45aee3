package api

import "fmt"

// ErrorKind is the stable machine-readable classification of a turn-ending
// failure. Every kind is user-facing and non-fatal to the process: each
// failure mode ends exactly one turn.
type ErrorKind string

const (
	// ErrorKindInvalidRequest covers malformed input: empty message,
	// oversized message, or an absent principal.
	ErrorKindInvalidRequest ErrorKind = "invalid_request"

	// ErrorKindNotFound means the referenced conversation does not resolve
	// for this principal. Absent conversations and conversations owned by
	// someone else produce the same kind.
	ErrorKindNotFound ErrorKind = "not_found"

	// ErrorKindUnknownCapability means the reasoning step requested a tool
	// name not present in the registry.
	ErrorKindUnknownCapability ErrorKind = "unknown_capability"

	// ErrorKindReasoningUnavailable means the external reasoning call failed
	// or timed out. Nothing is persisted for this outcome.
	ErrorKindReasoningUnavailable ErrorKind = "reasoning_unavailable"

	// ErrorKindReasoningLoopExceeded means the reasoning/dispatch round
	// trips exceeded the configured bound.
	ErrorKindReasoningLoopExceeded ErrorKind = "reasoning_loop_exceeded"

	// ErrorKindConversationBusy means another turn currently holds this
	// conversation's lease. The caller should retry.
	ErrorKindConversationBusy ErrorKind = "conversation_busy"

	// ErrorKindPersistenceFailure means the atomic commit failed after a
	// final answer was produced. The answer was never durably recorded, so
	// it must not be returned as success.
	ErrorKindPersistenceFailure ErrorKind = "persistence_failure"
)

// TurnError is a classified, turn-ending failure. It always carries a
// human-readable message suitable for a chat surface in addition to the
// stable kind.
type TurnError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrorResponse wraps a TurnError as the top-level error body.
type ErrorResponse struct {
	Error *TurnError `json:"error"`
}

// NewInvalidRequestError creates a TurnError for malformed input.
func NewInvalidRequestError(message string) *TurnError {
	return &TurnError{Kind: ErrorKindInvalidRequest, Message: message}
}

// NewNotFoundError creates a TurnError for an unresolvable conversation.
func NewNotFoundError(message string) *TurnError {
	return &TurnError{Kind: ErrorKindNotFound, Message: message}
}

// NewUnknownCapabilityError creates a TurnError for an unregistered tool
// name. The message is deliberately generic; the requested name is logged,
// not echoed.
func NewUnknownCapabilityError() *TurnError {
	return &TurnError{
		Kind:    ErrorKindUnknownCapability,
		Message: "I can't do that yet.",
	}
}

// NewReasoningUnavailableError creates a TurnError for a failed or timed
// out reasoning call.
func NewReasoningUnavailableError() *TurnError {
	return &TurnError{
		Kind:      ErrorKindReasoningUnavailable,
		Message:   "I'm having trouble connecting right now. Please try again in a moment.",
		Retryable: true,
	}
}

// NewReasoningLoopExceededError creates a TurnError for a turn that hit the
// tool-call round-trip bound.
func NewReasoningLoopExceededError() *TurnError {
	return &TurnError{
		Kind:    ErrorKindReasoningLoopExceeded,
		Message: "That request took more steps than I'm able to handle at once. Try splitting it into smaller requests.",
	}
}

// NewConversationBusyError creates a TurnError for lease contention.
func NewConversationBusyError() *TurnError {
	return &TurnError{
		Kind:      ErrorKindConversationBusy,
		Message:   "This conversation is still processing your previous message. Please try again shortly.",
		Retryable: true,
	}
}

// NewPersistenceFailureError creates a TurnError for a failed turn commit.
func NewPersistenceFailureError() *TurnError {
	return &TurnError{
		Kind:      ErrorKindPersistenceFailure,
		Message:   "Your message could not be saved. Please resend it.",
		Retryable: true,
	}
}
