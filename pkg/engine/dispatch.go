package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/capability"
	"github.com/taskchat-dev/taskchat/pkg/reasoning"
)

// dispatchRound executes one reasoning-requested batch of capability calls
// in the order the backend produced them. Each call gets its own timeout.
// Failures are data: every outcome, success or error, becomes both a
// ToolCallRecord for the transcript and a tool message for the next
// reasoning round.
func (e *Engine) dispatchRound(ctx context.Context, principal string, calls []reasoning.ToolCall) ([]api.ToolCallRecord, []reasoning.Message) {
	records := make([]api.ToolCallRecord, 0, len(calls))
	feedback := make([]reasoning.Message, 0, len(calls)+1)

	// The assistant message carrying the calls precedes the tool results,
	// per Chat Completions convention.
	feedback = append(feedback, reasoning.Message{
		Role:      reasoning.RoleAssistant,
		ToolCalls: calls,
	})

	for _, call := range calls {
		record, content := e.dispatchCall(ctx, principal, call)
		records = append(records, record)
		feedback = append(feedback, reasoning.Message{
			Role:       reasoning.RoleTool,
			ToolCallID: call.ID,
			Content:    content,
		})
	}

	return records, feedback
}

// dispatchCall executes a single capability call and returns its transcript
// record plus the content fed back to the reasoning step.
func (e *Engine) dispatchCall(ctx context.Context, principal string, call reasoning.ToolCall) (api.ToolCallRecord, string) {
	record := api.ToolCallRecord{
		Capability: call.Capability,
		Arguments:  normalizeArguments(call.Arguments),
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.capabilityTimeout())
	defer cancel()

	result, err := e.registry.Execute(callCtx, call.Capability, principal, call.Arguments)
	if err != nil {
		record.Error = classifyCallError(callCtx, err)
		slog.Info("capability call failed",
			"capability", call.Capability,
			"code", record.Error.Code,
			"error", record.Error.Message,
		)
		return record, errorFeedback(record.Error)
	}

	record.Result = result
	return record, string(result)
}

// classifyCallError maps a capability execution error to a structured
// per-call error.
func classifyCallError(ctx context.Context, err error) *api.ToolCallError {
	var de *capability.DomainError
	if errors.As(err, &de) {
		return &api.ToolCallError{Code: de.Code, Message: de.Message}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &api.ToolCallError{
			Code:    api.ToolErrorTimeout,
			Message: "the operation took too long and was cancelled",
		}
	}
	return &api.ToolCallError{
		Code:    api.ToolErrorExecution,
		Message: err.Error(),
	}
}

// errorFeedback serializes a call error as the tool message content so the
// reasoning step can explain it to the user.
func errorFeedback(callErr *api.ToolCallError) string {
	out, err := json.Marshal(struct {
		Error *api.ToolCallError `json:"error"`
	}{Error: callErr})
	if err != nil {
		return `{"error":{"code":"execution","message":"internal error"}}`
	}
	return string(out)
}

// normalizeArguments guarantees the persisted arguments are valid JSON.
// A backend occasionally emits empty or malformed argument strings; the
// transcript records them as an empty object alongside whatever the
// capability reported.
func normalizeArguments(args json.RawMessage) json.RawMessage {
	if len(args) == 0 || !json.Valid(args) {
		return json.RawMessage(`{}`)
	}
	return args
}
