package openaicompat

import (
	"encoding/json"
	"strings"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/reasoning"
)

// translateRequest converts the engine's context and capability definitions
// into a Chat Completions request.
func translateRequest(model string, messages []reasoning.Message, capabilities []api.CapabilityDefinition) *ChatCompletionRequest {
	chatMessages := make([]ChatMessage, 0, len(messages))
	for _, msg := range messages {
		cm := ChatMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, ChatToolCall{
				ID:   call.ID,
				Type: "function",
				Function: ChatFunctionCall{
					Name:      call.Capability,
					Arguments: string(call.Arguments),
				},
			})
		}
		chatMessages = append(chatMessages, cm)
	}

	var tools []ChatTool
	for _, def := range capabilities {
		tools = append(tools, ChatTool{
			Type: "function",
			Function: ChatToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Schema,
			},
		})
	}

	return &ChatCompletionRequest{
		Model:    model,
		Messages: chatMessages,
		Tools:    tools,
	}
}

// translateResponse converts a Chat Completions response into a decision.
// Tool calls win over content: a response carrying both is treated as a
// tool-call round.
func translateResponse(resp *ChatCompletionResponse) (*reasoning.Decision, error) {
	if len(resp.Choices) == 0 {
		return nil, errEmptyResponse
	}
	msg := resp.Choices[0].Message

	if len(msg.ToolCalls) == 0 {
		if strings.TrimSpace(msg.Content) == "" {
			return nil, errBlankAnswer
		}
		return &reasoning.Decision{Answer: msg.Content}, nil
	}

	calls := make([]reasoning.ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, reasoning.ToolCall{
			ID:         tc.ID,
			Capability: tc.Function.Name,
			Arguments:  json.RawMessage(tc.Function.Arguments),
		})
	}
	return &reasoning.Decision{ToolCalls: calls}, nil
}
