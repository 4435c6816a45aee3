package engine

import (
	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/reasoning"
)

// buildContext assembles the reasoning context for a turn: the system
// prompt, the reconstructed transcript window (already limited and in
// chronological order), and the inbound user message last.
//
// Persisted tool-call records are not replayed; the transcript window
// carries only what was said. Tool traffic exists within a turn, not
// across turns.
func buildContext(systemPrompt string, history []api.Message, userMessage string) []reasoning.Message {
	messages := make([]reasoning.Message, 0, len(history)+2)

	messages = append(messages, reasoning.Message{
		Role:    reasoning.RoleSystem,
		Content: systemPrompt,
	})

	for _, msg := range history {
		role := reasoning.RoleUser
		if msg.Role == api.RoleAssistant {
			role = reasoning.RoleAssistant
		}
		messages = append(messages, reasoning.Message{
			Role:    role,
			Content: msg.Content,
		})
	}

	messages = append(messages, reasoning.Message{
		Role:    reasoning.RoleUser,
		Content: userMessage,
	})

	return messages
}
