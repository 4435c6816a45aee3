package engine

import "time"

// defaultSystemPrompt frames the reasoning backend as a task assistant and
// pins down how capability results should be relayed.
const defaultSystemPrompt = `You are a friendly task management assistant. ` +
	`You help the user manage their personal task list: adding tasks, listing them, ` +
	`marking them complete, updating them, and deleting them. ` +
	`Use the available tools to read or change the task list; never invent task data. ` +
	`When a tool reports an error, explain it to the user in plain language. ` +
	`Keep answers short and conversational.`

// Config holds engine tuning knobs. The zero value is usable; unset fields
// fall back to defaults.
type Config struct {
	// HistoryWindow is the number of most recent messages reconstructed
	// into the reasoning context (default: 20).
	HistoryWindow int

	// MaxToolRounds bounds the reasoning loop: after this many tool-call
	// rounds without a final answer the turn fails (default: 5).
	MaxToolRounds int

	// CapabilityTimeout bounds each individual capability call
	// (default: 30 seconds).
	CapabilityTimeout time.Duration

	// SystemPrompt overrides the built-in system prompt when non-empty.
	SystemPrompt string
}

func (c Config) historyWindow() int {
	if c.HistoryWindow > 0 {
		return c.HistoryWindow
	}
	return 20
}

func (c Config) maxToolRounds() int {
	if c.MaxToolRounds > 0 {
		return c.MaxToolRounds
	}
	return 5
}

func (c Config) capabilityTimeout() time.Duration {
	if c.CapabilityTimeout > 0 {
		return c.CapabilityTimeout
	}
	return 30 * time.Second
}

func (c Config) systemPrompt() string {
	if c.SystemPrompt != "" {
		return c.SystemPrompt
	}
	return defaultSystemPrompt
}
