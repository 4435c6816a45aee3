package items

import (
	"context"
	"encoding/json"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/capability"
	"github.com/taskchat-dev/taskchat/pkg/storage"
)

const completeSchema = `{
	"type": "object",
	"properties": {
		"item_id": {
			"type": "string",
			"description": "ID of the task to mark as completed"
		}
	},
	"required": ["item_id"],
	"additionalProperties": false
}`

// Complete marks a task item as completed.
type Complete struct {
	store storage.ItemStore
}

var _ capability.Provider = (*Complete)(nil)

func NewComplete(store storage.ItemStore) *Complete {
	return &Complete{store: store}
}

func (c *Complete) Definition() api.CapabilityDefinition {
	return api.CapabilityDefinition{
		Name:        "complete_item",
		Description: "Mark one of the user's tasks as completed.",
		Schema:      json.RawMessage(completeSchema),
	}
}

func (c *Complete) Execute(ctx context.Context, principal string, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		ItemID string `json:"item_id"`
	}
	if err := parseArgs(args, &in); err != nil {
		return nil, err
	}
	if in.ItemID == "" {
		return nil, capability.NewValidationError("item_id must not be empty")
	}

	completed := true
	item, err := c.store.UpdateItem(ctx, principal, in.ItemID, storage.ItemUpdate{Completed: &completed})
	if err != nil {
		return nil, toDomainError(err, in.ItemID)
	}
	return marshalView(item)
}
