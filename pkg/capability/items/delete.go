package items

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/capability"
	"github.com/taskchat-dev/taskchat/pkg/storage"
)

const deleteSchema = `{
	"type": "object",
	"properties": {
		"item_id": {
			"type": "string",
			"description": "ID of the task to delete"
		}
	},
	"required": ["item_id"],
	"additionalProperties": false
}`

// Delete removes a task item.
type Delete struct {
	store storage.ItemStore
}

var _ capability.Provider = (*Delete)(nil)

func NewDelete(store storage.ItemStore) *Delete {
	return &Delete{store: store}
}

func (d *Delete) Definition() api.CapabilityDefinition {
	return api.CapabilityDefinition{
		Name:        "delete_item",
		Description: "Delete one of the user's tasks permanently.",
		Schema:      json.RawMessage(deleteSchema),
	}
}

func (d *Delete) Execute(ctx context.Context, principal string, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		ItemID string `json:"item_id"`
	}
	if err := parseArgs(args, &in); err != nil {
		return nil, err
	}
	if in.ItemID == "" {
		return nil, capability.NewValidationError("item_id must not be empty")
	}

	if err := d.store.DeleteItem(ctx, principal, in.ItemID); err != nil {
		return nil, toDomainError(err, in.ItemID)
	}

	out, err := json.Marshal(struct {
		Deleted bool   `json:"deleted"`
		ID      string `json:"id"`
	}{Deleted: true, ID: in.ItemID})
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return out, nil
}
