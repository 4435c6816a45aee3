package items

import (
	"context"
	"encoding/json"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/capability"
	"github.com/taskchat-dev/taskchat/pkg/storage"
)

const updateSchema = `{
	"type": "object",
	"properties": {
		"item_id": {
			"type": "string",
			"description": "ID of the task to update"
		},
		"title": {
			"type": "string",
			"description": "New title (1-200 characters)"
		},
		"description": {
			"type": "string",
			"description": "New description (up to 1000 characters)"
		}
	},
	"required": ["item_id"],
	"additionalProperties": false
}`

// Update changes a task item's title and/or description.
type Update struct {
	store storage.ItemStore
}

var _ capability.Provider = (*Update)(nil)

func NewUpdate(store storage.ItemStore) *Update {
	return &Update{store: store}
}

func (u *Update) Definition() api.CapabilityDefinition {
	return api.CapabilityDefinition{
		Name:        "update_item",
		Description: "Update the title or description of one of the user's tasks.",
		Schema:      json.RawMessage(updateSchema),
	}
}

func (u *Update) Execute(ctx context.Context, principal string, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		ItemID      string  `json:"item_id"`
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}
	if err := parseArgs(args, &in); err != nil {
		return nil, err
	}
	if in.ItemID == "" {
		return nil, capability.NewValidationError("item_id must not be empty")
	}
	if in.Title == nil && in.Description == nil {
		return nil, capability.NewValidationError("provide a new title or description")
	}

	upd := storage.ItemUpdate{}
	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		upd.Title = &title
	}
	if in.Description != nil {
		desc, err := validateDescription(*in.Description)
		if err != nil {
			return nil, err
		}
		upd.Description = &desc
	}

	item, err := u.store.UpdateItem(ctx, principal, in.ItemID, upd)
	if err != nil {
		return nil, toDomainError(err, in.ItemID)
	}
	return marshalView(item)
}
