package items

import (
	"context"
	"encoding/json"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/capability"
	"github.com/taskchat-dev/taskchat/pkg/storage"
)

const addSchema = `{
	"type": "object",
	"properties": {
		"title": {
			"type": "string",
			"description": "Short title for the task (1-200 characters)"
		},
		"description": {
			"type": "string",
			"description": "Optional longer description (up to 1000 characters)"
		}
	},
	"required": ["title"],
	"additionalProperties": false
}`

// Add creates a new task item for the calling principal.
type Add struct {
	store storage.ItemStore
}

var _ capability.Provider = (*Add)(nil)

func NewAdd(store storage.ItemStore) *Add {
	return &Add{store: store}
}

func (a *Add) Definition() api.CapabilityDefinition {
	return api.CapabilityDefinition{
		Name:        "add_item",
		Description: "Add a new task to the user's task list.",
		Schema:      json.RawMessage(addSchema),
	}
}

func (a *Add) Execute(ctx context.Context, principal string, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := parseArgs(args, &in); err != nil {
		return nil, err
	}

	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	desc, err := validateDescription(in.Description)
	if err != nil {
		return nil, err
	}

	ts := now()
	item := &api.Item{
		ID:          api.NewItemID(),
		Owner:       principal,
		Title:       title,
		Description: desc,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := a.store.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return marshalView(item)
}
