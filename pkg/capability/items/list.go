package items

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/capability"
	"github.com/taskchat-dev/taskchat/pkg/storage"
)

const listSchema = `{
	"type": "object",
	"properties": {
		"status": {
			"type": "string",
			"enum": ["all", "pending", "completed"],
			"description": "Filter tasks by completion state (default: all)"
		}
	},
	"additionalProperties": false
}`

// List returns the principal's task items, optionally filtered by status.
type List struct {
	store storage.ItemStore
}

var _ capability.Provider = (*List)(nil)

func NewList(store storage.ItemStore) *List {
	return &List{store: store}
}

func (l *List) Definition() api.CapabilityDefinition {
	return api.CapabilityDefinition{
		Name:        "list_items",
		Description: "List the user's tasks, optionally filtered by status (all, pending, or completed).",
		Schema:      json.RawMessage(listSchema),
	}
}

func (l *List) Execute(ctx context.Context, principal string, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Status string `json:"status"`
	}
	if err := parseArgs(args, &in); err != nil {
		return nil, err
	}

	filter := storage.ItemFilterAll
	if in.Status != "" {
		filter = storage.ItemFilter(in.Status)
		if !filter.Valid() {
			return nil, capability.NewValidationError(
				fmt.Sprintf("status must be one of all, pending, completed; got %q", in.Status))
		}
	}

	items, err := l.store.ListItems(ctx, principal, filter)
	if err != nil {
		return nil, err
	}

	views := make([]itemView, 0, len(items))
	for i := range items {
		views = append(views, viewOf(&items[i]))
	}

	out, err := json.Marshal(struct {
		Items []itemView `json:"items"`
		Count int        `json:"count"`
	}{Items: views, Count: len(views)})
	if err != nil {
		return nil, fmt.Errorf("marshaling items: %w", err)
	}
	return out, nil
}
