// Package items provides the task-item capabilities: add_item, list_items,
// complete_item, delete_item, and update_item. Each provider wraps the same
// storage.ItemStore and enforces the domain validation rules before touching
// storage.
package items

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/capability"
	"github.com/taskchat-dev/taskchat/pkg/storage"
)

// now is swappable for deterministic tests.
var now = func() time.Time { return time.Now().UTC() }

// itemView is the capability-facing projection of an item. The owner is
// implicit (it is always the calling principal) and never serialized.
type itemView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func viewOf(item *api.Item) itemView {
	return itemView{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		Completed:   item.Completed,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func marshalView(item *api.Item) (json.RawMessage, error) {
	out, err := json.Marshal(viewOf(item))
	if err != nil {
		return nil, fmt.Errorf("marshaling item: %w", err)
	}
	return out, nil
}

// validateTitle trims and bounds-checks a title.
func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", capability.NewValidationError("title must not be empty")
	}
	if len(title) > api.MaxItemTitleLength {
		return "", capability.NewValidationError(
			fmt.Sprintf("title must be at most %d characters", api.MaxItemTitleLength))
	}
	return title, nil
}

func validateDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if len(desc) > api.MaxItemDescriptionLength {
		return "", capability.NewValidationError(
			fmt.Sprintf("description must be at most %d characters", api.MaxItemDescriptionLength))
	}
	return desc, nil
}

func notFound(id string) *capability.DomainError {
	return capability.NewNotFoundError(fmt.Sprintf("no task found with ID %q", id))
}

// toDomainError maps storage errors to capability outcomes. ErrNotFound is
// domain data; everything else is an execution failure.
func toDomainError(err error, id string) error {
	if err == storage.ErrNotFound {
		return notFound(id)
	}
	return err
}

func parseArgs(args json.RawMessage, dst any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	dec := json.NewDecoder(strings.NewReader(string(args)))
	if err := dec.Decode(dst); err != nil {
		return capability.NewValidationError("arguments are not valid JSON for this capability")
	}
	return nil
}

// All returns the five item providers over the given store, in the order
// they are advertised to the reasoning adapter.
func All(store storage.ItemStore) []capability.Provider {
	return []capability.Provider{
		NewAdd(store),
		NewList(store),
		NewComplete(store),
		NewDelete(store),
		NewUpdate(store),
	}
}
