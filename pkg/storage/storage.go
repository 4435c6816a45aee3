package storage

import (
	"context"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

// Turn is the atomic unit of conversation persistence: one user message and
// its resulting assistant message, committed together with the lazily
// created conversation (if any) and the conversation's updated_at bump.
// Either the whole turn becomes visible or none of it does.
type Turn struct {
	// Conversation is the target conversation, fully populated.
	Conversation *api.Conversation

	// NewConversation marks a conversation created for this turn. The store
	// inserts it as part of the same commit.
	NewConversation bool

	// UserMessage precedes AssistantMessage; the store enforces
	// UserMessage.CreatedAt >= Conversation.UpdatedAt (for existing
	// conversations) and AssistantMessage.CreatedAt > UserMessage.CreatedAt.
	UserMessage      api.Message
	AssistantMessage api.Message
}

// ConversationStore persists conversations and their ordered transcripts.
//
// Messages are ordered by (created_at, id) within a conversation and are
// write-once: there is no update or delete path.
type ConversationStore interface {
	// GetConversation returns the conversation with the given ID if it is
	// owned by owner, or ErrNotFound otherwise.
	GetConversation(ctx context.Context, owner, id string) (*api.Conversation, error)

	// ListConversations returns up to limit conversations owned by owner,
	// most recently updated first. limit <= 0 means no limit.
	ListConversations(ctx context.Context, owner string, limit int) ([]api.Conversation, error)

	// ListMessages returns the most recent limit messages of the
	// conversation in chronological order (oldest first). limit <= 0 returns
	// the full transcript. Returns ErrNotFound if the conversation does not
	// resolve for owner.
	ListMessages(ctx context.Context, owner, conversationID string, limit int) ([]api.Message, error)

	// AppendTurn commits a completed turn atomically: conversation creation
	// (when NewConversation), both messages, and the updated_at bump to the
	// assistant message's timestamp. Returns ErrNotFound if the conversation
	// does not resolve for its owner, ErrOrderViolation on an out-of-order
	// commit, ErrConflict on a duplicate message ID.
	AppendTurn(ctx context.Context, turn *Turn) error

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ItemFilter selects items by completion state.
type ItemFilter string

const (
	ItemFilterAll       ItemFilter = "all"
	ItemFilterPending   ItemFilter = "pending"
	ItemFilterCompleted ItemFilter = "completed"
)

// Valid reports whether f is a known filter value.
func (f ItemFilter) Valid() bool {
	switch f {
	case ItemFilterAll, ItemFilterPending, ItemFilterCompleted:
		return true
	}
	return false
}

// ItemUpdate carries the mutable item fields. Nil pointers leave the field
// unchanged.
type ItemUpdate struct {
	Title       *string
	Description *string
	Completed   *bool
}

// ItemStore persists task items, owner-scoped like ConversationStore.
type ItemStore interface {
	// CreateItem inserts a new item. Returns ErrConflict on a duplicate ID.
	CreateItem(ctx context.Context, item *api.Item) error

	// GetItem returns the item if owned by owner, ErrNotFound otherwise.
	GetItem(ctx context.Context, owner, id string) (*api.Item, error)

	// ListItems returns owner's items matching filter, newest first.
	ListItems(ctx context.Context, owner string, filter ItemFilter) ([]api.Item, error)

	// UpdateItem applies upd and returns the updated item, or ErrNotFound.
	UpdateItem(ctx context.Context, owner, id string, upd ItemUpdate) (*api.Item, error)

	// DeleteItem removes the item, or returns ErrNotFound.
	DeleteItem(ctx context.Context, owner, id string) error
}
