// Package memory provides an in-memory implementation of the storage
// interfaces for testing and lightweight deployments. All data is lost when
// the process restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/storage"
)

// now is swappable for deterministic tests.
var now = func() time.Time { return time.Now().UTC() }

// Store is an in-memory ConversationStore and ItemStore.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]api.Conversation
	messages      map[string][]api.Message // keyed by conversation ID
	messageIDs    map[string]bool
	items         map[string]api.Item
}

// Compile-time interface checks.
var (
	_ storage.ConversationStore = (*Store)(nil)
	_ storage.ItemStore         = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		conversations: make(map[string]api.Conversation),
		messages:      make(map[string][]api.Message),
		messageIDs:    make(map[string]bool),
		items:         make(map[string]api.Item),
	}
}

// GetConversation returns the conversation if it is owned by owner.
func (s *Store) GetConversation(_ context.Context, owner, id string) (*api.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok || conv.Owner != owner {
		return nil, storage.ErrNotFound
	}
	c := conv
	return &c, nil
}

// ListConversations returns owner's conversations, most recently updated first.
func (s *Store) ListConversations(_ context.Context, owner string, limit int) ([]api.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []api.Conversation
	for _, conv := range s.conversations {
		if conv.Owner == owner {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListMessages returns the most recent limit messages in chronological order.
func (s *Store) ListMessages(_ context.Context, owner, conversationID string, limit int) ([]api.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.Owner != owner {
		return nil, storage.ErrNotFound
	}

	msgs := s.messages[conversationID]
	out := make([]api.Message, len(msgs))
	copy(out, msgs)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// AppendTurn commits the turn under a single lock acquisition, which makes
// it atomic with respect to every other store operation: no partial turn is
// ever observable.
func (s *Store) AppendTurn(_ context.Context, turn *storage.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := turn.Conversation

	if turn.NewConversation {
		if _, exists := s.conversations[conv.ID]; exists {
			return storage.ErrConflict
		}
	} else {
		existing, ok := s.conversations[conv.ID]
		if !ok || existing.Owner != conv.Owner {
			return storage.ErrNotFound
		}
		if turn.UserMessage.CreatedAt.Before(existing.UpdatedAt) {
			return storage.ErrOrderViolation
		}
	}

	if s.messageIDs[turn.UserMessage.ID] || s.messageIDs[turn.AssistantMessage.ID] {
		return storage.ErrConflict
	}
	if !turn.AssistantMessage.CreatedAt.After(turn.UserMessage.CreatedAt) {
		return storage.ErrOrderViolation
	}

	committed := *conv
	committed.UpdatedAt = turn.AssistantMessage.CreatedAt
	s.conversations[conv.ID] = committed

	s.messages[conv.ID] = append(s.messages[conv.ID], turn.UserMessage, turn.AssistantMessage)
	s.messageIDs[turn.UserMessage.ID] = true
	s.messageIDs[turn.AssistantMessage.ID] = true

	return nil
}

// CreateItem inserts a new item.
func (s *Store) CreateItem(_ context.Context, item *api.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return storage.ErrConflict
	}
	s.items[item.ID] = *item
	return nil
}

// GetItem returns the item if owned by owner.
func (s *Store) GetItem(_ context.Context, owner, id string) (*api.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok || item.Owner != owner {
		return nil, storage.ErrNotFound
	}
	it := item
	return &it, nil
}

// ListItems returns owner's items matching filter, newest first.
func (s *Store) ListItems(_ context.Context, owner string, filter storage.ItemFilter) ([]api.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []api.Item
	for _, item := range s.items {
		if item.Owner != owner {
			continue
		}
		switch filter {
		case storage.ItemFilterPending:
			if item.Completed {
				continue
			}
		case storage.ItemFilterCompleted:
			if !item.Completed {
				continue
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// UpdateItem applies upd and returns the updated item.
func (s *Store) UpdateItem(_ context.Context, owner, id string, upd storage.ItemUpdate) (*api.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || item.Owner != owner {
		return nil, storage.ErrNotFound
	}
	if upd.Title != nil {
		item.Title = *upd.Title
	}
	if upd.Description != nil {
		item.Description = *upd.Description
	}
	if upd.Completed != nil {
		item.Completed = *upd.Completed
	}
	item.UpdatedAt = now()
	s.items[id] = item
	it := item
	return &it, nil
}

// DeleteItem removes the item.
func (s *Store) DeleteItem(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || item.Owner != owner {
		return storage.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }
