package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/storage"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if a container runtime is not available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("taskchat_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// makeTestTurn builds a new-conversation turn for owner with distinct
// timestamps so ordering checks pass.
func makeTestTurn(owner string) *storage.Turn {
	base := time.Now().UTC().Truncate(time.Microsecond)
	convID := api.NewConversationID()
	return &storage.Turn{
		Conversation: &api.Conversation{
			ID:        convID,
			Owner:     owner,
			CreatedAt: base,
			UpdatedAt: base,
		},
		NewConversation: true,
		UserMessage: api.Message{
			ID:             api.NewMessageID(),
			ConversationID: convID,
			Owner:          owner,
			Role:           api.RoleUser,
			Content:        "add milk to my list",
			CreatedAt:      base,
		},
		AssistantMessage: api.Message{
			ID:             api.NewMessageID(),
			ConversationID: convID,
			Owner:          owner,
			Role:           api.RoleAssistant,
			Content:        "Added \"milk\" to your tasks.",
			ToolCalls: []api.ToolCallRecord{{
				Capability: "add_item",
				Arguments:  []byte(`{"title":"milk"}`),
				Result:     []byte(`{"id":"item_x","title":"milk"}`),
			}},
			CreatedAt: base.Add(50 * time.Millisecond),
		},
	}
}

func TestPostgres_AppendAndListTurn(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	turn := makeTestTurn("user-1")
	if err := store.AppendTurn(ctx, turn); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}

	conv, err := store.GetConversation(ctx, "user-1", turn.Conversation.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if !conv.UpdatedAt.Equal(turn.AssistantMessage.CreatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", conv.UpdatedAt, turn.AssistantMessage.CreatedAt)
	}

	msgs, err := store.ListMessages(ctx, "user-1", turn.Conversation.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Role != api.RoleUser || msgs[1].Role != api.RoleAssistant {
		t.Errorf("messages out of order: %q, %q", msgs[0].Role, msgs[1].Role)
	}
	if len(msgs[1].ToolCalls) != 1 || msgs[1].ToolCalls[0].Capability != "add_item" {
		t.Errorf("tool calls not round-tripped: %+v", msgs[1].ToolCalls)
	}
}

func TestPostgres_ListMessagesWindow(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	turn := makeTestTurn("user-1")
	if err := store.AppendTurn(ctx, turn); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}

	// Append a second turn to the same conversation.
	base := turn.AssistantMessage.CreatedAt.Add(time.Second)
	second := &storage.Turn{
		Conversation: turn.Conversation,
		UserMessage: api.Message{
			ID:             api.NewMessageID(),
			ConversationID: turn.Conversation.ID,
			Owner:          "user-1",
			Role:           api.RoleUser,
			Content:        "what's on my list?",
			CreatedAt:      base,
		},
		AssistantMessage: api.Message{
			ID:             api.NewMessageID(),
			ConversationID: turn.Conversation.ID,
			Owner:          "user-1",
			Role:           api.RoleAssistant,
			Content:        "You have 1 task: milk.",
			CreatedAt:      base.Add(50 * time.Millisecond),
		},
	}
	if err := store.AppendTurn(ctx, second); err != nil {
		t.Fatalf("AppendTurn (second) failed: %v", err)
	}

	// A window of 2 must return the newest two messages, oldest first.
	msgs, err := store.ListMessages(ctx, "user-1", turn.Conversation.ID, 2)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].ID != second.UserMessage.ID || msgs[1].ID != second.AssistantMessage.ID {
		t.Errorf("window returned wrong messages: %q, %q", msgs[0].ID, msgs[1].ID)
	}
}

func TestPostgres_AppendTurnOrderViolation(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	turn := makeTestTurn("user-1")
	if err := store.AppendTurn(ctx, turn); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}

	// A turn whose user message predates the conversation's updated_at must
	// be rejected.
	stale := &storage.Turn{
		Conversation: turn.Conversation,
		UserMessage: api.Message{
			ID:             api.NewMessageID(),
			ConversationID: turn.Conversation.ID,
			Owner:          "user-1",
			Role:           api.RoleUser,
			Content:        "stale",
			CreatedAt:      turn.UserMessage.CreatedAt,
		},
		AssistantMessage: api.Message{
			ID:             api.NewMessageID(),
			ConversationID: turn.Conversation.ID,
			Owner:          "user-1",
			Role:           api.RoleAssistant,
			Content:        "stale reply",
			CreatedAt:      turn.UserMessage.CreatedAt.Add(time.Millisecond),
		},
	}
	if err := store.AppendTurn(ctx, stale); !errors.Is(err, storage.ErrOrderViolation) {
		t.Errorf("expected ErrOrderViolation, got %v", err)
	}

	// The rejected turn must not have persisted anything.
	msgs, err := store.ListMessages(ctx, "user-1", turn.Conversation.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("len(msgs) = %d after rejected turn, want 2", len(msgs))
	}
}

func TestPostgres_AppendTurnUnknownConversation(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	turn := makeTestTurn("user-1")
	turn.NewConversation = false
	if err := store.AppendTurn(ctx, turn); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_OwnerIsolation(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	turn := makeTestTurn("user-a")
	if err := store.AppendTurn(ctx, turn); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}

	if _, err := store.GetConversation(ctx, "user-a", turn.Conversation.ID); err != nil {
		t.Fatalf("owner should see own conversation: %v", err)
	}
	if _, err := store.GetConversation(ctx, "user-b", turn.Conversation.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Error("other owner should not see the conversation")
	}
	if _, err := store.ListMessages(ctx, "user-b", turn.Conversation.ID, 0); !errors.Is(err, storage.ErrNotFound) {
		t.Error("other owner should not see the transcript")
	}
}

func TestPostgres_ListConversations(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	first := makeTestTurn("user-1")
	if err := store.AppendTurn(ctx, first); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}
	second := makeTestTurn("user-1")
	second.Conversation.CreatedAt = first.AssistantMessage.CreatedAt.Add(time.Second)
	second.UserMessage.CreatedAt = second.Conversation.CreatedAt
	second.AssistantMessage.CreatedAt = second.Conversation.CreatedAt.Add(50 * time.Millisecond)
	if err := store.AppendTurn(ctx, second); err != nil {
		t.Fatalf("AppendTurn (second) failed: %v", err)
	}

	convs, err := store.ListConversations(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("len(convs) = %d, want 2", len(convs))
	}
	if convs[0].ID != second.Conversation.ID {
		t.Errorf("most recently updated conversation should come first, got %q", convs[0].ID)
	}

	limited, err := store.ListConversations(ctx, "user-1", 1)
	if err != nil {
		t.Fatalf("ListConversations (limit) failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("len(limited) = %d, want 1", len(limited))
	}
}

func TestPostgres_ItemLifecycle(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	item := &api.Item{
		ID:          api.NewItemID(),
		Owner:       "user-1",
		Title:       "buy milk",
		Description: "2 liters",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreateItem(ctx, item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	got, err := store.GetItem(ctx, "user-1", item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got.Title != "buy milk" || got.Description != "2 liters" || got.Completed {
		t.Errorf("GetItem returned %+v", got)
	}

	completed := true
	updated, err := store.UpdateItem(ctx, "user-1", item.ID, storage.ItemUpdate{Completed: &completed})
	if err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}
	if !updated.Completed {
		t.Error("item should be completed after update")
	}
	if !updated.UpdatedAt.After(now) {
		t.Errorf("UpdatedAt = %v, want after %v", updated.UpdatedAt, now)
	}

	pending, err := store.ListItems(ctx, "user-1", storage.ItemFilterPending)
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("len(pending) = %d, want 0", len(pending))
	}
	done, err := store.ListItems(ctx, "user-1", storage.ItemFilterCompleted)
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(done) != 1 {
		t.Errorf("len(done) = %d, want 1", len(done))
	}

	if err := store.DeleteItem(ctx, "user-1", item.ID); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	if err := store.DeleteItem(ctx, "user-1", item.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPostgres_ItemOwnerIsolation(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	item := &api.Item{
		ID:        api.NewItemID(),
		Owner:     "user-a",
		Title:     fmt.Sprintf("private %d", now.UnixNano()),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateItem(ctx, item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	if _, err := store.GetItem(ctx, "user-b", item.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Error("other owner should not see the item")
	}
	if err := store.DeleteItem(ctx, "user-b", item.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Error("other owner should not delete the item")
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	store := setupTestDB(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}
