// Package postgres provides a PostgreSQL implementation of the storage
// interfaces. It uses pgx/v5 for connection pooling and JSONB for the
// tool-call records attached to assistant messages.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/storage"
)

// Store is a PostgreSQL-backed ConversationStore and ItemStore.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time interface checks.
var (
	_ storage.ConversationStore = (*Store)(nil)
	_ storage.ItemStore         = (*Store)(nil)
)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// GetConversation retrieves a conversation by ID, scoped to owner.
func (s *Store) GetConversation(ctx context.Context, owner, id string) (*api.Conversation, error) {
	var conv api.Conversation
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND owner = $2
	`, id, owner).Scan(&conv.ID, &conv.Owner, &conv.CreatedAt, &conv.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns owner's conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context, owner string, limit int) ([]api.Conversation, error) {
	query := `
		SELECT id, owner, created_at, updated_at
		FROM conversations
		WHERE owner = $1
		ORDER BY updated_at DESC, id DESC
	`
	args := []any{owner}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var out []api.Conversation
	for rows.Next() {
		var conv api.Conversation
		if err := rows.Scan(&conv.ID, &conv.Owner, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return out, nil
}

// ListMessages returns the most recent limit messages of the conversation in
// chronological order. limit <= 0 returns the full transcript.
func (s *Store) ListMessages(ctx context.Context, owner, conversationID string, limit int) ([]api.Message, error) {
	// Resolve the conversation first so a missing conversation is
	// distinguishable from an empty transcript.
	if _, err := s.GetConversation(ctx, owner, conversationID); err != nil {
		return nil, err
	}

	// The window is the tail of the transcript, so select newest-first with
	// the limit and reverse afterwards.
	query := `
		SELECT id, conversation_id, owner, role, content, tool_calls, created_at
		FROM messages
		WHERE conversation_id = $1 AND owner = $2
		ORDER BY created_at DESC, id DESC
	`
	args := []any{conversationID, owner}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var out []api.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// AppendTurn commits a completed turn in a single transaction. The
// conversation row is locked FOR UPDATE so concurrent commits against the
// same conversation serialize, keeping the ordering check race-free.
func (s *Store) AppendTurn(ctx context.Context, turn *storage.Turn) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	conv := turn.Conversation

	if turn.NewConversation {
		_, err := tx.Exec(ctx, `
			INSERT INTO conversations (id, owner, created_at, updated_at)
			VALUES ($1, $2, $3, $4)
		`, conv.ID, conv.Owner, conv.CreatedAt, turn.AssistantMessage.CreatedAt)
		if err != nil {
			if isDuplicateKey(err) {
				return storage.ErrConflict
			}
			return fmt.Errorf("inserting conversation: %w", err)
		}
	} else {
		var updatedAt time.Time
		err := tx.QueryRow(ctx, `
			SELECT updated_at FROM conversations
			WHERE id = $1 AND owner = $2
			FOR UPDATE
		`, conv.ID, conv.Owner).Scan(&updatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("locking conversation: %w", err)
		}
		if turn.UserMessage.CreatedAt.Before(updatedAt) {
			return storage.ErrOrderViolation
		}

		_, err = tx.Exec(ctx, `
			UPDATE conversations SET updated_at = $1 WHERE id = $2
		`, turn.AssistantMessage.CreatedAt, conv.ID)
		if err != nil {
			return fmt.Errorf("updating conversation: %w", err)
		}
	}

	if !turn.AssistantMessage.CreatedAt.After(turn.UserMessage.CreatedAt) {
		return storage.ErrOrderViolation
	}

	if err := insertMessage(ctx, tx, &turn.UserMessage); err != nil {
		return err
	}
	if err := insertMessage(ctx, tx, &turn.AssistantMessage); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing turn: %w", err)
	}
	return nil
}

func insertMessage(ctx context.Context, tx pgx.Tx, msg *api.Message) error {
	var toolCallsJSON []byte
	if len(msg.ToolCalls) > 0 {
		var err error
		toolCallsJSON, err = json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("marshaling tool calls: %w", err)
		}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, owner, role, content, tool_calls, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.ConversationID, msg.Owner, string(msg.Role), msg.Content,
		nullJSON(toolCallsJSON), msg.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// scanMessage reads one message row including its optional tool_calls JSONB.
func scanMessage(rows pgx.Rows) (*api.Message, error) {
	var msg api.Message
	var role string
	var toolCallsJSON *[]byte

	if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Owner, &role,
		&msg.Content, &toolCallsJSON, &msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}

	msg.Role = api.MessageRole(role)
	if toolCallsJSON != nil {
		if err := json.Unmarshal(*toolCallsJSON, &msg.ToolCalls); err != nil {
			return nil, fmt.Errorf("unmarshaling tool calls: %w", err)
		}
	}
	return &msg, nil
}

// CreateItem inserts a new item.
func (s *Store) CreateItem(ctx context.Context, item *api.Item) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO items (id, owner, title, description, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.Owner, item.Title, item.Description, item.Completed,
		item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID, scoped to owner.
func (s *Store) GetItem(ctx context.Context, owner, id string) (*api.Item, error) {
	var item api.Item
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner, title, description, completed, created_at, updated_at
		FROM items
		WHERE id = $1 AND owner = $2
	`, id, owner).Scan(&item.ID, &item.Owner, &item.Title, &item.Description,
		&item.Completed, &item.CreatedAt, &item.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying item: %w", err)
	}
	return &item, nil
}

// ListItems returns owner's items matching filter, newest first.
func (s *Store) ListItems(ctx context.Context, owner string, filter storage.ItemFilter) ([]api.Item, error) {
	query := `
		SELECT id, owner, title, description, completed, created_at, updated_at
		FROM items
		WHERE owner = $1
	`
	switch filter {
	case storage.ItemFilterPending:
		query += " AND completed = FALSE"
	case storage.ItemFilterCompleted:
		query += " AND completed = TRUE"
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var out []api.Item
	for rows.Next() {
		var item api.Item
		if err := rows.Scan(&item.ID, &item.Owner, &item.Title, &item.Description,
			&item.Completed, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return out, nil
}

// UpdateItem applies upd and returns the updated item.
func (s *Store) UpdateItem(ctx context.Context, owner, id string, upd storage.ItemUpdate) (*api.Item, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id, owner}

	if upd.Title != nil {
		args = append(args, *upd.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if upd.Description != nil {
		args = append(args, *upd.Description)
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	if upd.Completed != nil {
		args = append(args, *upd.Completed)
		sets = append(sets, fmt.Sprintf("completed = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		UPDATE items SET %s
		WHERE id = $1 AND owner = $2
		RETURNING id, owner, title, description, completed, created_at, updated_at
	`, strings.Join(sets, ", "))

	var item api.Item
	err := s.pool.QueryRow(ctx, query, args...).Scan(&item.ID, &item.Owner,
		&item.Title, &item.Description, &item.Completed, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	return &item, nil
}

// DeleteItem removes the item.
func (s *Store) DeleteItem(ctx context.Context, owner, id string) error {
	result, err := s.pool.Exec(ctx,
		"DELETE FROM items WHERE id = $1 AND owner = $2", id, owner)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
