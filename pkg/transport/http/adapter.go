package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/auth"
	"github.com/taskchat-dev/taskchat/pkg/observability"
	"github.com/taskchat-dev/taskchat/pkg/storage"
	"github.com/taskchat-dev/taskchat/pkg/transport"
)

// Adapter serves the taskchat API over HTTP. It routes requests to the turn
// handler and the storage-backed read/CRUD endpoints, and serializes
// responses and classified errors as JSON.
type Adapter struct {
	handler       transport.TurnHandler
	conversations storage.ConversationStore
	items         storage.ItemStore
	mux           *http.ServeMux
	config        Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr        string
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		MaxBodySize: 1 << 20, // 1 MB
	}
}

// NewAdapter creates an HTTP adapter. Middleware is applied to the turn
// handler in the given order.
func NewAdapter(handler transport.TurnHandler, conversations storage.ConversationStore, items storage.ItemStore, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		handler = transport.Chain(middlewares...)(handler)
	}

	a := &Adapter{
		handler:       handler,
		conversations: conversations,
		items:         items,
		mux:           http.NewServeMux(),
		config:        cfg,
	}

	a.mux.HandleFunc("POST /v1/turns", a.handleTurn)
	a.mux.HandleFunc("GET /v1/conversations", a.handleListConversations)
	a.mux.HandleFunc("GET /v1/conversations/{id}/messages", a.handleListMessages)
	a.mux.HandleFunc("GET /v1/items", a.handleListItems)
	a.mux.HandleFunc("POST /v1/items", a.handleCreateItem)
	a.mux.HandleFunc("GET /v1/items/{id}", a.handleGetItem)
	a.mux.HandleFunc("PATCH /v1/items/{id}", a.handleUpdateItem)
	a.mux.HandleFunc("DELETE /v1/items/{id}", a.handleDeleteItem)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	a.mux.HandleFunc("GET /readyz", a.handleReady)
	a.mux.Handle("GET /metrics", promhttp.Handler())

	return a
}

// Handler returns the http.Handler for this adapter, wrapped with the
// HTTP-level middleware for metrics and request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return observability.MetricsMiddleware(httpRequestIDMiddleware(a.mux))
}

// httpRequestIDMiddleware propagates the X-Request-ID header into the
// request context and echoes it on the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}

// handleTurn handles POST /v1/turns.
func (a *Adapter) handleTurn(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError(fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}

	ctx := r.Context()
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		ctx = transport.ContextWithIdempotencyKey(ctx, key)
	}

	resp, err := a.handler.ProcessTurn(ctx, auth.PrincipalFromContext(ctx), &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleListConversations handles GET /v1/conversations.
func (a *Adapter) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	convs, err := a.conversations.ListConversations(r.Context(), auth.PrincipalFromContext(r.Context()), limit)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	writeJSON(w, struct {
		Conversations []api.Conversation `json:"conversations"`
	}{Conversations: emptyIfNil(convs)})
}

// handleListMessages handles GET /v1/conversations/{id}/messages.
func (a *Adapter) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateConversationID(id) {
		transport.WriteTurnError(w, api.NewInvalidRequestError("malformed conversation ID"))
		return
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	msgs, err := a.conversations.ListMessages(r.Context(), auth.PrincipalFromContext(r.Context()), id, limit)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteTurnError(w, api.NewNotFoundError("conversation not found"))
			return
		}
		transport.WriteError(w, err)
		return
	}

	writeJSON(w, struct {
		Messages []api.Message `json:"messages"`
	}{Messages: emptyIfNil(msgs)})
}

// handleListItems handles GET /v1/items.
func (a *Adapter) handleListItems(w http.ResponseWriter, r *http.Request) {
	filter := storage.ItemFilter(r.URL.Query().Get("status"))
	if filter == "" {
		filter = storage.ItemFilterAll
	}
	if !filter.Valid() {
		transport.WriteTurnError(w, api.NewInvalidRequestError("status must be one of: all, pending, completed"))
		return
	}

	list, err := a.items.ListItems(r.Context(), auth.PrincipalFromContext(r.Context()), filter)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	writeJSON(w, struct {
		Items []api.Item `json:"items"`
		Count int        `json:"count"`
	}{Items: emptyIfNil(list), Count: len(list)})
}

// itemPayload is the request body for item create and update.
type itemPayload struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// handleCreateItem handles POST /v1/items.
func (a *Adapter) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var payload itemPayload
	if !decodeBody(w, r, a.config.MaxBodySize, &payload) {
		return
	}

	if payload.Title == nil {
		transport.WriteTurnError(w, api.NewInvalidRequestError("title is required"))
		return
	}
	title, verr := validateTitle(*payload.Title)
	if verr != nil {
		transport.WriteTurnError(w, verr)
		return
	}

	description := ""
	if payload.Description != nil {
		description = strings.TrimSpace(*payload.Description)
		if len(description) > api.MaxItemDescriptionLength {
			transport.WriteTurnError(w, api.NewInvalidRequestError(
				fmt.Sprintf("description must be at most %d characters", api.MaxItemDescriptionLength)))
			return
		}
	}

	ts := time.Now().UTC()
	item := &api.Item{
		ID:          api.NewItemID(),
		Owner:       auth.PrincipalFromContext(r.Context()),
		Title:       title,
		Description: description,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := a.items.CreateItem(r.Context(), item); err != nil {
		transport.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(item)
}

// handleGetItem handles GET /v1/items/{id}.
func (a *Adapter) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateItemID(id) {
		transport.WriteTurnError(w, api.NewInvalidRequestError("malformed item ID"))
		return
	}

	item, err := a.items.GetItem(r.Context(), auth.PrincipalFromContext(r.Context()), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteTurnError(w, api.NewNotFoundError("item not found"))
			return
		}
		transport.WriteError(w, err)
		return
	}

	writeJSON(w, item)
}

// handleUpdateItem handles PATCH /v1/items/{id}.
func (a *Adapter) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateItemID(id) {
		transport.WriteTurnError(w, api.NewInvalidRequestError("malformed item ID"))
		return
	}

	var payload itemPayload
	if !decodeBody(w, r, a.config.MaxBodySize, &payload) {
		return
	}

	if payload.Title == nil && payload.Description == nil && payload.Completed == nil {
		transport.WriteTurnError(w, api.NewInvalidRequestError("provide at least one of title, description, completed"))
		return
	}

	upd := storage.ItemUpdate{Completed: payload.Completed}
	if payload.Title != nil {
		title, verr := validateTitle(*payload.Title)
		if verr != nil {
			transport.WriteTurnError(w, verr)
			return
		}
		upd.Title = &title
	}
	if payload.Description != nil {
		description := strings.TrimSpace(*payload.Description)
		if len(description) > api.MaxItemDescriptionLength {
			transport.WriteTurnError(w, api.NewInvalidRequestError(
				fmt.Sprintf("description must be at most %d characters", api.MaxItemDescriptionLength)))
			return
		}
		upd.Description = &description
	}

	item, err := a.items.UpdateItem(r.Context(), auth.PrincipalFromContext(r.Context()), id, upd)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteTurnError(w, api.NewNotFoundError("item not found"))
			return
		}
		transport.WriteError(w, err)
		return
	}

	writeJSON(w, item)
}

// handleDeleteItem handles DELETE /v1/items/{id}.
func (a *Adapter) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateItemID(id) {
		transport.WriteTurnError(w, api.NewInvalidRequestError("malformed item ID"))
		return
	}

	if err := a.items.DeleteItem(r.Context(), auth.PrincipalFromContext(r.Context()), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteTurnError(w, api.NewNotFoundError("item not found"))
			return
		}
		transport.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /healthz. It reports the storage backend's
// reachability.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.conversations.HealthCheck(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"status":"unhealthy"}`)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleReady handles GET /readyz.
func (a *Adapter) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// validateTitle trims and bounds-checks an item title.
func validateTitle(raw string) (string, *api.TurnError) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", api.NewInvalidRequestError("title must not be empty")
	}
	if len(title) > api.MaxItemTitleLength {
		return "", api.NewInvalidRequestError(
			fmt.Sprintf("title must be at most %d characters", api.MaxItemTitleLength))
	}
	return title, nil
}

// decodeBody decodes a JSON request body with a size cap, writing the error
// response itself. Returns false when the caller should stop.
func decodeBody(w http.ResponseWriter, r *http.Request, maxSize int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError(fmt.Sprintf("request body too large (max %d bytes)", maxSize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteTurnError(w, api.NewInvalidRequestError("invalid JSON: "+err.Error()))
		return false
	}
	return true
}

// parseLimit extracts an optional positive limit query parameter. Returns
// ok=false after writing the error response.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		transport.WriteTurnError(w, api.NewInvalidRequestError("limit must be a positive integer"))
		return 0, false
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// emptyIfNil keeps list responses as [] instead of null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
