package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/capability"
	"github.com/taskchat-dev/taskchat/pkg/observability"
	"github.com/taskchat-dev/taskchat/pkg/reasoning"
	"github.com/taskchat-dev/taskchat/pkg/storage"
)

// now is swappable for deterministic tests.
var now = func() time.Time { return time.Now().UTC() }

// Engine processes conversation turns. It is safe for concurrent use; all
// per-conversation serialization happens through the lease table.
type Engine struct {
	adapter  reasoning.Adapter
	registry *capability.Registry
	store    storage.ConversationStore
	leases   *LeaseTable
	cfg      Config
}

// New creates an Engine. The adapter, registry, and store must not be nil.
func New(adapter reasoning.Adapter, registry *capability.Registry, store storage.ConversationStore, cfg Config) (*Engine, error) {
	if adapter == nil {
		return nil, fmt.Errorf("engine: reasoning adapter must not be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("engine: capability registry must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("engine: conversation store must not be nil")
	}
	return &Engine{
		adapter:  adapter,
		registry: registry,
		store:    store,
		leases:   NewLeaseTable(),
		cfg:      cfg,
	}, nil
}

// ProcessTurn runs one complete turn for principal. On success the turn is
// already durably committed when the response returns. On failure the error
// is always a *api.TurnError; nothing is persisted for a failed turn.
func (e *Engine) ProcessTurn(ctx context.Context, principal string, req *api.TurnRequest) (*api.TurnResponse, error) {
	resp, err := e.processTurn(ctx, principal, req)

	outcome := "ok"
	if err != nil {
		var turnErr *api.TurnError
		if errors.As(err, &turnErr) {
			outcome = string(turnErr.Kind)
		} else {
			outcome = "internal"
		}
	}
	observability.TurnsTotal.WithLabelValues(outcome).Inc()

	return resp, err
}

func (e *Engine) processTurn(ctx context.Context, principal string, req *api.TurnRequest) (*api.TurnResponse, error) {
	if verr := api.ValidatePrincipal(principal); verr != nil {
		return nil, verr
	}
	if verr := api.ValidateTurnRequest(req); verr != nil {
		return nil, verr
	}

	turnStart := now()

	// Resolve or lazily create the target conversation. The created
	// conversation only becomes visible if the turn commits.
	conv, isNew, err := e.resolveConversation(ctx, principal, req.ConversationID, turnStart)
	if err != nil {
		return nil, err
	}

	release, ok := e.leases.TryAcquire(conv.ID)
	if !ok {
		observability.LeaseRejectionsTotal.Inc()
		return nil, api.NewConversationBusyError()
	}
	defer release()

	// Reconstruct the context window. A new conversation has no history.
	var history []api.Message
	if !isNew {
		history, err = e.store.ListMessages(ctx, principal, conv.ID, e.cfg.historyWindow())
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, api.NewNotFoundError("conversation not found")
			}
			slog.Error("loading transcript window failed", "conversation", conv.ID, "error", err)
			return nil, api.NewPersistenceFailureError()
		}
	}

	messages := buildContext(e.cfg.systemPrompt(), history, req.Message)
	capabilities := e.registry.Definitions()

	// Bounded reasoning loop: each iteration is one Decide round, optionally
	// followed by a dispatched batch of capability calls.
	var answer string
	var allRecords []api.ToolCallRecord
	rounds := 0
	final := false

	for rounds <= e.cfg.maxToolRounds() {
		decision, err := e.decide(ctx, messages, capabilities)
		if err != nil {
			return nil, err
		}

		if decision.Final() {
			answer = decision.Answer
			final = true
			break
		}

		// Every requested capability must exist before anything executes.
		for _, call := range decision.ToolCalls {
			if !e.registry.Has(call.Capability) {
				slog.Warn("reasoning requested unknown capability",
					"capability", call.Capability,
					"conversation", conv.ID,
				)
				return nil, api.NewUnknownCapabilityError()
			}
		}

		rounds++
		if rounds > e.cfg.maxToolRounds() {
			break
		}

		records, feedback := e.dispatchRound(ctx, principal, decision.ToolCalls)
		allRecords = append(allRecords, records...)
		messages = append(messages, feedback...)
	}

	if !final {
		slog.Warn("reasoning loop exceeded", "conversation", conv.ID, "rounds", rounds)
		return nil, api.NewReasoningLoopExceededError()
	}

	observability.TurnToolRounds.Observe(float64(rounds))

	// Commit the whole turn atomically. The assistant timestamp must be
	// strictly after the user timestamp even on coarse clocks.
	assistantAt := now()
	if !assistantAt.After(turnStart) {
		assistantAt = turnStart.Add(time.Millisecond)
	}

	turn := &storage.Turn{
		Conversation:    conv,
		NewConversation: isNew,
		UserMessage: api.Message{
			ID:             api.NewMessageID(),
			ConversationID: conv.ID,
			Owner:          principal,
			Role:           api.RoleUser,
			Content:        req.Message,
			CreatedAt:      turnStart,
		},
		AssistantMessage: api.Message{
			ID:             api.NewMessageID(),
			ConversationID: conv.ID,
			Owner:          principal,
			Role:           api.RoleAssistant,
			Content:        answer,
			ToolCalls:      allRecords,
			CreatedAt:      assistantAt,
		},
	}

	if err := e.store.AppendTurn(ctx, turn); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, api.NewNotFoundError("conversation not found")
		}
		slog.Error("turn commit failed", "conversation", conv.ID, "error", err)
		return nil, api.NewPersistenceFailureError()
	}

	return &api.TurnResponse{
		ConversationID: conv.ID,
		Answer:         answer,
		ToolCalls:      allRecords,
	}, nil
}

// resolveConversation loads the referenced conversation or mints a new one.
func (e *Engine) resolveConversation(ctx context.Context, principal, conversationID string, turnStart time.Time) (*api.Conversation, bool, error) {
	if conversationID == "" {
		return &api.Conversation{
			ID:        api.NewConversationID(),
			Owner:     principal,
			CreatedAt: turnStart,
			UpdatedAt: turnStart,
		}, true, nil
	}

	conv, err := e.store.GetConversation(ctx, principal, conversationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, api.NewNotFoundError("conversation not found")
		}
		slog.Error("loading conversation failed", "conversation", conversationID, "error", err)
		return nil, false, api.NewPersistenceFailureError()
	}
	return conv, false, nil
}

// decide performs one reasoning round and records backend metrics. Backend
// failure ends the turn with nothing persisted.
func (e *Engine) decide(ctx context.Context, messages []reasoning.Message, capabilities []api.CapabilityDefinition) (*reasoning.Decision, error) {
	start := time.Now()
	decision, err := e.adapter.Decide(ctx, messages, capabilities)
	observability.ReasoningLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		observability.ReasoningRequestsTotal.WithLabelValues("error").Inc()
		slog.Error("reasoning call failed", "error", err)
		return nil, api.NewReasoningUnavailableError()
	}

	observability.ReasoningRequestsTotal.WithLabelValues("success").Inc()
	return decision, nil
}
