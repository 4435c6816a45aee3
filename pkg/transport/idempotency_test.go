package transport

import (
	"context"
	"testing"
	"time"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

// countingHandler records how many times it was invoked.
type countingHandler struct {
	calls int
	resp  *api.TurnResponse
	err   error
}

func (h *countingHandler) ProcessTurn(_ context.Context, _ string, _ *api.TurnRequest) (*api.TurnResponse, error) {
	h.calls++
	return h.resp, h.err
}

func TestIdempotencyReplaysCommittedTurn(t *testing.T) {
	inner := &countingHandler{resp: &api.TurnResponse{ConversationID: "conv_a", Answer: "done"}}
	handler := Idempotency(NewIdempotencyCache(0))(inner)

	ctx := ContextWithIdempotencyKey(context.Background(), "key-1")
	req := &api.TurnRequest{Message: "add milk"}

	first, err := handler.ProcessTurn(ctx, "alice", req)
	if err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	second, err := handler.ProcessTurn(ctx, "alice", req)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("handler called %d times, want 1", inner.calls)
	}
	if first.ConversationID != second.ConversationID || first.Answer != second.Answer {
		t.Errorf("replay diverged: %+v vs %+v", first, second)
	}
}

func TestIdempotencyScopedPerPrincipal(t *testing.T) {
	inner := &countingHandler{resp: &api.TurnResponse{ConversationID: "conv_a"}}
	handler := Idempotency(NewIdempotencyCache(0))(inner)

	ctx := ContextWithIdempotencyKey(context.Background(), "shared-key")

	if _, err := handler.ProcessTurn(ctx, "alice", &api.TurnRequest{Message: "hi"}); err != nil {
		t.Fatal(err)
	}
	if _, err := handler.ProcessTurn(ctx, "bob", &api.TurnRequest{Message: "hi"}); err != nil {
		t.Fatal(err)
	}

	if inner.calls != 2 {
		t.Errorf("handler called %d times, want 2 (keys are per principal)", inner.calls)
	}
}

func TestIdempotencyNoKeyPassesThrough(t *testing.T) {
	inner := &countingHandler{resp: &api.TurnResponse{}}
	handler := Idempotency(NewIdempotencyCache(0))(inner)

	for i := 0; i < 3; i++ {
		if _, err := handler.ProcessTurn(context.Background(), "alice", &api.TurnRequest{Message: "hi"}); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 3 {
		t.Errorf("handler called %d times, want 3", inner.calls)
	}
}

func TestIdempotencyFailedTurnNotCached(t *testing.T) {
	inner := &countingHandler{err: api.NewReasoningUnavailableError()}
	handler := Idempotency(NewIdempotencyCache(0))(inner)

	ctx := ContextWithIdempotencyKey(context.Background(), "key-1")

	for i := 0; i < 2; i++ {
		if _, err := handler.ProcessTurn(ctx, "alice", &api.TurnRequest{Message: "hi"}); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.calls != 2 {
		t.Errorf("handler called %d times, want 2 (failures retry)", inner.calls)
	}
}

func TestIdempotencyEntryExpires(t *testing.T) {
	inner := &countingHandler{resp: &api.TurnResponse{}}
	cache := NewIdempotencyCache(10 * time.Millisecond)
	handler := Idempotency(cache)(inner)

	ctx := ContextWithIdempotencyKey(context.Background(), "key-1")

	if _, err := handler.ProcessTurn(ctx, "alice", &api.TurnRequest{Message: "hi"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := handler.ProcessTurn(ctx, "alice", &api.TurnRequest{Message: "hi"}); err != nil {
		t.Fatal(err)
	}

	if inner.calls != 2 {
		t.Errorf("handler called %d times, want 2 after expiry", inner.calls)
	}
}
