package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next TurnHandler) TurnHandler {
			return TurnHandlerFunc(func(ctx context.Context, principal string, req *api.TurnRequest) (*api.TurnResponse, error) {
				order = append(order, name)
				return next.ProcessTurn(ctx, principal, req)
			})
		}
	}

	handler := Chain(tag("a"), tag("b"), tag("c"))(TurnHandlerFunc(
		func(_ context.Context, _ string, _ *api.TurnRequest) (*api.TurnResponse, error) {
			order = append(order, "handler")
			return &api.TurnResponse{}, nil
		},
	))

	if _, err := handler.ProcessTurn(context.Background(), "p", &api.TurnRequest{Message: "hi"}); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	want := []string{"a", "b", "c", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRequestIDAssignsWhenMissing(t *testing.T) {
	var seen string
	handler := RequestID()(TurnHandlerFunc(
		func(ctx context.Context, _ string, _ *api.TurnRequest) (*api.TurnResponse, error) {
			seen = RequestIDFromContext(ctx)
			return &api.TurnResponse{}, nil
		},
	))

	if _, err := handler.ProcessTurn(context.Background(), "p", &api.TurnRequest{Message: "hi"}); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if seen == "" {
		t.Error("request ID was not assigned")
	}
}

func TestRequestIDPreservesExisting(t *testing.T) {
	var seen string
	handler := RequestID()(TurnHandlerFunc(
		func(ctx context.Context, _ string, _ *api.TurnRequest) (*api.TurnResponse, error) {
			seen = RequestIDFromContext(ctx)
			return &api.TurnResponse{}, nil
		},
	))

	ctx := ContextWithRequestID(context.Background(), "client-supplied")
	if _, err := handler.ProcessTurn(ctx, "p", &api.TurnRequest{Message: "hi"}); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if seen != "client-supplied" {
		t.Errorf("request ID = %q, want client-supplied", seen)
	}
}

func TestRecoveryConvertsPanic(t *testing.T) {
	handler := Recovery()(TurnHandlerFunc(
		func(_ context.Context, _ string, _ *api.TurnRequest) (*api.TurnResponse, error) {
			panic("boom")
		},
	))

	resp, err := handler.ProcessTurn(context.Background(), "p", &api.TurnRequest{Message: "hi"})
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	if resp != nil {
		t.Error("response must be nil after a panic")
	}
	var turnErr *api.TurnError
	if errors.As(err, &turnErr) {
		t.Error("recovered panic must not masquerade as a classified turn error")
	}
}

func TestRecoveryPassesThrough(t *testing.T) {
	handler := Recovery()(TurnHandlerFunc(
		func(_ context.Context, _ string, _ *api.TurnRequest) (*api.TurnResponse, error) {
			return &api.TurnResponse{Answer: "ok"}, nil
		},
	))

	resp, err := handler.ProcessTurn(context.Background(), "p", &api.TurnRequest{Message: "hi"})
	if err != nil || resp.Answer != "ok" {
		t.Errorf("resp = %+v, err = %v", resp, err)
	}
}
