package transport

import (
	"context"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

// TurnHandler processes one conversation turn for an authenticated
// principal. On success the returned turn is already durably committed.
// On failure the error is a *api.TurnError carrying the classified kind;
// any other error type is treated as an internal failure by the adapter.
type TurnHandler interface {
	ProcessTurn(ctx context.Context, principal string, req *api.TurnRequest) (*api.TurnResponse, error)
}

// TurnHandlerFunc adapts an ordinary function to a TurnHandler.
type TurnHandlerFunc func(ctx context.Context, principal string, req *api.TurnRequest) (*api.TurnResponse, error)

// ProcessTurn calls f(ctx, principal, req).
func (f TurnHandlerFunc) ProcessTurn(ctx context.Context, principal string, req *api.TurnRequest) (*api.TurnResponse, error) {
	return f(ctx, principal, req)
}
