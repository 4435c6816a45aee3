package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to errors. The server continues to accept new requests
// after a panic is recovered.
func Recovery() Middleware {
	return func(next TurnHandler) TurnHandler {
		return TurnHandlerFunc(func(ctx context.Context, principal string, req *api.TurnRequest) (resp *api.TurnResponse, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("turn handler panic", "panic", r)
					resp = nil
					retErr = fmt.Errorf("internal error: %v", r)
				}
			}()
			return next.ProcessTurn(ctx, principal, req)
		})
	}
}
