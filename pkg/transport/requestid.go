package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

// RequestID returns middleware that assigns a unique request ID to each
// turn. If the incoming context already carries a request ID (set by the
// HTTP adapter from the X-Request-ID header), that value is used.
// Otherwise, a new unique ID is generated.
//
// The request ID is stored in the context and can be retrieved with
// RequestIDFromContext.
func RequestID() Middleware {
	return func(next TurnHandler) TurnHandler {
		return TurnHandlerFunc(func(ctx context.Context, principal string, req *api.TurnRequest) (*api.TurnResponse, error) {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, generateRequestID())
			}
			return next.ProcessTurn(ctx, principal, req)
		})
	}
}

// generateRequestID creates a new unique request ID as a hex string.
func generateRequestID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
