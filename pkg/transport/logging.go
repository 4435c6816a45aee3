package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

// Logging returns middleware that emits one structured log entry per turn.
// The entry includes the request ID (from context), conversation, duration,
// tool call count, and the classified error kind on failure.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next TurnHandler) TurnHandler {
		return TurnHandlerFunc(func(ctx context.Context, principal string, req *api.TurnRequest) (*api.TurnResponse, error) {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			resp, err := next.ProcessTurn(ctx, principal, req)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("principal", principal),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				kind := "internal"
				var turnErr *api.TurnError
				if errors.As(err, &turnErr) {
					kind = string(turnErr.Kind)
				}
				if req != nil && req.ConversationID != "" {
					attrs = append(attrs, slog.String("conversation", req.ConversationID))
				}
				attrs = append(attrs, slog.String("error_kind", kind))
				logger.LogAttrs(ctx, slog.LevelError, "turn failed", attrs...)
			} else {
				attrs = append(attrs,
					slog.String("conversation", resp.ConversationID),
					slog.Int("tool_calls", len(resp.ToolCalls)),
				)
				logger.LogAttrs(ctx, slog.LevelInfo, "turn completed", attrs...)
			}

			return resp, err
		})
	}
}
