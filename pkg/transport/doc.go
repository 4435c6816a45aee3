// Package transport defines the handler contract and middleware chain for
// the taskchat HTTP transport layer.
//
// The transport layer bridges external clients and the turn-processing
// engine. It deserializes inbound turn requests into the core types defined
// in pkg/api, dispatches them for processing, and serializes the committed
// turn (or its classified error) back to the client as JSON.
//
// # Handler Contract
//
// TurnHandler is the single contract between the transport layer and the
// engine: one authenticated principal, one inbound message, one committed
// turn or one *api.TurnError. The transport never sees partial turns.
//
// # Middleware
//
// The middleware chain wraps TurnHandler with cross-cutting concerns: panic
// recovery, request ID assignment (X-Request-ID), structured logging via
// log/slog, and idempotency-key replay. Custom middleware can be added for
// application-specific concerns.
package transport
