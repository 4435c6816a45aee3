// Package api defines the wire and domain types shared across the taskchat
// engine: conversations, messages, tool-call records, turn requests and
// responses, the turn error taxonomy, and ID generation.
//
// Types in this package are transport-agnostic. The HTTP adapter in
// pkg/transport/http serializes them as-is; the storage layer persists them
// without reinterpretation.
package api
