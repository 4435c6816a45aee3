// Package capability defines the contract for server-executed capabilities
// and the registry that routes reasoning-requested calls to them.
//
// A capability failure that reflects domain state (a missing item, an invalid
// title) is a DomainError: it is recorded as the call's result and fed back
// to the reasoning loop, never failing the turn. Only infrastructure failures
// surface as plain errors.
package capability

import (
	"context"
	"encoding/json"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

// Provider is a single named capability. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Definition returns the capability's name, description, and JSON Schema
	// for its arguments, as advertised to the reasoning adapter.
	Definition() api.CapabilityDefinition

	// Execute runs the capability on behalf of principal. The principal is
	// injected by the engine, never taken from the arguments. A *DomainError
	// return becomes the call's error data; any other error is treated as an
	// execution failure.
	Execute(ctx context.Context, principal string, args json.RawMessage) (json.RawMessage, error)
}

// DomainError is a capability outcome that is data, not failure: it is
// serialized into the tool-call record so the reasoning adapter can explain
// it to the user.
type DomainError struct {
	// Code is one of the api.ToolError* codes.
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewNotFoundError reports that the referenced entity does not exist for the
// calling principal.
func NewNotFoundError(message string) *DomainError {
	return &DomainError{Code: api.ToolErrorNotFound, Message: message}
}

// NewValidationError reports that the arguments failed domain validation.
func NewValidationError(message string) *DomainError {
	return &DomainError{Code: api.ToolErrorValidation, Message: message}
}
