package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

// HTTPStatusFromTurnError maps a turn error kind to its HTTP status code.
// Transport-level failures (body too large, unsupported content type) are
// handled separately by the HTTP adapter.
func HTTPStatusFromTurnError(err *api.TurnError) int {
	switch err.Kind {
	case api.ErrorKindInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorKindNotFound:
		return http.StatusNotFound
	case api.ErrorKindConversationBusy:
		return http.StatusConflict
	case api.ErrorKindUnknownCapability, api.ErrorKindReasoningLoopExceeded:
		return http.StatusBadGateway
	case api.ErrorKindReasoningUnavailable, api.ErrorKindPersistenceFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteTurnError writes a classified turn error as a JSON response body,
// deriving the status code from the kind.
func WriteTurnError(w http.ResponseWriter, turnErr *api.TurnError) {
	WriteErrorResponse(w, turnErr, HTTPStatusFromTurnError(turnErr))
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api with an explicit status code.
func WriteErrorResponse(w http.ResponseWriter, turnErr *api.TurnError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: turnErr})
}

// WriteError coerces any handler error into a JSON error response. A
// *api.TurnError keeps its kind and mapped status; anything else becomes an
// opaque 500 so internal details never reach the client.
func WriteError(w http.ResponseWriter, err error) {
	var turnErr *api.TurnError
	if errors.As(err, &turnErr) {
		WriteTurnError(w, turnErr)
		return
	}
	WriteErrorResponse(w, &api.TurnError{
		Kind:    "internal",
		Message: "internal server error",
	}, http.StatusInternalServerError)
}
