package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

func TestHTTPStatusFromTurnError(t *testing.T) {
	cases := []struct {
		kind api.ErrorKind
		want int
	}{
		{api.ErrorKindInvalidRequest, http.StatusBadRequest},
		{api.ErrorKindNotFound, http.StatusNotFound},
		{api.ErrorKindConversationBusy, http.StatusConflict},
		{api.ErrorKindUnknownCapability, http.StatusBadGateway},
		{api.ErrorKindReasoningLoopExceeded, http.StatusBadGateway},
		{api.ErrorKindReasoningUnavailable, http.StatusServiceUnavailable},
		{api.ErrorKindPersistenceFailure, http.StatusServiceUnavailable},
		{api.ErrorKind("something_else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			got := HTTPStatusFromTurnError(&api.TurnError{Kind: tc.kind})
			if got != tc.want {
				t.Errorf("status = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestWriteTurnError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteTurnError(rec, api.NewConversationBusyError())

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error == nil || body.Error.Kind != api.ErrorKindConversationBusy {
		t.Errorf("body = %+v", body)
	}
	if !body.Error.Retryable {
		t.Error("conversation_busy must be marked retryable")
	}
}

func TestWriteErrorOpaqueInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pgx: connection reset by peer"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Message != "internal server error" {
		t.Errorf("internal details leaked: %q", body.Error.Message)
	}
}
