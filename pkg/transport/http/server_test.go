package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/taskchat-dev/taskchat/pkg/api"
	"github.com/taskchat-dev/taskchat/pkg/auth"
	"github.com/taskchat-dev/taskchat/pkg/storage/memory"
)

// countingTurnHandler counts invocations behind the full server middleware
// stack.
type countingTurnHandler struct {
	calls int
}

func (h *countingTurnHandler) ProcessTurn(_ context.Context, _ string, _ *api.TurnRequest) (*api.TurnResponse, error) {
	h.calls++
	return &api.TurnResponse{ConversationID: api.NewConversationID(), Answer: "ok"}, nil
}

func newTestServer(t *testing.T, handler *countingTurnHandler) *httptest.Server {
	t.Helper()
	store := memory.New()

	authMW := auth.Middleware(
		&auth.AuthChain{DefaultDecision: auth.Yes},
		nil,
		auth.DefaultBypassEndpoints,
	)

	srv := NewServer(handler, store, store, WithHTTPMiddleware(authMW))
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestServerTurnEndToEnd(t *testing.T) {
	handler := &countingTurnHandler{}
	ts := newTestServer(t, handler)

	resp, err := http.Post(ts.URL+"/v1/turns", "application/json", strings.NewReader(`{"message":"hi"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if handler.calls != 1 {
		t.Errorf("handler calls = %d, want 1", handler.calls)
	}
}

func TestServerIdempotencyReplay(t *testing.T) {
	handler := &countingTurnHandler{}
	ts := newTestServer(t, handler)

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/turns", strings.NewReader(`{"message":"hi"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "same-key")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, resp.StatusCode)
		}
	}

	if handler.calls != 1 {
		t.Errorf("handler calls = %d, want 1 (second request replayed)", handler.calls)
	}
}

func TestServerBypassSkipsAuth(t *testing.T) {
	ts := newTestServer(t, &countingTurnHandler{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	store := memory.New()
	srv := NewServer(&countingTurnHandler{}, store, store, WithAddr("127.0.0.1:0"))

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}
