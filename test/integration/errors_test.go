package integration

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

func TestInvalidJSON(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, testEnv.BaseURL()+"/v1/turns",
		bytes.NewReader([]byte(`{invalid json`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+aliceKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	requireErrorKind(t, resp, http.StatusBadRequest, api.ErrorKindInvalidRequest)
}

func TestEmptyMessage(t *testing.T) {
	resp := doJSON(t, http.MethodPost, testEnv.BaseURL()+"/v1/turns", aliceKey,
		api.TurnRequest{Message: ""}, nil)
	requireErrorKind(t, resp, http.StatusBadRequest, api.ErrorKindInvalidRequest)
}

func TestMalformedConversationID(t *testing.T) {
	resp := doJSON(t, http.MethodPost, testEnv.BaseURL()+"/v1/turns", aliceKey,
		api.TurnRequest{Message: "hi", ConversationID: "not-a-conversation"}, nil)
	requireErrorKind(t, resp, http.StatusBadRequest, api.ErrorKindInvalidRequest)
}

func TestUnknownConversation(t *testing.T) {
	resp := doJSON(t, http.MethodPost, testEnv.BaseURL()+"/v1/turns", aliceKey,
		api.TurnRequest{Message: "hi", ConversationID: api.NewConversationID()}, nil)
	requireErrorKind(t, resp, http.StatusNotFound, api.ErrorKindNotFound)
}

func TestReasoningBackendFailure(t *testing.T) {
	resp := doJSON(t, http.MethodPost, testEnv.BaseURL()+"/v1/turns", aliceKey,
		api.TurnRequest{Message: "fail please"}, nil)
	requireErrorKind(t, resp, http.StatusServiceUnavailable, api.ErrorKindReasoningUnavailable)

	// The failed turn left nothing behind.
	listResp := doJSON(t, http.MethodGet, testEnv.BaseURL()+"/v1/conversations", aliceKey, nil, nil)
	var page struct {
		Conversations []api.Conversation `json:"conversations"`
	}
	decodeJSON(t, listResp, &page)
	for _, conv := range page.Conversations {
		msgResp := doJSON(t, http.MethodGet,
			testEnv.BaseURL()+"/v1/conversations/"+conv.ID+"/messages", aliceKey, nil, nil)
		var msgs struct {
			Messages []api.Message `json:"messages"`
		}
		decodeJSON(t, msgResp, &msgs)
		for _, msg := range msgs.Messages {
			if msg.Content == "fail please" {
				t.Error("failed turn was persisted")
			}
		}
	}
}

func TestMissingCredentials(t *testing.T) {
	resp := doJSON(t, http.MethodPost, testEnv.BaseURL()+"/v1/turns", "",
		api.TurnRequest{Message: "hi"}, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestWrongCredentials(t *testing.T) {
	resp := doJSON(t, http.MethodPost, testEnv.BaseURL()+"/v1/turns", "sk-wrong-key",
		api.TurnRequest{Message: "hi"}, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestUnsupportedContentType(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, testEnv.BaseURL()+"/v1/turns",
		bytes.NewReader([]byte(`message=hi`)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+aliceKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	requireErrorKind(t, resp, http.StatusUnsupportedMediaType, api.ErrorKindInvalidRequest)
}
