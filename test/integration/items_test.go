package integration

import (
	"net/http"
	"testing"

	"github.com/taskchat-dev/taskchat/pkg/api"
)

// TestItemLifecycle walks one item through create, read, update, filter,
// and delete on the REST surface.
func TestItemLifecycle(t *testing.T) {
	base := testEnv.BaseURL() + "/v1/items"

	// Create.
	createResp := doJSON(t, http.MethodPost, base, bobKey,
		map[string]any{"title": "file expense report", "description": "Q3 receipts"}, nil)
	if createResp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", createResp.StatusCode, readBody(t, createResp))
	}
	var created api.Item
	decodeJSON(t, createResp, &created)
	if created.ID == "" || created.Title != "file expense report" {
		t.Fatalf("created item = %+v", created)
	}
	if created.Completed {
		t.Error("new item is already completed")
	}

	// Read back.
	getResp := doJSON(t, http.MethodGet, base+"/"+created.ID, bobKey, nil, nil)
	var fetched api.Item
	decodeJSON(t, getResp, &fetched)
	if fetched.ID != created.ID || fetched.Description != "Q3 receipts" {
		t.Errorf("fetched item = %+v", fetched)
	}

	// Mark complete.
	patchResp := doJSON(t, http.MethodPatch, base+"/"+created.ID, bobKey,
		map[string]any{"completed": true}, nil)
	var patched api.Item
	decodeJSON(t, patchResp, &patched)
	if !patched.Completed {
		t.Error("patched item is not completed")
	}

	// The completed filter finds it, the pending filter does not.
	completedResp := doJSON(t, http.MethodGet, base+"?status=completed", bobKey, nil, nil)
	var completed struct {
		Items []api.Item `json:"items"`
	}
	decodeJSON(t, completedResp, &completed)
	if !containsItem(completed.Items, created.ID) {
		t.Error("completed filter does not include the item")
	}

	pendingResp := doJSON(t, http.MethodGet, base+"?status=pending", bobKey, nil, nil)
	var pending struct {
		Items []api.Item `json:"items"`
	}
	decodeJSON(t, pendingResp, &pending)
	if containsItem(pending.Items, created.ID) {
		t.Error("pending filter includes a completed item")
	}

	// Delete.
	deleteResp := doJSON(t, http.MethodDelete, base+"/"+created.ID, bobKey, nil, nil)
	deleteResp.Body.Close()
	if deleteResp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", deleteResp.StatusCode)
	}

	goneResp := doJSON(t, http.MethodGet, base+"/"+created.ID, bobKey, nil, nil)
	requireErrorKind(t, goneResp, http.StatusNotFound, api.ErrorKindNotFound)
}

func TestItemValidation(t *testing.T) {
	base := testEnv.BaseURL() + "/v1/items"

	// Missing title.
	resp := doJSON(t, http.MethodPost, base, bobKey, map[string]any{"description": "x"}, nil)
	requireErrorKind(t, resp, http.StatusBadRequest, api.ErrorKindInvalidRequest)

	// Blank title.
	resp = doJSON(t, http.MethodPost, base, bobKey, map[string]any{"title": "   "}, nil)
	requireErrorKind(t, resp, http.StatusBadRequest, api.ErrorKindInvalidRequest)

	// Bad status filter.
	resp = doJSON(t, http.MethodGet, base+"?status=someday", bobKey, nil, nil)
	requireErrorKind(t, resp, http.StatusBadRequest, api.ErrorKindInvalidRequest)
}

func containsItem(items []api.Item, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}
