package openaicompat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/taskchat-dev/taskchat/pkg/reasoning"
)

// errEmptyResponse marks a backend response with no choices.
var errEmptyResponse = fmt.Errorf("%w: backend returned no choices", reasoning.ErrUnavailable)

// errBlankAnswer marks a final decision whose content is empty. An empty
// assistant message must never be committed as a turn.
var errBlankAnswer = fmt.Errorf("%w: backend returned neither content nor tool calls", reasoning.ErrUnavailable)

// mapHTTPError converts a non-2xx backend response into an error wrapping
// reasoning.ErrUnavailable. The backend's own error message is preserved
// when the body parses.
func mapHTTPError(resp *http.Response) error {
	message := extractErrorMessage(resp.Body)
	if message == "" {
		message = fmt.Sprintf("backend returned HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("%w: %s", reasoning.ErrUnavailable, message)
}

// mapNetworkError converts a network-level error (connection refused,
// timeout, DNS resolution failure) into an error wrapping
// reasoning.ErrUnavailable.
func mapNetworkError(err error) error {
	return fmt.Errorf("%w: %s", reasoning.ErrUnavailable, err.Error())
}

// extractErrorMessage tries to parse the response body as a
// ChatErrorResponse and returns the error message if found.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return ""
}

// IsUnavailable reports whether err marks a reasoning backend failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, reasoning.ErrUnavailable)
}
