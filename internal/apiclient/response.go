package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Result is a successful response body.
type Result struct {
	StatusCode int
	Data       json.RawMessage
}

// Decode unmarshals the response body into v.
func (r Result) Decode(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return &MalformedResponseError{StatusCode: r.StatusCode, Err: err}
	}
	return nil
}

func classify(resp *http.Response, fallback string) (Result, error) {
	raw, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := unknownErrorMessage
		if readErr == nil {
			message = errorMessage(raw, fallback)
		}
		return Result{}, &HTTPError{StatusCode: resp.StatusCode, Message: message}
	}

	if readErr != nil {
		return Result{}, &MalformedResponseError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", readErr)}
	}

	var data json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return Result{}, &MalformedResponseError{StatusCode: resp.StatusCode, Err: err}
	}
	return Result{StatusCode: resp.StatusCode, Data: data}, nil
}

// errorMessage reads FastAPI style {"detail": ...} bodies first, then
// {"message": ...} and {"error": ...}.
func errorMessage(raw []byte, fallback string) string {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return unknownErrorMessage
	}

	body, ok := decoded.(map[string]any)
	if !ok {
		return fallbackOrUnknown(fallback)
	}

	switch detail := body["detail"].(type) {
	case string:
		if strings.TrimSpace(detail) != "" {
			return detail
		}
	case []any:
		if msg := joinValidationMessages(detail); msg != "" {
			return msg
		}
	}

	for _, key := range []string{"message", "error"} {
		if msg, ok := body[key].(string); ok && strings.TrimSpace(msg) != "" {
			return msg
		}
	}
	return fallbackOrUnknown(fallback)
}

func joinValidationMessages(items []any) string {
	var msgs []string
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if msg, ok := entry["msg"].(string); ok && msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return strings.Join(msgs, "; ")
}

func fallbackOrUnknown(fallback string) string {
	if fallback == "" {
		return unknownErrorMessage
	}
	return fallback
}
