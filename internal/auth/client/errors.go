package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"joblinker/pkg/platform/sentinel"
)

// GenericMessage is shown when the server's error payload cannot be parsed.
const GenericMessage = "request failed"

// APIError is a non-success answer from the backend. Status is the HTTP
// status code; Message is the server's message when it could be parsed.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses onto sentinel errors so callers can use
// errors.Is without inspecting codes.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return sentinel.ErrUnauthorized
	case http.StatusNotFound:
		return sentinel.ErrNotFound
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return sentinel.ErrUnavailable
	}
	return nil
}

// ParseErrorMessage extracts a human-readable message from an error body.
// It understands the backend envelope and the bare {"msg"} / {"error"} shapes,
// and falls back to GenericMessage.
func ParseErrorMessage(body []byte) string {
	var payload struct {
		Message any    `json:"message"`
		Msg     string `json:"msg"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return GenericMessage
	}
	switch m := payload.Message.(type) {
	case string:
		if m != "" {
			return m
		}
	case map[string]any, []any:
		// validation errors arrive as field -> messages
		if raw, err := json.Marshal(m); err == nil {
			return string(raw)
		}
	}
	if payload.Msg != "" {
		return payload.Msg
	}
	if payload.Error != "" {
		return payload.Error
	}
	return GenericMessage
}
