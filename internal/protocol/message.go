// Package protocol implements the framed JSON wire protocol spoken over
// each WebSocket connection. A frame carries a monotonic message id, the id
// of the request it responds to, a numeric type code, and a payload that is
// itself a JSON-encoded string.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message is a single protocol frame with its payload decoded.
type Message struct {
	ID        int
	RequestID int
	Type      int
	Content   map[string]any
}

// Error is a protocol violation carrying the response code to emit.
type Error struct {
	Code    int
	Message string
}

// NewError creates a protocol error with the given code and message.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// wireFrame is the on-wire JSON schema of a frame. The payload travels as a
// JSON-encoded string in the content field.
type wireFrame struct {
	ID        int    `json:"id"`
	RequestID int    `json:"requestId"`
	Type      int    `json:"type"`
	Content   string `json:"content"`
}

// Parse decodes and validates an incoming frame. Violations are reported as
// *Error with the given error code: invalid outer JSON, missing or
// non-integer header fields, a non-string content field, and invalid inner
// JSON each carry a distinct message. An empty content string decodes as an
// empty payload.
func Parse(data []byte, errorCode int) (Message, error) {
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		return Message{}, NewError(errorCode, "Payload is not valid JSON")
	}

	id, okID := intField(decoded, "id")
	requestID, okRequestID := intField(decoded, "requestId")
	typeCode, okType := intField(decoded, "type")
	contentRaw, okContent := decoded["content"]
	if !okID || !okRequestID || !okType || !okContent {
		return Message{}, NewError(errorCode, "Missing or non-integer protocol fields")
	}

	var contentStr string
	if err := json.Unmarshal(contentRaw, &contentStr); err != nil {
		return Message{}, NewError(errorCode, "Content field must be a JSON-encoded string")
	}
	if contentStr == "" {
		contentStr = "{}"
	}

	var content map[string]any
	if err := json.Unmarshal([]byte(contentStr), &content); err != nil {
		return Message{}, NewError(errorCode, "Content must contain valid JSON")
	}

	return Message{
		ID:        id,
		RequestID: requestID,
		Type:      typeCode,
		Content:   content,
	}, nil
}

// intField extracts an integer header field. Null, missing and non-integer
// values all fail.
func intField(m map[string]json.RawMessage, key string) (int, bool) {
	raw, ok := m[key]
	if !ok {
		return 0, false
	}
	var v *int
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return 0, false
	}
	return *v, true
}

// Encode serialises a frame to its wire form, re-encoding the payload as a
// JSON string. A nil payload encodes as an empty object.
func (m Message) Encode() ([]byte, error) {
	content := m.Content
	if content == nil {
		content = map[string]any{}
	}
	inner, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame content: %w", err)
	}
	data, err := json.Marshal(wireFrame{
		ID:        m.ID,
		RequestID: m.RequestID,
		Type:      m.Type,
		Content:   string(inner),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}
