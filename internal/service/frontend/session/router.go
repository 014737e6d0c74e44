package session

import (
	"context"
	"fmt"

	"github.com/alger-org/alger/internal/protocol"
)

// response is a handler outcome: the frame to answer with plus an optional
// background task launched after the frame went out.
type response struct {
	code    int
	content map[string]any
	task    func(ctx context.Context)
}

func okResponse(code int, content map[string]any) response {
	return response{code: code, content: content}
}

func errResponse(code int, format string, args ...any) response {
	return response{code: code, content: map[string]any{"error": fmt.Sprintf(format, args...)}}
}

// route maps one validated inbound frame to its handler.
func (s *Session) route(ctx context.Context, msg protocol.Message) response {
	switch msg.Type {
	case protocol.TypeLogin:
		return s.handleLogin(ctx, msg)
	case protocol.TypeUserData:
		return s.handleUserData(ctx, msg)
	case protocol.TypeListPipelines:
		return s.handleListPipelines(ctx, msg)
	case protocol.TypeExecuteDB:
		return s.handleExecuteFromDB(ctx, msg)
	case protocol.TypeExecuteInline:
		return s.handleExecuteFromPayload(ctx, msg)
	case protocol.TypeStop:
		return s.handleStopExecution(ctx, msg)
	case protocol.TypeOutput:
		return s.handleRequestOutput(ctx, msg)
	default:
		return errResponse(protocol.CodeUnknownType, "unsupported message type: %d", msg.Type)
	}
}

// contentString extracts a string payload field; anything else reads as
// absent.
func contentString(content map[string]any, key string) string {
	if v, ok := content[key].(string); ok {
		return v
	}
	return ""
}

// contentMap extracts an object payload field.
func contentMap(content map[string]any, key string) map[string]any {
	if v, ok := content[key].(map[string]any); ok {
		return v
	}
	return nil
}
