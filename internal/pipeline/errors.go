package pipeline

import (
	"errors"
	"fmt"
)

// Error is raised for invalid graphs, unknown node kinds, arity problems and
// node callback failures. Anything else escaping the engine is a bug.
type Error struct {
	Message string
}

// Error returns the failure message.
func (e *Error) Error() string {
	return e.Message
}

func errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// ErrStopped is returned when a polled stop check aborts the run between
// nodes. Callers distinguish it from validation and node failures.
var ErrStopped = errors.New("execution stopped")
