package models

import (
	"context"
	"errors"
)

// Error variables for store lookups.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrPipelineNotFound  = errors.New("pipeline not found")
	ErrExecutionNotFound = errors.New("execution not found")
)

// Store is the persistence gateway that records every interaction flowing
// through the server. All durable state is owned by the store; implementations
// must be safe against concurrent calls from multiple connection loops.
type Store interface {
	// EnsureUser returns the user row for username, creating it with the
	// given defaults when absent.
	EnsureUser(ctx context.Context, username string, defaults UserDefaults) (User, error)
	// RecordLoginAttempt persists audit data for a login attempt and stamps
	// last_login on success.
	RecordLoginAttempt(ctx context.Context, userID string, success bool, details map[string]any) error
	// RecordUserAction audits an arbitrary user-triggered event.
	RecordUserAction(ctx context.Context, userID, action string, details map[string]any) error

	// OpenConnection inserts a row for a live socket connection and returns
	// its id.
	OpenConnection(ctx context.Context, userID string, client ClientInfo) (string, error)
	// CloseConnection marks the connection as closed.
	CloseConnection(ctx context.Context, connectionID string) error
	// OpenConversation starts a conversation log bound to a connection and
	// returns its id.
	OpenConversation(ctx context.Context, userID, connectionID string) (string, error)
	// CloseConversation marks a conversation as finished.
	CloseConversation(ctx context.Context, conversationID string) error
	// LogMessage captures one inbound or outbound frame.
	LogMessage(ctx context.Context, conversationID string, entry MessageEntry) error
	// LogError stores structured diagnostics for operator review.
	LogError(ctx context.Context, entry ErrorEntry) error

	// ListPipelines returns all persisted pipeline definitions ordered by id.
	ListPipelines(ctx context.Context) ([]Pipeline, error)
	// GetPipeline fetches a single pipeline definition.
	GetPipeline(ctx context.Context, pipelineID string) (Pipeline, error)
	// UpsertPipeline inserts or updates a pipeline definition.
	UpsertPipeline(ctx context.Context, pipeline Pipeline) error

	// CreateExecution creates an execution row and returns the stored record.
	CreateExecution(ctx context.Context, spec NewExecution) (Execution, error)
	// GetExecution returns a previously recorded execution.
	GetExecution(ctx context.Context, executionID string) (Execution, error)
	// ListExecutions returns all executions, most recently started first.
	ListExecutions(ctx context.Context) ([]Execution, error)
	// UpdateExecutionStatus updates the execution status and optional output.
	// Transitions to terminal states stamp completed_at; terminal states are
	// sticky and silently win over later updates.
	UpdateExecutionStatus(ctx context.Context, executionID string, status Status, output *ExecutionOutput) error
	// AddExecutionEvent appends a granular execution event.
	AddExecutionEvent(ctx context.Context, executionID, eventType, description string, payload map[string]any) error
	// ListExecutionEvents returns the events recorded for an execution in
	// insertion order.
	ListExecutionEvents(ctx context.Context, executionID string) ([]ExecutionEvent, error)
	// CountActiveExecutions returns the number of executions still counting
	// against the concurrency limit.
	CountActiveExecutions(ctx context.Context) (int, error)

	// Close releases the underlying storage handle.
	Close() error
}
