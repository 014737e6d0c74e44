package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/alger-org/alger/internal/models"
)

const executionColumns = `id, pipeline_id, source, graph, params, status, requested_by, output, started_at, completed_at`

// CreateExecution inserts the execution row, records the creation event and
// returns the stored record.
func (s *Store) CreateExecution(ctx context.Context, spec models.NewExecution) (models.Execution, error) {
	status := spec.Status
	if status == models.StatusUnknown {
		status = models.StatusQueued
	}
	graph, err := encodeJSON(spec.Graph)
	if err != nil {
		return models.Execution{}, err
	}
	params, err := encodeJSON(spec.Params)
	if err != nil {
		return models.Execution{}, err
	}
	output, err := encodeOutput(spec.Output)
	if err != nil {
		return models.Execution{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (id, pipeline_id, source, graph, params, status, requested_by, output)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nullString(spec.PipelineID), spec.Source,
		graph, params, status.String(),
		nullString(spec.RequestedBy), output,
	); err != nil {
		return models.Execution{}, fmt.Errorf("sqlite: failed to insert execution: %w", err)
	}
	if err := s.addExecutionEvent(ctx, id, "status",
		fmt.Sprintf("Execution created with status '%s'", status),
		map[string]any{"status": status.String(), "source": spec.Source},
	); err != nil {
		return models.Execution{}, err
	}
	return s.getExecution(ctx, id)
}

// GetExecution returns a previously recorded execution.
func (s *Store) GetExecution(ctx context.Context, executionID string) (models.Execution, error) {
	return s.getExecution(ctx, executionID)
}

func (s *Store) getExecution(ctx context.Context, executionID string) (models.Execution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id = ?`, executionID)
	return scanExecution(row)
}

// ListExecutions returns all executions, most recently started first.
func (s *Store) ListExecutions(ctx context.Context) ([]models.Execution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM executions ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var executions []models.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate executions: %w", err)
	}
	return executions, nil
}

func scanExecution(row rowScanner) (models.Execution, error) {
	var e models.Execution
	var pipelineID, graph, params, requestedBy, output, completedAt sql.NullString
	var status string
	err := row.Scan(&e.ID, &pipelineID, &e.Source, &graph, &params, &status,
		&requestedBy, &output, &e.StartedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Execution{}, models.ErrExecutionNotFound
	}
	if err != nil {
		return models.Execution{}, fmt.Errorf("sqlite: failed to scan execution row: %w", err)
	}
	e.PipelineID = pipelineID.String
	e.Graph = decodeJSON(graph)
	if e.Graph == nil {
		e.Graph = map[string]any{}
	}
	e.Params = decodeJSON(params)
	if e.Params == nil {
		e.Params = map[string]any{}
	}
	e.Status = models.ParseStatus(status)
	e.RequestedBy = requestedBy.String
	e.Output = decodeOutput(output)
	e.CompletedAt = completedAt.String
	return e, nil
}

func encodeOutput(out models.ExecutionOutput) (any, error) {
	if out == (models.ExecutionOutput{}) {
		return nil, nil
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to serialize execution output: %w", err)
	}
	return string(raw), nil
}

func decodeOutput(raw sql.NullString) models.ExecutionOutput {
	if !raw.Valid || raw.String == "" {
		return models.ExecutionOutput{}
	}
	var out models.ExecutionOutput
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return models.ExecutionOutput{}
	}
	return out
}

// UpdateExecutionStatus applies a status transition, keeping any previously
// stored output unless a replacement is supplied. Transitions into a terminal
// status stamp completed_at; terminal statuses are sticky, so updates against
// an already finished, failed or stopped row are silently dropped.
func (s *Store) UpdateExecutionStatus(ctx context.Context, executionID string, status models.Status, output *models.ExecutionOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getExecution(ctx, executionID)
	if err != nil {
		return err
	}
	if current.Status.IsTerminal() {
		return nil
	}

	var encoded any
	if output != nil {
		encoded, err = encodeOutput(*output)
		if err != nil {
			return err
		}
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE executions SET
			status       = ?,
			output       = COALESCE(?, output),
			completed_at = CASE WHEN ? THEN CURRENT_TIMESTAMP ELSE completed_at END
		WHERE id = ?`,
		status.String(), encoded, status.IsTerminal(), executionID,
	); err != nil {
		return fmt.Errorf("sqlite: failed to update execution %s: %w", executionID, err)
	}
	return s.addExecutionEvent(ctx, executionID, "status",
		fmt.Sprintf("Execution status updated to '%s'", status),
		map[string]any{"status": status.String()})
}

// AddExecutionEvent appends one granular event to the execution's audit
// trail.
func (s *Store) AddExecutionEvent(ctx context.Context, executionID, eventType, description string, payload map[string]any) error {
	return s.addExecutionEvent(ctx, executionID, eventType, description, payload)
}

func (s *Store) addExecutionEvent(ctx context.Context, executionID, eventType, description string, payload map[string]any) error {
	encoded, err := encodeJSON(payload)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_events (execution_id, event_type, description, payload)
		VALUES (?, ?, ?, ?)`,
		executionID, eventType, nullString(description), encoded,
	); err != nil {
		return fmt.Errorf("sqlite: failed to record execution event: %w", err)
	}
	return nil
}

// ListExecutionEvents returns the events recorded for an execution in
// insertion order.
func (s *Store) ListExecutionEvents(ctx context.Context, executionID string) ([]models.ExecutionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, execution_id, event_type, description, payload, created_at
		FROM execution_events WHERE execution_id = ? ORDER BY id ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list execution events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.ExecutionEvent
	for rows.Next() {
		var ev models.ExecutionEvent
		var description, payload sql.NullString
		if err := rows.Scan(&ev.ID, &ev.ExecutionID, &ev.EventType,
			&description, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan execution event: %w", err)
		}
		ev.Description = description.String
		ev.Payload = decodeJSON(payload)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate execution events: %w", err)
	}
	return events, nil
}

// CountActiveExecutions returns how many executions still count against the
// concurrency limit.
func (s *Store) CountActiveExecutions(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM executions WHERE status IN (?, ?)`,
		models.StatusRunning.String(), models.StatusQueued.String())
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: failed to count active executions: %w", err)
	}
	return count, nil
}
