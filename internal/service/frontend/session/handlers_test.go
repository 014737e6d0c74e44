package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alger-org/alger/internal/cmn/config"
	"github.com/alger-org/alger/internal/models"
	"github.com/alger-org/alger/internal/protocol"
)

func seedExecution(t *testing.T, ts *testServer, status models.Status) models.Execution {
	t.Helper()
	exec, err := ts.store.CreateExecution(context.Background(), models.NewExecution{
		Source: models.SourcePayload,
		Graph:  map[string]any{"nodes": []any{}, "edges": []any{}},
		Status: status,
	})
	require.NoError(t, err)
	return exec
}

func TestExecutionValidation(t *testing.T) {
	t.Parallel()
	ts := setupServer(t)
	c := ts.dial(t, "admin", "admin")
	c.login()

	resp := c.exchange(protocol.TypeExecuteDB, map[string]any{})
	assert.Equal(t, protocol.CodeExecuteDBError, resp.Type)
	assert.Equal(t, "pipelineId is required", contentError(resp))

	resp = c.exchange(protocol.TypeExecuteDB, map[string]any{"pipelineId": "ghost"})
	assert.Equal(t, protocol.CodeExecuteDBError, resp.Type)
	assert.Equal(t, "pipeline not found", contentError(resp))

	resp = c.exchange(protocol.TypeExecuteInline, map[string]any{})
	assert.Equal(t, protocol.CodeExecuteInlineError, resp.Type)
	assert.Equal(t, "graph definition missing", contentError(resp))
}

func TestMaintenanceModeBlocksExecutions(t *testing.T) {
	t.Parallel()
	ts := setupServer(t, func(cfg *config.Config) {
		cfg.Executions.Maintenance = true
	})
	c := ts.dial(t, "admin", "admin")
	c.login()

	resp := c.exchange(protocol.TypeExecuteDB, map[string]any{"pipelineId": "demo"})
	assert.Equal(t, protocol.CodeMaintenanceMode, resp.Type)
	assert.Equal(t, "Pipelines unavailable while maintenance mode is active.", contentError(resp))
}

func TestHaltedExecutionsBlocked(t *testing.T) {
	t.Parallel()
	ts := setupServer(t, func(cfg *config.Config) {
		cfg.Executions.Halted = true
	})
	c := ts.dial(t, "admin", "admin")
	c.login()

	resp := c.exchange(protocol.TypeExecuteInline, map[string]any{
		"graph": map[string]any{"nodes": []any{map[string]any{"id": "a", "kind": "dataset"}}},
	})
	assert.Equal(t, protocol.CodeExecutionsHalted, resp.Type)
	assert.Equal(t, "Pipeline executions are halted.", contentError(resp))
}

func TestMaintenanceTakesPrecedenceOverHalt(t *testing.T) {
	t.Parallel()
	ts := setupServer(t, func(cfg *config.Config) {
		cfg.Executions.Maintenance = true
		cfg.Executions.Halted = true
	})
	c := ts.dial(t, "admin", "admin")
	c.login()

	resp := c.exchange(protocol.TypeExecuteDB, map[string]any{"pipelineId": "demo"})
	assert.Equal(t, protocol.CodeMaintenanceMode, resp.Type)
}

func TestConcurrencyLimitBlocksExecutions(t *testing.T) {
	t.Parallel()
	ts := setupServer(t) // MaxConcurrent is 1
	seedExecution(t, ts, models.StatusRunning)

	c := ts.dial(t, "admin", "admin")
	c.login()

	resp := c.exchange(protocol.TypeExecuteDB, map[string]any{"pipelineId": "demo"})
	assert.Equal(t, protocol.CodeTooManyExecutions, resp.Type)
	assert.Equal(t, "Too many pipeline execution requests in progress.", contentError(resp))
	assert.EqualValues(t, 1, resp.Content["activeExecutions"])
}

func TestStopExecution(t *testing.T) {
	t.Parallel()
	ts := setupServer(t)
	exec := seedExecution(t, ts, models.StatusRunning)

	c := ts.dial(t, "admin", "admin")
	c.login()

	resp := c.exchange(protocol.TypeStop, map[string]any{"executionId": exec.ID})
	require.Equal(t, protocol.CodeStopOK, resp.Type)
	assert.Equal(t, exec.ID, resp.Content["executionId"])
	assert.Equal(t, "stopped", resp.Content["status"])

	row, err := ts.store.GetExecution(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStopped, row.Status)
	assert.NotEmpty(t, row.CompletedAt)
}

func TestStopValidation(t *testing.T) {
	t.Parallel()
	ts := setupServer(t)
	c := ts.dial(t, "admin", "admin")
	c.login()

	resp := c.exchange(protocol.TypeStop, map[string]any{})
	assert.Equal(t, protocol.CodeStopError, resp.Type)
	assert.Equal(t, "executionId is required", contentError(resp))

	resp = c.exchange(protocol.TypeStop, map[string]any{"executionId": "ghost"})
	assert.Equal(t, protocol.CodeStopError, resp.Type)
	assert.Equal(t, "execution not found", contentError(resp))
}

func TestStopLeavesTerminalStatusAlone(t *testing.T) {
	t.Parallel()
	ts := setupServer(t)
	exec := seedExecution(t, ts, models.StatusRunning)
	require.NoError(t, ts.store.UpdateExecutionStatus(context.Background(), exec.ID, models.StatusFinished, nil))

	c := ts.dial(t, "admin", "admin")
	c.login()

	resp := c.exchange(protocol.TypeStop, map[string]any{"executionId": exec.ID})
	require.Equal(t, protocol.CodeStopOK, resp.Type)

	row, err := ts.store.GetExecution(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, row.Status)
}

func TestRequestOutputValidation(t *testing.T) {
	t.Parallel()
	ts := setupServer(t)
	running := seedExecution(t, ts, models.StatusRunning)
	queued := seedExecution(t, ts, models.StatusQueued)
	stopped := seedExecution(t, ts, models.StatusRunning)
	require.NoError(t, ts.store.UpdateExecutionStatus(context.Background(), stopped.ID, models.StatusStopped, nil))

	c := ts.dial(t, "admin", "admin")
	c.login()

	resp := c.exchange(protocol.TypeOutput, map[string]any{})
	assert.Equal(t, protocol.CodeFailed, resp.Type)
	assert.Equal(t, "executionId is required", contentError(resp))

	resp = c.exchange(protocol.TypeOutput, map[string]any{"executionId": "ghost"})
	assert.Equal(t, protocol.CodeFailed, resp.Type)
	assert.Equal(t, "execution not found", contentError(resp))

	resp = c.exchange(protocol.TypeOutput, map[string]any{"executionId": running.ID})
	assert.Equal(t, protocol.CodeFailed, resp.Type)
	assert.Equal(t, "execution '"+running.ID+"' is still running", contentError(resp))

	resp = c.exchange(protocol.TypeOutput, map[string]any{"executionId": queued.ID})
	assert.Equal(t, protocol.CodeFailed, resp.Type)
	assert.Equal(t, "execution '"+queued.ID+"' is not available (status=queued)", contentError(resp))

	resp = c.exchange(protocol.TypeOutput, map[string]any{"executionId": stopped.ID})
	assert.Equal(t, protocol.CodeFailed, resp.Type)
	assert.Equal(t, "execution '"+stopped.ID+"' is not available (status=stopped)", contentError(resp))
}

func TestRequestOutputFinished(t *testing.T) {
	t.Parallel()
	ts := setupServer(t)
	exec := seedExecution(t, ts, models.StatusRunning)
	output := &models.ExecutionOutput{
		File:    exec.ID + ".json",
		Content: `{"strategy":"breadth-first topological (Kahn)"}`,
	}
	require.NoError(t, ts.store.UpdateExecutionStatus(context.Background(), exec.ID, models.StatusFinished, output))

	c := ts.dial(t, "admin", "admin")
	c.login()

	resp := c.exchange(protocol.TypeOutput, map[string]any{"executionId": exec.ID})
	require.Equal(t, protocol.CodeFinished, resp.Type)
	assert.Equal(t, exec.ID, resp.Content["executionId"])
	assert.Equal(t, exec.ID+".json", resp.Content["file"])

	content, ok := resp.Content["content"].(map[string]any)
	require.True(t, ok, "content must be decoded JSON")
	assert.Equal(t, "breadth-first topological (Kahn)", content["strategy"])
}

func TestRequestOutputFailed(t *testing.T) {
	t.Parallel()
	ts := setupServer(t)
	exec := seedExecution(t, ts, models.StatusRunning)
	output := &models.ExecutionOutput{
		File:    exec.ID + "-error.json",
		Content: `{"error":"boom"}`,
	}
	require.NoError(t, ts.store.UpdateExecutionStatus(context.Background(), exec.ID, models.StatusFailed, output))

	c := ts.dial(t, "admin", "admin")
	c.login()

	resp := c.exchange(protocol.TypeOutput, map[string]any{"executionId": exec.ID})
	require.Equal(t, protocol.CodeFailed, resp.Type)
	assert.Equal(t, "failed", resp.Content["status"])
	assert.Equal(t, exec.ID+"-error.json", resp.Content["file"])

	content, ok := resp.Content["content"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boom", content["error"])
}
