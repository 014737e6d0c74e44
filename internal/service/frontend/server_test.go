package frontend_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alger-org/alger/internal/build"
	"github.com/alger-org/alger/internal/protocol"
	"github.com/alger-org/alger/internal/test"
)

func TestServerHealth(t *testing.T) {
	srv := test.SetupServer(t)

	resp := srv.Client().Get("/api/v1/health").ExpectStatus(200).Send(t)

	var health map[string]any
	resp.Unmarshal(t, &health)
	require.Equal(t, "ok", health["status"])
	require.Equal(t, build.Version, health["version"])
}

func TestServerMetricsEndpoint(t *testing.T) {
	srv := test.SetupServer(t)

	resp := srv.Client().Get("/metrics").ExpectStatus(200).Send(t)

	assert.Contains(t, resp.Body, "alger_info")
	assert.Contains(t, resp.Body, "alger_uptime_seconds")
	assert.Contains(t, resp.Body, "alger_active_executions")
	assert.Contains(t, resp.Body, "alger_connections_open")
	assert.Contains(t, resp.Body, "go_goroutines")
}

// TestServerExecutionEndToEnd drives the demo pipeline through the websocket
// and checks that the run surfaces on the REST API afterwards.
func TestServerExecutionEndToEnd(t *testing.T) {
	srv := test.SetupServer(t)

	ws := srv.Websocket(t)
	ws.Login()

	list := ws.Exchange(protocol.TypeListPipelines, map[string]any{})
	require.Equal(t, protocol.CodePipelinesOK, list.Type)

	ack := ws.Exchange(protocol.TypeExecuteDB, map[string]any{"pipelineId": "demo"})
	require.Equal(t, protocol.CodeExecuteDBOK, ack.Type)
	execID, _ := ack.Content["executionId"].(string)
	require.NotEmpty(t, execID)

	frames := ws.RecvUntil(protocol.CodeFinished)
	require.Len(t, frames, 7, "six node frames plus the terminal frame")
	terminal := frames[len(frames)-1]
	require.Equal(t, "success", terminal.Content["status"])

	resp := srv.Client().Get("/api/v1/executions?status=finished").ExpectStatus(200).Send(t)
	var listing struct {
		Count      int `json:"count"`
		Executions []struct {
			ID           string `json:"id"`
			Status       string `json:"status"`
			HasArtifacts bool   `json:"hasArtifacts"`
		} `json:"executions"`
	}
	resp.Unmarshal(t, &listing)
	require.Equal(t, 1, listing.Count)
	require.Equal(t, execID, listing.Executions[0].ID)
	assert.True(t, listing.Executions[0].HasArtifacts, "demo run writes tracked outputs")

	detail := srv.Client().Get("/api/v1/executions/" + execID).ExpectStatus(200).Send(t)
	var body map[string]any
	detail.Unmarshal(t, &body)
	output, ok := body["output"].(map[string]any)
	require.True(t, ok, "finished execution exposes its output")
	require.Equal(t, execID+".json", output["file"])
}

func TestServerGracefulShutdown(t *testing.T) {
	srv := test.SetupServer(t)
	addr := srv.Config.Server.Addr()

	srv.Client().Get("/api/v1/health").ExpectStatus(200).Send(t)

	srv.Cancel()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return true
		}
		_ = conn.Close()
		return false
	}, 5*time.Second, 100*time.Millisecond, "listener should close after context cancellation")
}
