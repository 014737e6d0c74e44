package session_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/alger-org/alger/internal/cmn/config"
	"github.com/alger-org/alger/internal/persis/sqlite"
	"github.com/alger-org/alger/internal/protocol"
	"github.com/alger-org/alger/internal/service/frontend/metrics"
	"github.com/alger-org/alger/internal/service/frontend/session"
)

// testServer hosts the websocket endpoint against a seeded temp store.
type testServer struct {
	cfg   *config.Config
	store *sqlite.Store
	url   string
}

func setupServer(t *testing.T, mutators ...func(*config.Config)) *testServer {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Auth.Username = "admin"
	cfg.Server.Auth.Password = "admin"
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.ArtifactsDir = filepath.Join(dir, "artifacts")
	cfg.Paths.DBFile = filepath.Join(dir, "data", "alger.db")
	cfg.Executions.MaxConcurrent = 1
	// Pacing stays off so runs complete instantly; timing-sensitive tests
	// opt back in through a mutator.
	for _, mutate := range mutators {
		mutate(cfg)
	}

	store, err := sqlite.New(ctx, cfg.Paths.DBFile)
	require.NoError(t, err)
	require.NoError(t, store.Seed(ctx))
	t.Cleanup(func() { _ = store.Close() })

	handler := session.NewHandler(cfg, store, session.StateFromConfig(cfg), metrics.NewCollector("test", store))
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		cfg:   cfg,
		store: store,
		url:   "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

// dial opens a websocket connection with the given credentials, negotiating
// the protocol's subprotocol.
func (ts *testServer) dial(t *testing.T, username, password string) *wsClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	endpoint := ts.url + "/ws?username=" + url.QueryEscape(username) + "&password=" + url.QueryEscape(password)
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		Subprotocols: []string{protocol.Subprotocol},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })

	return &wsClient{t: t, conn: conn}
}

// wsClient drives the framed protocol from the client side. Every received
// frame is checked against the server's gapless monotonic id sequence.
type wsClient struct {
	t      *testing.T
	conn   *websocket.Conn
	lastID int
}

func (c *wsClient) sendRaw(data []byte) {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(c.t, c.conn.Write(ctx, websocket.MessageText, data))
}

// sendFrame transmits a frame with an explicit id, leaving the client's id
// bookkeeping untouched. Used to provoke id mismatches.
func (c *wsClient) sendFrame(id, typeCode int, content map[string]any) {
	c.t.Helper()
	data, err := protocol.Message{ID: id, Type: typeCode, Content: content}.Encode()
	require.NoError(c.t, err)
	c.sendRaw(data)
}

// send transmits the next in-sequence request frame and returns its id.
func (c *wsClient) send(typeCode int, content map[string]any) int {
	c.t.Helper()
	id := c.lastID + 1
	c.sendFrame(id, typeCode, content)
	c.lastID = id
	return id
}

// recv reads one frame, asserting the monotonic id invariant.
func (c *wsClient) recv() protocol.Message {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, data, err := c.conn.Read(ctx)
	require.NoError(c.t, err)
	msg, err := protocol.Parse(data, protocol.DefaultErrorCode)
	require.NoError(c.t, err)
	require.Equal(c.t, c.lastID+1, msg.ID, "server frame ids must be gapless")
	c.lastID = msg.ID
	return msg
}

// exchange sends one request and returns its direct response.
func (c *wsClient) exchange(typeCode int, content map[string]any) protocol.Message {
	c.t.Helper()
	id := c.send(typeCode, content)
	msg := c.recv()
	require.Equal(c.t, id, msg.RequestID, "response must reference the request id")
	return msg
}

// recvUntil reads frames until one carries the wanted type code and returns
// everything read, the wanted frame last.
func (c *wsClient) recvUntil(typeCode int) []protocol.Message {
	c.t.Helper()
	var frames []protocol.Message
	for {
		msg := c.recv()
		frames = append(frames, msg)
		if msg.Type == typeCode {
			return frames
		}
		require.Less(c.t, len(frames), 64, "frame of type %d never arrived", typeCode)
	}
}

// drain reads frames until the deadline passes. The connection is unusable
// afterwards, so only call it at the end of a test.
func (c *wsClient) drain(d time.Duration) []protocol.Message {
	c.t.Helper()
	var frames []protocol.Message
	deadline := time.Now().Add(d)
	for {
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		_, data, err := c.conn.Read(ctx)
		cancel()
		if err != nil {
			return frames
		}
		msg, err := protocol.Parse(data, protocol.DefaultErrorCode)
		require.NoError(c.t, err)
		require.Equal(c.t, c.lastID+1, msg.ID, "server frame ids must be gapless")
		c.lastID = msg.ID
		frames = append(frames, msg)
	}
}

// login performs the opening credential exchange.
func (c *wsClient) login() {
	c.t.Helper()
	msg := c.exchange(protocol.TypeLogin, map[string]any{"username": "admin", "password": "admin"})
	require.Equal(c.t, protocol.CodeLoginOK, msg.Type)
}

func contentError(msg protocol.Message) string {
	text, _ := msg.Content["error"].(string)
	return text
}
