package test

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/alger-org/alger/internal/protocol"
)

// WSClient drives the framed websocket protocol from the client side. Every
// received frame is checked against the server's gapless monotonic id
// sequence.
type WSClient struct {
	t        *testing.T
	Conn     *websocket.Conn
	username string
	password string
	lastID   int
}

// Websocket dials the server's websocket endpoint with the configured
// handshake credentials.
func (srv *Server) Websocket(t *testing.T) *WSClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	auth := srv.Config.Server.Auth
	endpoint := fmt.Sprintf("ws://%s/ws?username=%s&password=%s",
		srv.Config.Server.Addr(), url.QueryEscape(auth.Username), url.QueryEscape(auth.Password))
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		Subprotocols: []string{protocol.Subprotocol},
	})
	require.NoError(t, err, "failed to dial websocket")
	t.Cleanup(func() { _ = conn.CloseNow() })

	return &WSClient{t: t, Conn: conn, username: auth.Username, password: auth.Password}
}

// Send transmits the next in-sequence request frame and returns its id.
func (c *WSClient) Send(typeCode int, content map[string]any) int {
	c.t.Helper()

	id := c.lastID + 1
	data, err := protocol.Message{ID: id, Type: typeCode, Content: content}.Encode()
	require.NoError(c.t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(c.t, c.Conn.Write(ctx, websocket.MessageText, data))

	c.lastID = id
	return id
}

// Recv reads one frame, asserting the monotonic id invariant.
func (c *WSClient) Recv() protocol.Message {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, data, err := c.Conn.Read(ctx)
	require.NoError(c.t, err)
	msg, err := protocol.Parse(data, protocol.DefaultErrorCode)
	require.NoError(c.t, err)
	require.Equal(c.t, c.lastID+1, msg.ID, "server frame ids must be gapless")
	c.lastID = msg.ID
	return msg
}

// Exchange sends one request and returns its direct response.
func (c *WSClient) Exchange(typeCode int, content map[string]any) protocol.Message {
	c.t.Helper()

	id := c.Send(typeCode, content)
	msg := c.Recv()
	require.Equal(c.t, id, msg.RequestID, "response must reference the request id")
	return msg
}

// RecvUntil reads frames until one carries the wanted type code and returns
// everything read, the wanted frame last.
func (c *WSClient) RecvUntil(typeCode int) []protocol.Message {
	c.t.Helper()

	var frames []protocol.Message
	for {
		msg := c.Recv()
		frames = append(frames, msg)
		if msg.Type == typeCode {
			return frames
		}
		require.Less(c.t, len(frames), 64, "frame of type %d never arrived", typeCode)
	}
}

// Login performs the opening credential exchange.
func (c *WSClient) Login() {
	c.t.Helper()

	msg := c.Exchange(protocol.TypeLogin, map[string]any{"username": c.username, "password": c.password})
	require.Equal(c.t, protocol.CodeLoginOK, msg.Type, "login failed: %v", msg.Content)
}
