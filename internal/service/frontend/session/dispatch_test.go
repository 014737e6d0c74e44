package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/alger-org/alger/internal/cmn/config"
	"github.com/alger-org/alger/internal/models"
	"github.com/alger-org/alger/internal/persis/sqlite"
	"github.com/alger-org/alger/internal/protocol"
)

// TestSendSerialisesMessageIDs hammers a session with concurrent senders and
// verifies the wire carries a gapless id sequence in write order.
func TestSendSerialisesMessageIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "alger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	user, err := store.EnsureUser(ctx, "admin", models.UserDefaults{})
	require.NoError(t, err)
	connID, err := store.OpenConnection(ctx, user.ID, models.ClientInfo{})
	require.NoError(t, err)
	convID, err := store.OpenConversation(ctx, user.ID, connID)
	require.NoError(t, err)

	h := NewHandler(&config.Config{}, store, &State{MaxConcurrentExecutions: 1}, nil)
	rc := RequestContext{
		UserID:         user.ID,
		Username:       "admin",
		ConnectionID:   connID,
		ConversationID: convID,
	}

	const frameCount = 25
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		sess := newSession(h, conn, rc)
		var inner sync.WaitGroup
		for i := 0; i < frameCount; i++ {
			inner.Add(1)
			go func(n int) {
				defer inner.Done()
				_ = sess.send(r.Context(), 0, protocol.CodeNodeStatus, map[string]any{"n": n})
			}(i)
		}
		inner.Wait()
		sess.close()
		close(done)
	}))
	defer srv.Close()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	seen := make(map[int]bool, frameCount)
	for i := 1; i <= frameCount; i++ {
		_, data, err := conn.Read(dialCtx)
		require.NoError(t, err)
		msg, err := protocol.Parse(data, protocol.DefaultErrorCode)
		require.NoError(t, err)
		require.Equal(t, i, msg.ID, "ids must be gapless in wire order")
		require.Equal(t, protocol.CodeNodeStatus, msg.Type)

		n, ok := msg.Content["n"].(float64)
		require.True(t, ok)
		require.False(t, seen[int(n)], "frame %d delivered twice", int(n))
		seen[int(n)] = true
	}
	require.Len(t, seen, frameCount)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server handler never finished")
	}
}

func TestSendOnClosedSession(t *testing.T) {
	t.Parallel()
	sess := &Session{closed: true}
	err := sess.send(context.Background(), 0, protocol.CodeNodeStatus, map[string]any{})
	require.ErrorIs(t, err, errSessionClosed)
}
