// Package session implements the per-connection protocol loop: the WebSocket
// handshake, the monotonic message-id dispatcher, request routing and the
// background execution runner that streams node status frames back to the
// originating connection.
package session

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"github.com/alger-org/alger/internal/cmn/config"
	"github.com/alger-org/alger/internal/cmn/logger"
	"github.com/alger-org/alger/internal/cmn/logger/tag"
	"github.com/alger-org/alger/internal/models"
	"github.com/alger-org/alger/internal/pipeline"
	"github.com/alger-org/alger/internal/protocol"
	"github.com/alger-org/alger/internal/service/frontend/metrics"
)

// closeTimeout bounds the store writes performed while tearing down a
// connection whose request context is already gone.
const closeTimeout = 5 * time.Second

// Handler upgrades requests on the protocol endpoint and runs one Session per
// accepted connection.
type Handler struct {
	cfg       *config.Config
	store     models.Store
	state     *State
	collector *metrics.Collector
	graphs    *pipeline.Cache
}

// NewHandler creates the WebSocket endpoint handler.
func NewHandler(cfg *config.Config, store models.Store, state *State, collector *metrics.Collector) *Handler {
	graphs := pipeline.NewCache(64, time.Hour)
	collector.TrackGraphCache(graphs)
	return &Handler{
		cfg:       cfg,
		store:     store,
		state:     state,
		collector: collector,
		graphs:    graphs,
	}
}

// ServeHTTP performs the handshake and, on success, blocks in the connection
// loop until the client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{protocol.Subprotocol},
		InsecureSkipVerify: true,
	})
	if err != nil {
		logger.Warn(ctx, "WebSocket upgrade failed", tag.RemoteAddr(r.RemoteAddr), tag.Error(err))
		return
	}

	if conn.Subprotocol() != protocol.Subprotocol {
		logger.Warn(ctx, "WebSocket subprotocol not negotiated",
			tag.String("negotiated", conn.Subprotocol()), tag.RemoteAddr(r.RemoteAddr))
		_ = conn.Close(websocket.StatusCode(protocol.CloseBadSubprotocol), "subprotocol must be "+protocol.Subprotocol)
		return
	}

	username := r.URL.Query().Get("username")
	password := r.URL.Query().Get("password")
	if username != h.cfg.Server.Auth.Username || password != h.cfg.Server.Auth.Password {
		logger.Warn(ctx, "WebSocket authentication failed", tag.User(username), tag.RemoteAddr(r.RemoteAddr))
		_ = conn.Close(websocket.StatusCode(protocol.CloseAuthFailure), "authentication failed")
		return
	}

	rc, err := h.openSession(ctx, r, username)
	if err != nil {
		logger.Error(ctx, "Failed to open connection records", tag.User(username), tag.Error(err))
		_ = conn.Close(websocket.StatusInternalError, "failed to open session")
		return
	}

	sess := newSession(h, conn, rc)
	defer sess.close()

	h.collector.ConnectionOpened()
	logger.Info(ctx, "WebSocket connection established",
		tag.User(username), tag.Connection(rc.ConnectionID),
		tag.Conversation(rc.ConversationID), tag.RemoteAddr(r.RemoteAddr))

	sess.run(ctx)

	h.collector.ConnectionClosed()
	h.closeSession(logger.FromContext(ctx), rc)
}

// openSession ensures the durable rows behind one accepted connection and
// assembles the request context handlers read from.
func (h *Handler) openSession(ctx context.Context, r *http.Request, username string) (RequestContext, error) {
	user, err := h.store.EnsureUser(ctx, username, models.UserDefaults{})
	if err != nil {
		return RequestContext{}, err
	}

	ip, port := remoteEndpoint(r)
	connectionID, err := h.store.OpenConnection(ctx, user.ID, models.ClientInfo{
		IP:        ip,
		Port:      port,
		UserAgent: r.UserAgent(),
		Origin:    r.Header.Get("Origin"),
		Path:      r.URL.Path,
	})
	if err != nil {
		return RequestContext{}, err
	}

	conversationID, err := h.store.OpenConversation(ctx, user.ID, connectionID)
	if err != nil {
		return RequestContext{}, err
	}

	return RequestContext{
		UserID:         user.ID,
		Username:       user.Username,
		DisplayName:    user.DisplayName,
		ConnectionID:   connectionID,
		ConversationID: conversationID,
		ClientIP:       ip,
	}, nil
}

// closeSession marks the conversation and connection rows closed. The request
// context is gone by the time the loop exits, so the writes run under a fresh
// bounded context.
func (h *Handler) closeSession(lg logger.Logger, rc RequestContext) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := h.store.CloseConversation(ctx, rc.ConversationID); err != nil {
		lg.Warn("Failed to close conversation", tag.Conversation(rc.ConversationID), tag.Error(err))
	}
	if err := h.store.CloseConnection(ctx, rc.ConnectionID); err != nil {
		lg.Warn("Failed to close connection", tag.Connection(rc.ConnectionID), tag.Error(err))
	}
	lg.Info("WebSocket connection closed", tag.Connection(rc.ConnectionID), tag.User(rc.Username))
}

// remoteEndpoint splits the request's remote address. RealIP middleware may
// rewrite RemoteAddr to a bare IP, in which case the port is reported as 0.
func remoteEndpoint(r *http.Request) (string, int) {
	host, portStr, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}
