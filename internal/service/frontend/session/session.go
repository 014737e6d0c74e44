package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"

	"github.com/alger-org/alger/internal/cmn/logger"
	"github.com/alger-org/alger/internal/cmn/logger/tag"
	"github.com/alger-org/alger/internal/models"
	"github.com/alger-org/alger/internal/protocol"
)

// RequestContext identifies the authenticated client behind one connection
// and the durable rows backing it. It is immutable for the connection's
// lifetime.
type RequestContext struct {
	UserID         string
	Username       string
	DisplayName    string
	ConnectionID   string
	ConversationID string
	ClientIP       string
}

var errSessionClosed = errors.New("session closed")

// Session is the per-connection state machine. It reads frames, enforces the
// monotonic message-id discipline, routes requests and serialises every
// outbound frame under one mutex, so asynchronously emitted status frames
// keep the on-wire id sequence gapless.
type Session struct {
	handler *Handler
	conn    *websocket.Conn
	rc      RequestContext

	// mu guards lastID, closed and the conn write path. Holding it across
	// the write and the conversation-log insert keeps the log ordered
	// identically to the wire.
	mu     sync.Mutex
	lastID int
	closed bool
}

func newSession(h *Handler, conn *websocket.Conn, rc RequestContext) *Session {
	return &Session{handler: h, conn: conn, rc: rc}
}

// run processes inbound frames until the client disconnects or the context
// ends. It never lets a handler failure escape the connection.
func (s *Session) run(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				logger.Debug(ctx, "WebSocket read loop ended", tag.Connection(s.rc.ConnectionID))
			} else {
				logger.Warn(ctx, "WebSocket read failed", tag.Connection(s.rc.ConnectionID), tag.Error(err))
			}
			return
		}
		s.handler.collector.FrameReceived()
		s.handleFrame(ctx, data)
	}
}

// handleFrame runs one inbound frame through the parse, id-check and dispatch
// stages.
func (s *Session) handleFrame(ctx context.Context, data []byte) {
	msg, err := protocol.Parse(data, protocol.DefaultErrorCode)
	if err != nil {
		var perr *protocol.Error
		if !errors.As(err, &perr) {
			perr = protocol.NewError(protocol.DefaultErrorCode, "Payload is not valid JSON")
		}
		s.logIncomingError(ctx, perr.Message)
		if sendErr := s.send(ctx, 0, perr.Code, map[string]any{"error": perr.Message}); sendErr != nil {
			logger.Warn(ctx, "Failed to send protocol error frame", tag.Code(perr.Code), tag.Error(sendErr))
		}
		return
	}

	s.logIncoming(ctx, msg)

	s.mu.Lock()
	expected := s.lastID + 1
	if msg.ID != expected {
		// The rejection frame itself occupies the expected id slot.
		sendErr := s.sendLocked(ctx, msg.ID, protocol.CodeMessageIDError, map[string]any{
			"error":      "incorrect message id",
			"expectedId": expected,
			"receivedId": msg.ID,
		})
		s.mu.Unlock()
		if sendErr != nil {
			logger.Warn(ctx, "Failed to send message id rejection", tag.MessageID(msg.ID), tag.Error(sendErr))
		}
		return
	}
	s.lastID = msg.ID
	s.mu.Unlock()

	s.dispatch(ctx, msg)
}

// dispatch routes a validated frame, sends the response and launches the
// handler's background task, if any.
func (s *Session) dispatch(ctx context.Context, msg protocol.Message) {
	resp := s.safeRoute(ctx, msg)
	if err := s.send(ctx, msg.ID, resp.code, resp.content); err != nil {
		logger.Warn(ctx, "Failed to send response frame",
			tag.MessageID(msg.ID), tag.Code(resp.code), tag.Error(err))
	}
	if resp.task != nil {
		go resp.task(s.taskContext(ctx))
	}
}

// safeRoute guards the router so a handler panic surfaces as a redacted
// error frame instead of tearing down the connection.
func (s *Session) safeRoute(ctx context.Context, msg protocol.Message) (resp response) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Recovered from handler panic",
				tag.MessageID(msg.ID), tag.String("panic", fmt.Sprint(r)))
			resp = errResponse(protocol.CodeUnknownType, "internal server error")
		}
	}()
	return s.route(ctx, msg)
}

// taskContext derives the context execution runners live on. Runners must
// outlive the request that spawned them, so only the logger is carried over.
func (s *Session) taskContext(ctx context.Context) context.Context {
	return logger.WithLogger(context.Background(), logger.FromContext(ctx))
}

// send allocates the next message id under the dispatcher lock and writes the
// frame. Every outbound frame, including those emitted by background runners,
// funnels through here.
func (s *Session) send(ctx context.Context, requestID, typeCode int, content map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(ctx, requestID, typeCode, content)
}

func (s *Session) sendLocked(ctx context.Context, requestID, typeCode int, content map[string]any) error {
	if s.closed {
		return errSessionClosed
	}

	msg := protocol.Message{
		ID:        s.lastID + 1,
		RequestID: requestID,
		Type:      typeCode,
		Content:   content,
	}
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return err
	}
	s.lastID = msg.ID

	s.handler.collector.FrameSent(typeCode)
	s.logOutgoing(ctx, msg)
	return nil
}

// close marks the session closed and shuts the socket. Safe to call more
// than once; late sends from background runners fail fast afterwards.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	_ = s.conn.Close(websocket.StatusNormalClosure, "connection closed")
}

// Frame logging is best-effort: a full conversation log is an audit aid, not
// a delivery precondition.

func (s *Session) logIncoming(ctx context.Context, msg protocol.Message) {
	err := s.handler.store.LogMessage(ctx, s.rc.ConversationID, models.MessageEntry{
		Direction: models.DirectionIncoming,
		MessageID: msg.ID,
		RequestID: msg.RequestID,
		TypeCode:  msg.Type,
		Payload:   msg.Content,
	})
	if err != nil {
		logger.Warn(ctx, "Failed to record inbound frame", tag.MessageID(msg.ID), tag.Error(err))
	}
}

func (s *Session) logIncomingError(ctx context.Context, message string) {
	err := s.handler.store.LogMessage(ctx, s.rc.ConversationID, models.MessageEntry{
		Direction: models.DirectionIncoming,
		Error:     message,
	})
	if err != nil {
		logger.Warn(ctx, "Failed to record malformed inbound frame", tag.Error(err))
	}
}

func (s *Session) logOutgoing(ctx context.Context, msg protocol.Message) {
	entry := models.MessageEntry{
		Direction:  models.DirectionOutgoing,
		MessageID:  msg.ID,
		RequestID:  msg.RequestID,
		StatusCode: msg.Type,
		Payload:    msg.Content,
	}
	if text, ok := msg.Content["error"].(string); ok {
		entry.Error = text
	}
	if err := s.handler.store.LogMessage(ctx, s.rc.ConversationID, entry); err != nil {
		logger.Warn(ctx, "Failed to record outbound frame", tag.MessageID(msg.ID), tag.Error(err))
	}
}
