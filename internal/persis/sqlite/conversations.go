package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alger-org/alger/internal/models"
)

// OpenConnection inserts a row for a live socket connection and returns its
// id.
func (s *Store) OpenConnection(ctx context.Context, userID string, client models.ClientInfo) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (id, user_id, client_ip, client_port, user_agent, origin, path, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nullString(userID),
		nullString(client.IP), nullInt(client.Port),
		nullString(client.UserAgent), nullString(client.Origin), nullString(client.Path),
		models.ConnectionOpen,
	); err != nil {
		return "", fmt.Errorf("sqlite: failed to open connection: %w", err)
	}
	return id, nil
}

// CloseConnection marks the connection closed and stamps disconnected_at.
func (s *Store) CloseConnection(ctx context.Context, connectionID string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE connections SET status = ?, disconnected_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		models.ConnectionClosed, connectionID,
	); err != nil {
		return fmt.Errorf("sqlite: failed to close connection %s: %w", connectionID, err)
	}
	return nil
}

// OpenConversation starts the conversation log bound to a connection and
// returns its id.
func (s *Store) OpenConversation(ctx context.Context, userID, connectionID string) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, connection_id) VALUES (?, ?, ?)`,
		id, nullString(userID), nullString(connectionID),
	); err != nil {
		return "", fmt.Errorf("sqlite: failed to open conversation: %w", err)
	}
	return id, nil
}

// CloseConversation stamps ended_at on the conversation.
func (s *Store) CloseConversation(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET ended_at = CURRENT_TIMESTAMP WHERE id = ?`,
		conversationID,
	); err != nil {
		return fmt.Errorf("sqlite: failed to close conversation %s: %w", conversationID, err)
	}
	return nil
}

// LogMessage captures one inbound or outbound frame in the conversation log.
func (s *Store) LogMessage(ctx context.Context, conversationID string, entry models.MessageEntry) error {
	payload, err := encodeJSON(entry.Payload)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages
			(conversation_id, direction, message_id, request_id, type_code, status_code, payload, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conversationID, string(entry.Direction),
		nullInt(entry.MessageID), nullInt(entry.RequestID),
		nullInt(entry.TypeCode), nullInt(entry.StatusCode),
		payload, nullString(entry.Error),
	); err != nil {
		return fmt.Errorf("sqlite: failed to log %s message: %w", entry.Direction, err)
	}
	return nil
}

// LogError stores one structured diagnostic row.
func (s *Store) LogError(ctx context.Context, entry models.ErrorEntry) error {
	payload, err := encodeJSON(entry.Payload)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO error_logs
			(conversation_id, execution_id, message_id, type_code, severity, message, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullString(entry.ConversationID), nullString(entry.ExecutionID),
		nullInt(entry.MessageID), nullInt(entry.TypeCode),
		nullString(entry.Severity), entry.Message, payload,
	); err != nil {
		return fmt.Errorf("sqlite: failed to log error: %w", err)
	}
	return nil
}
