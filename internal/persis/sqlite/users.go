package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/alger-org/alger/internal/models"
)

const userColumns = `id, username, display_name, email, roles, metadata, last_login, created_at, updated_at`

// EnsureUser returns the row for username, inserting it with the given
// defaults on first sight.
func (s *Store) EnsureUser(ctx context.Context, username string, defaults models.UserDefaults) (models.User, error) {
	if username == "" {
		return models.User{}, errors.New("sqlite: username cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.getUserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return models.User{}, err
	}

	roles, err := encodeRoles(defaults.Roles)
	if err != nil {
		return models.User{}, err
	}
	metadata, err := encodeJSON(defaults.Metadata)
	if err != nil {
		return models.User{}, err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, email, roles, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), username,
		nullString(defaults.DisplayName), nullString(defaults.Email),
		roles, metadata,
	); err != nil {
		return models.User{}, fmt.Errorf("sqlite: failed to insert user %s: %w", username, err)
	}
	return s.getUserByUsername(ctx, username)
}

func (s *Store) getUserByUsername(ctx context.Context, username string) (models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	var displayName, email, roles, metadata, lastLogin sql.NullString
	err := row.Scan(&u.ID, &u.Username, &displayName, &email, &roles, &metadata,
		&lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("sqlite: failed to scan user row: %w", err)
	}
	u.DisplayName = displayName.String
	u.Email = email.String
	u.Roles = decodeRoles(roles)
	u.Metadata = decodeJSON(metadata)
	u.LastLogin = lastLogin.String
	return u, nil
}

// RecordLoginAttempt audits one credential handshake. Successful attempts
// also stamp last_login on the user row.
func (s *Store) RecordLoginAttempt(ctx context.Context, userID string, success bool, details map[string]any) error {
	merged := make(map[string]any, len(details)+1)
	for k, v := range details {
		merged[k] = v
	}
	merged["success"] = success

	if err := s.insertUserAction(ctx, userID, "login_attempt", merged); err != nil {
		return err
	}
	if !success {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_login = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, userID,
	); err != nil {
		return fmt.Errorf("sqlite: failed to stamp last login for %s: %w", userID, err)
	}
	return nil
}

// RecordUserAction audits an arbitrary user-triggered event.
func (s *Store) RecordUserAction(ctx context.Context, userID, action string, details map[string]any) error {
	return s.insertUserAction(ctx, userID, action, details)
}

func (s *Store) insertUserAction(ctx context.Context, userID, action string, details map[string]any) error {
	payload, err := encodeJSON(details)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO user_actions (user_id, action, details) VALUES (?, ?, ?)`,
		userID, action, payload,
	); err != nil {
		return fmt.Errorf("sqlite: failed to record action %s: %w", action, err)
	}
	return nil
}
