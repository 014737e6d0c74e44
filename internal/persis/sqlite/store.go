// Package sqlite provides the SQL-backed implementation of the models.Store
// gateway. All durable server state (users, pipelines, connections,
// conversation logs, executions and their events) lives in one SQLite
// database file whose schema is managed through embedded goose migrations.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/alger-org/alger/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	dirPermissions = 0750
	busyTimeoutMS  = 5000
)

// Store implements models.Store on top of a single SQLite database. The
// connection pool is capped at one connection and a write mutex serializes
// read-modify-write sequences, so callers may share a Store across
// connection loops freely.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var _ models.Store = (*Store)(nil)

// Option is a functional option for configuring the Store.
type Option func(*Store)

// New opens the database at path, creating the file and its parent directory
// when absent, and applies any pending schema migrations.
func New(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return nil, fmt.Errorf("sqlite: failed to create directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path, busyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// migrate applies the embedded schema migrations.
func (s *Store) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("sqlite: failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("sqlite: failed to apply migrations: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// encodeJSON renders a map as a compact JSON column value; nil maps become
// SQL NULL.
func encodeJSON(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to serialize JSON column: %w", err)
	}
	return string(raw), nil
}

// decodeJSON parses a nullable JSON column. NULL, empty and malformed
// content all decode to nil; callers decide the empty-map default.
func decodeJSON(raw sql.NullString) map[string]any {
	if !raw.Valid {
		return nil
	}
	return decodeJSONText(raw.String)
}

func decodeJSONText(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

func encodeRoles(roles []string) (any, error) {
	if roles == nil {
		return nil, nil
	}
	raw, err := json.Marshal(roles)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to serialize roles column: %w", err)
	}
	return string(raw), nil
}

func decodeRoles(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var roles []string
	if err := json.Unmarshal([]byte(raw.String), &roles); err != nil {
		return nil
	}
	return roles
}

// nullString maps empty strings to SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullInt maps zero to SQL NULL; every meaningful code and id in the wire
// protocol is positive.
func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
