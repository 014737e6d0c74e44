// Package tag provides standardized tag functions for structured logging.
//
// All tag keys use kebab-case naming convention for consistency.
// Use these functions instead of raw strings to ensure consistent
// and type-safe log output across the codebase.
package tag

import (
	"log/slog"
	"time"
)

// Core identification tags

func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Error creates a tag for error objects.
func Error(err any) slog.Attr {
	return slog.Any("err", err)
}

// Pipeline creates a tag for pipeline IDs.
func Pipeline(id string) slog.Attr {
	return slog.String("pipeline", id)
}

// Execution creates a tag for pipeline execution IDs.
func Execution(id string) slog.Attr {
	return slog.String("execution", id)
}

// Node creates a tag for graph node IDs.
func Node(id string) slog.Attr {
	return slog.String("node", id)
}

// Kind creates a tag for node kind names.
func Kind(kind string) slog.Attr {
	return slog.String("kind", kind)
}

// Strategy creates a tag for traversal strategy names.
func Strategy(s string) slog.Attr {
	return slog.String("strategy", s)
}

// Conversation creates a tag for conversation IDs.
func Conversation(id string) slog.Attr {
	return slog.String("conversation", id)
}

// Connection creates a tag for connection IDs.
func Connection(id string) slog.Attr {
	return slog.String("connection", id)
}

// MessageID creates a tag for protocol message IDs.
func MessageID(id int) slog.Attr {
	return slog.Int("message-id", id)
}

// RequestID creates a tag for protocol request IDs.
func RequestID(id int) slog.Attr {
	return slog.Int("request-id", id)
}

// Code creates a tag for protocol type codes.
func Code(code int) slog.Attr {
	return slog.Int("code", code)
}

// User creates a tag for usernames.
func User(name string) slog.Attr {
	return slog.String("user", name)
}

// Network tags

// Host creates a tag for host names.
func Host(host string) slog.Attr {
	return slog.String("host", host)
}

// Port creates a tag for port numbers.
func Port(port int) slog.Attr {
	return slog.Int("port", port)
}

// Addr creates a tag for network addresses.
func Addr(addr string) slog.Attr {
	return slog.String("addr", addr)
}

// RemoteAddr creates a tag for client remote addresses.
func RemoteAddr(addr string) slog.Attr {
	return slog.String("remote-addr", addr)
}

// Origin creates a tag for request origins.
func Origin(origin string) slog.Attr {
	return slog.String("origin", origin)
}

// Path and file tags

// Path creates a tag for URL or request paths.
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// File creates a tag for file names.
func File(file string) slog.Attr {
	return slog.String("file", file)
}

// Dir creates a tag for directory paths.
func Dir(dir string) slog.Attr {
	return slog.String("dir", dir)
}

// State and measurement tags

// Status creates a tag for status strings.
func Status(status string) slog.Attr {
	return slog.String("status", status)
}

// Reason creates a tag for reason descriptions.
func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}

// Signal creates a tag for OS signal names.
func Signal(sig string) slog.Attr {
	return slog.String("signal", sig)
}

// Count creates a tag for generic counts.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Size creates a tag for sizes in bytes.
func Size(n int64) slog.Attr {
	return slog.Int64("size", n)
}

// Duration creates a tag for elapsed durations.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Version creates a tag for version strings.
func Version(v string) slog.Attr {
	return slog.String("version", v)
}

// Name creates a tag for generic names.
func Name(name string) slog.Attr {
	return slog.String("name", name)
}

// ID creates a tag for generic identifiers.
func ID(id string) slog.Attr {
	return slog.String("id", id)
}
