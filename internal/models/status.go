package models

import (
	"encoding/json"
	"fmt"
)

// Status represents the canonical lifecycle phases for a pipeline execution.
type Status int

const (
	StatusUnknown Status = iota
	StatusQueued
	StatusRunning
	StatusFinished
	StatusFailed
	StatusStopped
)

// String returns the canonical lowercase token stored in the database and
// shipped in wire payloads.
func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusFailed:
		return "failed"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsActive checks if the execution still counts against the concurrency limit.
func (s Status) IsActive() bool {
	return s == StatusQueued || s == StatusRunning
}

// IsTerminal checks if the status is final. Terminal statuses are sticky:
// once set, the store refuses further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusStopped
}

// ParseStatus maps a stored token back to its Status value.
func ParseStatus(s string) Status {
	switch s {
	case "queued":
		return StatusQueued
	case "running":
		return StatusRunning
	case "finished":
		return StatusFinished
	case "failed":
		return StatusFailed
	case "stopped":
		return StatusStopped
	default:
		return StatusUnknown
	}
}

// MarshalJSON encodes the status as its lowercase token.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a lowercase token into a Status value.
func (s *Status) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	*s = ParseStatus(token)
	return nil
}
