// Package domain defines the typed identifiers shared across the service.
// Wrapping raw strings and UUIDs in named types keeps store keys and log
// fields from being mixed up at call sites.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// TaskID identifies a single enrichment run.
type TaskID uuid.UUID

// NewTaskID generates a fresh random task identifier.
func NewTaskID() TaskID {
	return TaskID(uuid.New())
}

// ParseTaskID validates and converts a string into a TaskID.
func ParseTaskID(s string) (TaskID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TaskID{}, fmt.Errorf("parse task id: %w", err)
	}
	return TaskID(u), nil
}

func (t TaskID) String() string {
	return uuid.UUID(t).String()
}

// IsNil reports whether the identifier is the zero value.
func (t TaskID) IsNil() bool {
	return uuid.UUID(t) == uuid.Nil
}

// MarshalText renders the canonical UUID form, so JSON and log output
// show the id as a string rather than raw bytes.
func (t TaskID) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses the canonical UUID form.
func (t *TaskID) UnmarshalText(data []byte) error {
	parsed, err := ParseTaskID(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// EntityID identifies the policy or claim being enriched. The pipeline
// treats it as opaque; only the owning system knows its shape.
type EntityID string

func (e EntityID) String() string {
	return string(e)
}

// IsEmpty reports whether the identifier is missing.
func (e EntityID) IsEmpty() bool {
	return e == ""
}
