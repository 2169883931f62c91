package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	// SnapshotID identifies one immutable merged-dataset snapshot.
	SnapshotID ID
	// RunID identifies one analysis invocation over a snapshot.
	RunID ID
	// SeriesKey is the globally unique, source-prefixed series name.
	SeriesKey string
)

// NewSnapshotID mints a fresh snapshot identifier.
func NewSnapshotID() SnapshotID { return SnapshotID(NewID()) }

// NewRunID mints a fresh run identifier.
func NewRunID() RunID { return RunID(NewID()) }

func (id SnapshotID) String() string { return ID(id).String() }
func (id RunID) String() string      { return ID(id).String() }
func (k SeriesKey) String() string   { return string(k) }

// ParseSeriesKey parses a string into a SeriesKey
func ParseSeriesKey(s string) (SeriesKey, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("series key cannot be empty")
	}
	return SeriesKey(s), nil
}

// SeriesKeys converts a slice of raw names preserving order.
func SeriesKeys(names []string) []SeriesKey {
	keys := make([]SeriesKey, len(names))
	for i, n := range names {
		keys[i] = SeriesKey(n)
	}
	return keys
}
