package ingest

import (
	"fmt"
	"strings"
	"time"
)

// Zone-aware layouts are tried first; a match is converted to UTC and the
// zone dropped so every source lands on one naive reference range.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05.999999Z0700",
}

// Naive layouts are taken as-is (already on the reference range).
var naiveLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
}

// ParseTimestamp parses one time cell, normalizing any timezone offset onto
// a single naive (UTC) reference range.
func ParseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return stripZone(t.UTC()), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	// Excel sometimes renders timestamps with a trailing fractional marker
	// or odd spacing; one more attempt after collapsing whitespace.
	collapsed := strings.Join(strings.Fields(value), " ")
	if collapsed != value {
		return ParseTimestamp(collapsed)
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %q", value)
}

// stripZone rebuilds the wall-clock reading in UTC so later comparisons and
// bucket arithmetic never mix zones.
func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
