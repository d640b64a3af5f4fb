package httpapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var errBadTimestamp = errors.New("invalid timestamp")

const dateOnly = "2006-01-02"

var timestampLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"}

// parseTimestamp accepts RFC3339(Nano), a zone-less "2006-01-02T15:04:05"
// read as UTC, or a bare date. A bare date means the start of that day, or
// its last millisecond when endOfDay is set.
func parseTimestamp(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", errBadTimestamp)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.Parse(dateOnly, s); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Millisecond)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", errBadTimestamp, s)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
