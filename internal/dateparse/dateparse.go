// Package dateparse normalizes the handful of date shapes the ingest path
// accepts into the canonical dd-mm-yyyy form every downstream component
// (ring routing, storage buckets, showcase index) stores dates as. Ported
// from final_manager.py's convert_date, which tried each layout in turn and
// returned None on total failure; this returns an error instead.
package dateparse

import (
	"fmt"
	"strings"
	"time"
)

// ErrUnrecognized is returned when none of the accepted layouts match raw.
var ErrUnrecognized = fmt.Errorf("dateparse: unrecognized date format")

const canonicalLayout = "02-01-2006"

// accepted input layouts, tried in order. yyyymmdd-HH:MM carries a time
// component that is discarded after parsing: only the date contributes to
// the canonical key.
var layouts = []string{
	"2006-01-02",
	"20060102",
}

// Normalize parses raw in any of the accepted shapes and returns the
// canonical dd-mm-yyyy representation.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("dateparse: empty input: %w", ErrUnrecognized)
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(canonicalLayout), nil
		}
	}

	// yyyymmdd-HH:MM: split off the date portion before the dash and
	// retry it as yyyymmdd, mirroring convert_date's split("-")[0] path.
	if idx := strings.Index(raw, "-"); idx > 0 {
		datePart := raw[:idx]
		if t, err := time.Parse("20060102", datePart); err == nil {
			return t.Format(canonicalLayout), nil
		}
	}

	return "", fmt.Errorf("dateparse: %q: %w", raw, ErrUnrecognized)
}
