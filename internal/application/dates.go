package application

import (
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"January 2, 2006",
	"2 Jan 2006",
	time.RFC1123,
	time.RFC1123Z,
	// Partial dates resolve to the start of the period.
	"2006-01",
	"2006",
}

// ParseDate parses a query-string date. Values without a zone are read as UTC.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func parseRange(startRaw, endRaw string) (time.Time, time.Time, bool) {
	if startRaw == "" || endRaw == "" {
		return time.Time{}, time.Time{}, false
	}
	start, ok := ParseDate(startRaw)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, ok := ParseDate(endRaw)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
