package util

import (
	"fmt"
	"strconv"
	"time"
)

// ParseDate accepts YYYY-MM-DD, RFC3339 and unix seconds and returns the
// calendar day at UTC midnight. Returns (t, true) if any worked.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return midnight(t), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return midnight(t), true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return midnight(time.Unix(ts, 0).UTC()), true
	}
	return time.Time{}, false
}

// ParseDateRange parses optional from/to bounds. Empty bounds stay zero.
func ParseDateRange(from, to string) (time.Time, time.Time, error) {
	var f, t time.Time
	var ok bool
	if from != "" {
		if f, ok = ParseDate(from); !ok {
			return f, t, fmt.Errorf("invalid from date %q", from)
		}
	}
	if to != "" {
		if t, ok = ParseDate(to); !ok {
			return f, t, fmt.Errorf("invalid to date %q", to)
		}
	}
	if !f.IsZero() && !t.IsZero() && t.Before(f) {
		return f, t, fmt.Errorf("date range %s..%s is reversed", from, to)
	}
	return f, t, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
