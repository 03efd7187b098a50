package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseSince turns a --since value into an instant. It accepts a relative
// age ("7d", "2w", "24h", "90m") or an absolute date ("2024-03-10" or
// RFC 3339). Pass times come from the mission log, so absolute dates are
// the usual way to select an older event.
func ParseSince(now time.Time, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty since value")
	}
	now = now.UTC()

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}

	if n := len(s) - 1; s[n] == 'd' || s[n] == 'w' {
		count, err := strconv.Atoi(s[:n])
		if err != nil || count < 0 {
			return time.Time{}, fmt.Errorf("invalid age %q", s)
		}
		if s[n] == 'w' {
			count *= 7
		}
		return now.AddDate(0, 0, -count), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("unsupported since value %q (use e.g. 7d, 2w, 24h or 2024-03-10)", s)
	}
	return now.Add(-d), nil
}
