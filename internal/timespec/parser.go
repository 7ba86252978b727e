// Package timespec parses user-supplied execution times.
package timespec

import (
	"fmt"
	"time"
)

// ParseETA parses a time specification into an absolute time at or after now.
// Supports two formats:
//   - Go duration format: "30s", "1h30m" (relative to now)
//   - RFC3339 timestamps: "2025-10-29T13:00:00Z"
//
// Negative durations and timestamps in the past are rejected.
func ParseETA(spec string, now time.Time) (time.Time, error) {
	if spec == "" {
		return time.Time{}, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		if t.Before(now) {
			return time.Time{}, fmt.Errorf("time %s is in the past", spec)
		}
		return t, nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("duration %s is negative", spec)
		}
		return now.Add(d), nil
	}

	return time.Time{}, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}
