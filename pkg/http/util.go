package http

import (
	"strconv"
	"time"
)

// ParseTime parses a request time value given as RFC3339, RFC3339 with
// fractional seconds, or a unix timestamp. Unix values above 1e11 are read
// as milliseconds, matching the signal feeds. Reports false for anything
// it cannot parse.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts <= 0 {
		return time.Time{}, false
	}
	if ts > 1e11 { // ms
		return time.UnixMilli(ts), true
	}
	return time.Unix(ts, 0), true
}
