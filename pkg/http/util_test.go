package http

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	if got, ok := ParseTime("2026-08-25T10:30:00Z"); !ok || !got.Equal(time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("rfc3339: ok=%v got=%v", ok, got)
	}
	if got, ok := ParseTime("2026-08-25T10:30:00.250Z"); !ok || got.Nanosecond() != 250_000_000 {
		t.Fatalf("fractional seconds: ok=%v got=%v", ok, got)
	}
	if got, ok := ParseTime("1756100000"); !ok || !got.Equal(time.Unix(1756100000, 0)) {
		t.Fatalf("unix seconds: ok=%v got=%v", ok, got)
	}
	if got, ok := ParseTime("1756100000123"); !ok || !got.Equal(time.UnixMilli(1756100000123)) {
		t.Fatalf("unix milliseconds: ok=%v got=%v", ok, got)
	}
	for _, bad := range []string{"", "yesterday", "-5", "0"} {
		if _, ok := ParseTime(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
