package logger

import (
	"errors"
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	if got := Status(nil); got != "ok" {
		t.Fatalf("Status(nil) = %q, want ok", got)
	}
	if got := Status(errors.New("boom")); got != "error" {
		t.Fatalf("Status(err) = %q, want error", got)
	}
}

func TestRoundMS(t *testing.T) {
	if got := RoundMS(-time.Second); got != 0 {
		t.Fatalf("negative duration not clamped: %v", got)
	}
	if got := RoundMS(1499 * time.Microsecond); got != time.Millisecond {
		t.Fatalf("RoundMS = %v, want 1ms", got)
	}
}

func TestSummarizeStrings(t *testing.T) {
	vals := []string{"a", "b", "c"}
	joined, truncated := SummarizeStrings(vals, 2)
	if joined != "a, b" || !truncated {
		t.Fatalf("got (%q, %v), want (a, b, true)", joined, truncated)
	}
	joined, truncated = SummarizeStrings(vals, 5)
	if joined != "a, b, c" || truncated {
		t.Fatalf("got (%q, %v), want full join without truncation", joined, truncated)
	}
}

func TestSanitizeStripsControlRunes(t *testing.T) {
	in := "ab\x00c\u200bd\nok"
	want := "abcd\nok"
	if got := Sanitize(in); got != want {
		t.Fatalf("Sanitize(%q) = %q, want %q", in, got, want)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("hello", 0); got != "" {
		t.Fatalf("limit 0 should return empty, got %q", got)
	}
	if got := SanitizeLimit("héllo world", 5); got != "héllo" {
		t.Fatalf("rune limit broken: %q", got)
	}
}

func TestBuildRID(t *testing.T) {
	if got := BuildRID(7, 42, 99); got != "7:42:99" {
		t.Fatalf("BuildRID = %q", got)
	}
}
