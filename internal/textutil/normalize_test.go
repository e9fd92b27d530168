package textutil_test

import (
	"testing"

	"recap/internal/textutil"
)

func TestCleanCollapsesWhitespace(t *testing.T) {
	in := "  hello \t world  again  "
	got := textutil.Clean(in)
	if got != "hello world again" {
		t.Fatalf("Clean(%q) = %q", in, got)
	}
}

func TestCleanPreservesNewlines(t *testing.T) {
	got := textutil.Clean("line one\nline   two")
	if got != "line one\nline two" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestIsBlank(t *testing.T) {
	cases := map[string]bool{
		"":            true,
		"   \t\n  ":   true,
		"​":      false, // zero-width space is not unicode whitespace
		"transcript":  false,
		"  words  ":   false,
		"\x00\x01\x02": true, // control characters only
	}
	for in, want := range cases {
		if got := textutil.IsBlank(in); got != want {
			t.Errorf("IsBlank(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := textutil.Truncate("summary", 100); got != "summary" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := textutil.Truncate("0123456789", 5); got != "0123…" {
		t.Fatalf("unexpected truncation %q", got)
	}
}
