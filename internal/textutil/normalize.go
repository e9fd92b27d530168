// Package textutil normalizes text pulled from external sources before it is
// persisted or fed to the summarizer.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Clean NFC-normalizes s, drops control characters (except newlines), and
// collapses runs of spaces and tabs. Transcripts arrive from four different
// extractors with wildly different whitespace habits; everything downstream
// assumes this canonical form.
func Clean(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteRune(r)
			lastSpace = false
		case r == '\t' || r == ' ' || unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsControl(r):
			// drop
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// IsBlank reports whether s contains no printable content after cleaning.
// Extractors sometimes return whitespace-only payloads for videos with empty
// caption tracks; those count as extraction failures.
func IsBlank(s string) bool {
	return Clean(s) == ""
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}
