// Package sanitize cleans free text captured from runtime logs before it is
// persisted into a dataset.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/nikivdev/flow/internal/rawrec"
)

// Redacted replaces opaque tokens found in captured text.
const Redacted = "[REDACTED]"

// MinTokenLen is the shortest run of word characters treated as opaque.
const MinTokenLen = 32

// longToken matches identifier-like runs (ids, hashes, keys) of MinTokenLen+
// characters bounded by word boundaries.
var longToken = regexp.MustCompile(`\b[A-Za-z0-9_\-]{32,}\b`)

// Text trims s and redacts long opaque tokens.
func Text(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < MinTokenLen {
		return s
	}
	return longToken.ReplaceAllString(s, Redacted)
}

// Value sanitizes v when it is a JSON string; any other value yields "".
func Value(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return Text(s)
}

// Field sanitizes a record field.
func Field(r rawrec.Record, key string) string {
	return Value(r.Value(key))
}

// Captured extracts captured text that may be stored either as a plain
// string or as an object with a "text" member.
func Captured(v any) string {
	if obj, ok := v.(map[string]any); ok {
		return Value(obj["text"])
	}
	return Value(v)
}

// Truncate returns the first n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
