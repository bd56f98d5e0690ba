package domain

import "unicode/utf8"

// Truncate shortens s to at most max bytes without splitting a UTF-8
// rune; the cut backs off to the previous rune boundary.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
