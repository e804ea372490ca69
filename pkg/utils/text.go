// Package utils provides shared utilities for text, math, and logging.
package utils

import "unicode/utf8"

// Truncate returns s truncated to at most maxLen bytes, with "..." appended if
// truncated. The cut never splits a multi-byte rune. If maxLen is 0 or
// negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// EstimateTokens returns a rough token count for English text (~4 chars per token).
// Used for prompt budget sanity checks, not exact accounting.
func EstimateTokens(text string) int {
	return len(text) / 4
}
