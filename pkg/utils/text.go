// Package utils provides shared utilities for text, math, and logging.
package utils

// Truncate returns s truncated to maxLen bytes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// FirstLine returns the first non-empty line of s.
// Used for log-friendly previews of extracted document text.
func FirstLine(s string) string {
	start := 0
	for start < len(s) && (s[start] == '\n' || s[start] == '\r') {
		start++
	}
	end := start
	for end < len(s) && s[end] != '\n' && s[end] != '\r' {
		end++
	}
	return s[start:end]
}
