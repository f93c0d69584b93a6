// Package utils provides shared helpers for logging, vector math and display text.
package utils

// Truncate returns s cut to maxLen runes with "..." appended when it was cut.
// A maxLen of 0 or less returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
