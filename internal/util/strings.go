// Package util provides small string helpers shared by the terminal output code.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TruncateANSI shortens s to at most maxWidth visual columns, ending it with
// "..." when anything was cut. Escape sequences and wide characters are
// measured the way the terminal renders them.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// the tail counts toward maxWidth
	return ansi.Truncate(s, maxWidth, "...")
}

// PadRight extends s with fill until it is width runes long. Longer strings
// are returned unchanged.
func PadRight(s string, width int, fill rune) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(string(fill), width-n)
}

// LastLine returns the last non-blank line of s with surrounding space
// trimmed, or "" when s holds no text.
func LastLine(s string) string {
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
