// Package util provides shared string helpers for terminal output: width-aware
// truncation and excerpts of source lines referenced by validation findings.
package util

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TruncateString truncates a string to maxLen runes, adding "..." if truncated.
// This is a simple truncation that does not account for ANSI escape codes or
// wide characters. For terminal output with styling, use TruncateANSI instead.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// TruncateANSI truncates a string to maxWidth visual columns, adding "..." if truncated.
// Escape sequences and wide characters are measured by their on-screen width.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}

// SourceLine returns the 1-based line n of source without its line ending,
// or "" when source has fewer lines.
func SourceLine(source string, n int) string {
	if n < 1 {
		return ""
	}
	for i := 1; ; i++ {
		line, rest, found := strings.Cut(source, "\n")
		if i == n {
			return strings.TrimSuffix(line, "\r")
		}
		if !found {
			return ""
		}
		source = rest
	}
}

// Excerpt returns line n of source, trimmed of indentation and cut to
// maxWidth columns, for display next to a finding.
func Excerpt(source string, n, maxWidth int) string {
	line := strings.TrimSpace(SourceLine(source, n))
	if line == "" {
		return ""
	}
	return TruncateANSI(line, maxWidth)
}

// Plural returns "1 error" / "2 errors" style counts.
func Plural(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return strconv.Itoa(n) + " " + plural
}
