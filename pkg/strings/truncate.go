package strings

import (
	"strings"
)

// DefaultErrorMaxLen is how much of an error message fits in a table cell.
const DefaultErrorMaxLen = 60

// minLineLen leaves room for one character and the ellipsis.
const minLineLen = 4

// TruncateLine flattens s onto a single line and cuts it to at most maxLen
// runes, ending in "..." when anything was cut. Runs of whitespace,
// including newlines, become one space.
func TruncateLine(s string, maxLen int) string {
	if maxLen < minLineLen {
		maxLen = minLineLen
	}
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
