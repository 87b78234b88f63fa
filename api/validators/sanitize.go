package validators

import (
	"strings"
	"unicode/utf8"
)

// SanitizeString trims input, collapses internal whitespace runs to one
// space and cuts the result to at most maxLen bytes without splitting a
// UTF-8 sequence. maxLen <= 0 disables the cut.
func SanitizeString(input string, maxLen int) string {
	s := strings.Join(strings.Fields(input), " ")
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	s = s[:maxLen]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}
