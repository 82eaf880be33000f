package sanitizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Name cleans a display name: control characters are dropped, runs of
// whitespace collapse to one space, and the result is cut to maxLen runes.
// maxLen <= 0 disables truncation.
func Name(s string, maxLen int) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		s = strings.TrimSpace(string([]rune(s)[:maxLen]))
	}
	return s
}
