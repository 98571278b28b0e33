// Package sanitize cleans server- and file-supplied text before it reaches
// the terminal.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxEscapeScan bounds how far a CSI sequence is scanned for its final byte,
// so a crafted key name cannot swallow the rest of a listing.
const maxEscapeScan = 64

// TruncateUTF8 truncates s to at most maxBytes bytes without splitting UTF-8 runes.
func TruncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	truncated := s[:maxBytes]
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated
}

// Label trims surrounding whitespace, removes control characters and limits
// the result to maxRunes. Use it for single-line values such as key and
// profile names.
func Label(value string, maxRunes int) string {
	value = strings.TrimSpace(StripControlChars(value))
	if value == "" || maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(value) <= maxRunes {
		return value
	}
	return string([]rune(value)[:maxRunes])
}

// StripControlChars removes terminal escape sequences and control characters
// other than newline and tab.
func StripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '\x1b' {
			i = skipEscape(s, i)
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == '\n' || r == '\t' || (r != utf8.RuneError && !unicode.IsControl(r)) {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

// skipEscape returns the index just past the escape sequence starting at i.
func skipEscape(s string, i int) int {
	if i+1 >= len(s) {
		return len(s)
	}
	switch s[i+1] {
	case '[': // CSI: parameters then a final byte in 0x40..0x7E
		j := i + 2
		limit := min(j+maxEscapeScan, len(s))
		for j < limit && (s[j] < 0x40 || s[j] > 0x7E) {
			j++
		}
		if j < len(s) && s[j] >= 0x40 && s[j] <= 0x7E {
			j++
		}
		return j
	case ']': // OSC: terminated by BEL or ESC \
		for j := i + 2; j < len(s); j++ {
			if s[j] == '\x07' {
				return j + 1
			}
			if s[j] == '\x1b' && j+1 < len(s) && s[j+1] == '\\' {
				return j + 2
			}
		}
		return len(s)
	}
	return i + 2
}
