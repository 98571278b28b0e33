package command

import (
	"strings"
	"unicode"
)

// Tokenize splits one input line into arguments.
//
// Whitespace separates tokens and runs of whitespace collapse. A double quote
// toggles quoted mode unless the preceding character is a backslash; inside
// quotes whitespace belongs to the current token. The quote characters
// themselves are dropped. An unterminated quote is not an error: the rest of
// the line becomes part of the final token.
func Tokenize(line string) []string {
	tokens := []string{}
	var (
		current  strings.Builder
		inQuotes bool
		prev     rune
	)

	for i, r := range line {
		switch {
		case r == '"' && (i == 0 || prev != '\\'):
			inQuotes = !inQuotes
		case unicode.IsSpace(r) && !inQuotes:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
		prev = r
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// Join rebuilds a command line from already split arguments, quoting the
// ones that contain whitespace so Tokenize yields them again. Empty
// arguments are written as "" for display; they and arguments containing a
// double quote cannot round-trip through Tokenize.
func Join(args []string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.IndexFunc(a, unicode.IsSpace) >= 0 {
			parts[i] = `"` + a + `"`
			continue
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}
