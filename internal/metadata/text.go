package metadata

import (
	"strings"
	"unicode"
)

// NormalizeTitle lower-cases s, drops apostrophes, replaces every other
// non-alphanumeric rune with a space and collapses whitespace.
func NormalizeTitle(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '’':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens splits a title into normalized whitespace-separated tokens.
func Tokens(s string) []string {
	return strings.Fields(NormalizeTitle(s))
}

func containsPhrase(padded, phrase string) bool {
	return strings.Contains(padded, " "+phrase+" ")
}

func pad(norm string) string {
	return " " + norm + " "
}

var negationTokens = map[string]bool{
	"not":    true,
	"wont":   true,
	"doesnt": true,
	"dont":   true,
	"isnt":   true,
	"arent":  true,
	"never":  true,
	"fail":   true,
	"fails":  true,
}

func isNegated(norm string) bool {
	for _, tok := range strings.Fields(norm) {
		if negationTokens[tok] {
			return true
		}
	}
	return false
}
