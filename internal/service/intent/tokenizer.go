package intent

import (
	"regexp"
	"strings"
)

// Words keep inner apostrophes, hyphens and colons so that "what's",
// "to-do" and "7:30" survive as single tokens.
var tokenPattern = regexp.MustCompile(`[a-z0-9]+(?:[:'\-][a-z0-9]+)*`)

var timePattern = regexp.MustCompile(`\d{1,2}:\d{2}`)

// Tokenize lowercases text and splits it on whitespace and punctuation.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// tokensAfter joins every token following the first occurrence of marker.
// It reports false, with an empty string, when marker is missing.
func tokensAfter(tokens []string, marker string) (string, bool) {
	for i, tok := range tokens {
		if tok == marker {
			return strings.Join(tokens[i+1:], " "), true
		}
	}
	return "", false
}

func firstTime(tokens []string) (string, bool) {
	for _, tok := range tokens {
		if timePattern.MatchString(tok) {
			return tok, true
		}
	}
	return "", false
}
