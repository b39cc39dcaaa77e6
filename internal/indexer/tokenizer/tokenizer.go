// Package tokenizer provides the deterministic text normalisation shared by
// the ingestion and query paths. A token is a maximal run of ASCII letters,
// digits, or apostrophes, lowercased. There is no stemming and no stop-word
// removal: every token surfaces as an index term, so the same function must
// be used on both sides.
package tokenizer

import "strings"

// Tokenize breaks text into lowercase tokens. Empty input yields nil.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return strings.FieldsFunc(ASCIILower(text), func(r rune) bool {
		return !isTokenRune(r)
	})
}

// Counts returns the term-frequency map for a token sequence.
func Counts(tokens []string) map[string]int {
	if len(tokens) == 0 {
		return nil
	}
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// ASCIILower lowercases only the bytes 'A'..'Z'. Byte offsets into the
// result always line up with the input, which the passage extractor relies
// on for case-insensitive matching.
func ASCIILower(s string) string {
	i := 0
	for ; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			break
		}
	}
	if i == len(s) {
		return s
	}
	b := []byte(s)
	for ; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

func isTokenRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '\'':
		return true
	}
	return false
}
