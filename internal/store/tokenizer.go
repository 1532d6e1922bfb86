package store

import (
	"regexp"
	"strings"
)

// wordRegex matches alphanumeric runs that may be joined by hyphens or
// slashes, as in "RNA-Seq", "C57BL/6" or "single-cell".
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+(?:[-/][\p{L}\p{N}]+)*`)

// TokenizeText splits free text into lowercase lexical tokens.
// Compound words yield their parts followed by the joined form, so
// "RNA-Seq" indexes as ["rna", "seq", "rnaseq"]. Tokens shorter than two
// characters are dropped.
func TokenizeText(text string) []string {
	var tokens []string

	for _, word := range wordRegex.FindAllString(text, -1) {
		lower := strings.ToLower(word)
		parts := SplitCompound(lower)
		for _, p := range parts {
			if len(p) >= 2 {
				tokens = append(tokens, p)
			}
		}
		if len(parts) > 1 {
			tokens = append(tokens, strings.Join(parts, ""))
		}
	}

	return tokens
}

// SplitCompound splits a word on hyphens and slashes.
// Returns an empty slice, never nil.
func SplitCompound(word string) []string {
	parts := strings.FieldsFunc(word, func(r rune) bool {
		return r == '-' || r == '/'
	})
	if parts == nil {
		return []string{}
	}
	return parts
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
