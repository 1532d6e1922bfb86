package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultSnippetLength bounds the text kept after the first match.
	DefaultSnippetLength = 200

	// snippetContext is how many characters before the match are kept.
	snippetContext = 50

	// minSnippetTerm is the shortest query word that is looked for.
	minSnippetTerm = 3

	ellipsis = "..."
)

// MakeSnippet returns the part of text around the first occurrence of any
// query word of three or more characters: up to 50 characters before it and
// maxLen characters from it, with "..." on each truncated end. With no match
// the first maxLen characters are returned. Lengths count runes.
func MakeSnippet(text, query string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSnippetLength
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}

	pos := firstMatch(text, query)
	if pos < 0 {
		if len(runes) > maxLen {
			return string(runes[:maxLen]) + ellipsis
		}
		return text
	}

	start := max(0, pos-snippetContext)
	end := min(len(runes), pos+maxLen)

	var b strings.Builder
	if start > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(string(runes[start:end]))
	if end < len(runes) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

// firstMatch returns the rune offset of the earliest query word in text, or -1.
func firstMatch(text, query string) int {
	// Per-rune lowering keeps rune offsets aligned with text.
	lower := strings.Map(unicode.ToLower, text)

	best := -1
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(w) < minSnippetTerm {
			continue
		}
		at := strings.Index(lower, w)
		if at < 0 {
			continue
		}
		if pos := utf8.RuneCountInString(lower[:at]); best < 0 || pos < best {
			best = pos
		}
	}
	return best
}
