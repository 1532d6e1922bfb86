package mesh

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// DefaultMinPhraseLength excludes very short phrases ("RNA", "NGS") that
// produce false positives as substrings.
const DefaultMinPhraseLength = 4

// phrase is one indexed surface form.
type phrase struct {
	text     string
	words    int // whitespace-separated words
	distinct []string
	termIDs  []string
}

// TermIndex is an immutable phrase-to-term lookup built from a dictionary.
type TermIndex struct {
	terms   []*store.Term
	byID    map[string]*store.Term
	phrases []phrase
	lookup  map[string]int // phrase text -> position in phrases
	byWord  map[string][]int
	ac      *automaton

	minPhraseLength int
	version         uint64
	builtAt         time.Time
}

// IndexOption configures BuildIndex.
type IndexOption func(*TermIndex)

// WithMinPhraseLength sets the minimum phrase length in characters.
func WithMinPhraseLength(n int) IndexOption {
	return func(idx *TermIndex) {
		if n > 0 {
			idx.minPhraseLength = n
		}
	}
}

// normalizePhrase lowercases s and collapses whitespace runs to one space.
func normalizePhrase(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// BuildIndex indexes each term's preferred name and synonyms. Phrases are
// kept in first-seen order; a phrase shared by several terms maps to all of
// them. Terms without an ID are ignored; a repeated ID keeps the first.
func BuildIndex(terms []*store.Term, opts ...IndexOption) *TermIndex {
	idx := &TermIndex{
		byID:            make(map[string]*store.Term, len(terms)),
		lookup:          make(map[string]int),
		byWord:          make(map[string][]int),
		minPhraseLength: DefaultMinPhraseLength,
		builtAt:         time.Now(),
	}
	for _, opt := range opts {
		opt(idx)
	}

	for _, t := range terms {
		if t == nil || t.ID == "" {
			continue
		}
		if _, dup := idx.byID[t.ID]; dup {
			continue
		}
		idx.terms = append(idx.terms, t)
		idx.byID[t.ID] = t

		idx.add(t.PreferredName, t.ID)
		for _, syn := range t.Synonyms {
			idx.add(syn, t.ID)
		}
	}

	patterns := make([]string, len(idx.phrases))
	for i, p := range idx.phrases {
		patterns[i] = p.text
	}
	idx.ac = newAutomaton(patterns)

	return idx
}

func (idx *TermIndex) add(surface, termID string) {
	text := normalizePhrase(surface)
	if utf8.RuneCountInString(text) < idx.minPhraseLength {
		return
	}

	if pos, ok := idx.lookup[text]; ok {
		p := &idx.phrases[pos]
		for _, id := range p.termIDs {
			if id == termID {
				return
			}
		}
		p.termIDs = append(p.termIDs, termID)
		return
	}

	words := strings.Fields(text)
	distinct := uniqueStrings(words)

	pos := len(idx.phrases)
	idx.phrases = append(idx.phrases, phrase{
		text:     text,
		words:    len(words),
		distinct: distinct,
		termIDs:  []string{termID},
	})
	idx.lookup[text] = pos
	for _, w := range distinct {
		idx.byWord[w] = append(idx.byWord[w], pos)
	}
}

// Len returns the number of indexed phrases.
func (idx *TermIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.phrases)
}

// TermCount returns the number of distinct terms.
func (idx *TermIndex) TermCount() int {
	if idx == nil {
		return 0
	}
	return len(idx.terms)
}

// Empty reports whether the index has no phrases to match.
func (idx *TermIndex) Empty() bool {
	return idx.Len() == 0
}

// Term returns the term with id, or nil.
func (idx *TermIndex) Term(id string) *store.Term {
	if idx == nil {
		return nil
	}
	return idx.byID[id]
}

// Terms returns the dictionary in load order. The slice must not be modified.
func (idx *TermIndex) Terms() []*store.Term {
	if idx == nil {
		return nil
	}
	return idx.terms
}

// Lookup returns the term IDs owning an exact phrase.
func (idx *TermIndex) Lookup(surface string) []string {
	if idx == nil {
		return nil
	}
	pos, ok := idx.lookup[normalizePhrase(surface)]
	if !ok {
		return nil
	}
	return append([]string(nil), idx.phrases[pos].termIDs...)
}

// Version is the registry generation this index was published as; zero
// until published.
func (idx *TermIndex) Version() uint64 {
	if idx == nil {
		return 0
	}
	return idx.version
}

// BuiltAt is when the index was built.
func (idx *TermIndex) BuiltAt() time.Time {
	if idx == nil {
		return time.Time{}
	}
	return idx.builtAt
}

// MinPhraseLength is the length below which phrases were skipped.
func (idx *TermIndex) MinPhraseLength() int {
	return idx.minPhraseLength
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
