package mesh

import (
	ahocorasick "github.com/BobuSumisu/aho-corasick"
)

// automaton finds every indexed phrase occurring in a text in one pass.
// Pattern numbers are phrase positions in the owning TermIndex. The trie is
// read-only after build, so concurrent finds are safe.
type automaton struct {
	trie *ahocorasick.Trie
}

func newAutomaton(patterns []string) *automaton {
	if len(patterns) == 0 {
		return &automaton{}
	}
	return &automaton{
		trie: ahocorasick.NewTrieBuilder().AddStrings(patterns).Build(),
	}
}

// find calls hit once for every pattern occurring in text, including
// patterns nested inside or overlapping other matches.
func (a *automaton) find(text string, hit func(pattern int)) {
	if a.trie == nil {
		return
	}
	seen := make(map[int]struct{})
	for _, m := range a.trie.MatchString(text) {
		p := int(m.Pattern())
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		hit(p)
	}
}
