package mesh

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// minExpansionToken is the shortest query token that is looked up.
const minExpansionToken = 3

// Expansion is the result of rewriting a query with recognized terms.
type Expansion struct {
	OriginalQuery   string        `json:"original_query"`
	ExpandedQuery   string        `json:"expanded_query"`
	MatchedTerms    []*store.Term `json:"matched_terms"`
	ExpansionTokens []string      `json:"expansion_tokens"`
}

// MatchedTermIDs returns the IDs of the matched terms in discovery order.
func (e Expansion) MatchedTermIDs() []string {
	ids := make([]string, len(e.MatchedTerms))
	for i, t := range e.MatchedTerms {
		ids[i] = t.ID
	}
	return ids
}

// ExpanderConfig bounds query expansion.
type ExpanderConfig struct {
	MaxTerms        int
	SynonymsPerTerm int
	IncludeSynonyms bool
}

// DefaultExpanderConfig returns five terms with up to two synonyms each.
func DefaultExpanderConfig() ExpanderConfig {
	return ExpanderConfig{MaxTerms: 5, SynonymsPerTerm: 2, IncludeSynonyms: true}
}

// Expander rewrites queries using one TermIndex snapshot.
type Expander struct {
	index *TermIndex
	cfg   ExpanderConfig
}

// NewExpander binds an expander to idx.
func NewExpander(idx *TermIndex, cfg ExpanderConfig) *Expander {
	return &Expander{index: idx, cfg: cfg}
}

// Tokenize lowercases query, replaces every rune that is not a letter,
// digit, underscore, hyphen or whitespace with a space, and emits for each
// word position its unigram, bigram and trigram.
func Tokenize(query string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, strings.ToLower(query))

	words := strings.Fields(cleaned)
	tokens := make([]string, 0, 3*len(words))
	for i := range words {
		tokens = append(tokens, words[i])
		if i+1 < len(words) {
			tokens = append(tokens, words[i]+" "+words[i+1])
		}
		if i+2 < len(words) {
			tokens = append(tokens, words[i]+" "+words[i+1]+" "+words[i+2])
		}
	}
	return tokens
}

// FindMatchingTerms returns up to maxTerms distinct terms owning a phrase
// that contains a token as a substring. Tokens are tried in order, phrases
// in index order. Tokens shorter than three characters are skipped.
func (e *Expander) FindMatchingTerms(tokens []string, maxTerms int) []*store.Term {
	if maxTerms <= 0 || e.index.Empty() {
		return nil
	}

	var matched []*store.Term
	seen := make(map[string]struct{})

	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < minExpansionToken {
			continue
		}
		for _, p := range e.index.phrases {
			if !strings.Contains(p.text, tok) {
				continue
			}
			for _, id := range p.termIDs {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				matched = append(matched, e.index.byID[id])
				if len(matched) >= maxTerms {
					return matched
				}
			}
		}
	}

	return matched
}

// Expand appends the preferred names of matched terms, and optionally their
// first synonyms, to query. Names already present in the query
// (case-insensitive) are not repeated. The expanded query always begins
// with the original.
func (e *Expander) Expand(query string, maxTerms int, includeSynonyms bool) Expansion {
	out := Expansion{
		OriginalQuery:   query,
		ExpandedQuery:   query,
		MatchedTerms:    []*store.Term{},
		ExpansionTokens: []string{},
	}

	terms := e.FindMatchingTerms(Tokenize(query), maxTerms)
	if len(terms) == 0 {
		return out
	}
	out.MatchedTerms = terms

	lowerQuery := strings.ToLower(query)
	novel := func(s string) bool {
		return !strings.Contains(lowerQuery, strings.ToLower(s))
	}

	for _, t := range terms {
		if novel(t.PreferredName) {
			out.ExpansionTokens = append(out.ExpansionTokens, t.PreferredName)
		}
		if !includeSynonyms {
			continue
		}
		syns := t.Synonyms
		if n := e.cfg.SynonymsPerTerm; n >= 0 && len(syns) > n {
			syns = syns[:n]
		}
		for _, syn := range syns {
			if novel(syn) {
				out.ExpansionTokens = append(out.ExpansionTokens, syn)
			}
		}
	}

	if len(out.ExpansionTokens) > 0 {
		out.ExpandedQuery = query + " " + strings.Join(out.ExpansionTokens, " ")
	}
	return out
}

// ExpandDefault expands with the configured term cap and synonym setting.
func (e *Expander) ExpandDefault(query string) Expansion {
	return e.Expand(query, e.cfg.MaxTerms, e.cfg.IncludeSynonyms)
}
