package mesh

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// Confidence formula constants.
const (
	exactBase   = 0.5
	exactCap    = 1.0
	subsetBase  = 0.3
	subsetCap   = 0.7
	perWordStep = 0.1
)

// MatchResult maps term ID to confidence in [0, weight].
type MatchResult map[string]float64

// Field is one weighted text field of an entity.
type Field struct {
	Name   string
	Text   string
	Weight float64
}

// TermMatch is a term recognized in an entity.
type TermMatch struct {
	TermID     string  `json:"term_id"`
	Confidence float64 `json:"confidence"`
}

// MatcherConfig holds the field weights and acceptance threshold.
type MatcherConfig struct {
	Threshold     float64
	TitleWeight   float64
	SummaryWeight float64
	DesignWeight  float64
}

// DefaultMatcherConfig returns the standard weights: title 2.0, summary 1.5,
// overall design 1.0, threshold 0.3.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		Threshold:     0.3,
		TitleWeight:   2.0,
		SummaryWeight: 1.5,
		DesignWeight:  1.0,
	}
}

// Matcher scores term occurrences in text against one TermIndex snapshot.
type Matcher struct {
	index *TermIndex
	cfg   MatcherConfig
}

// NewMatcher binds a matcher to idx.
func NewMatcher(idx *TermIndex, cfg MatcherConfig) *Matcher {
	return &Matcher{index: idx, cfg: cfg}
}

// Index returns the snapshot the matcher reads.
func (m *Matcher) Index() *TermIndex {
	return m.index
}

func exactConfidence(words int) float64 {
	return math.Min(exactCap, exactBase+perWordStep*float64(words))
}

func subsetConfidence(words int) float64 {
	return math.Min(subsetCap, subsetBase+perWordStep*float64(words))
}

// textTokens lowercases text, splits on whitespace and trims leading and
// trailing punctuation from each token.
func textTokens(lower string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.Fields(lower) {
		tok := strings.TrimFunc(f, unicode.IsPunct)
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}

// Match scores every indexed phrase against text. A phrase found as a
// contiguous substring scores min(1, 0.5 + 0.1*words); otherwise a phrase
// whose words all occur as tokens scores min(0.7, 0.3 + 0.1*words). Scores
// are multiplied by weight and each term keeps its best phrase.
func (m *Matcher) Match(text string, weight float64) MatchResult {
	result := make(MatchResult)
	if m.index.Empty() || strings.TrimSpace(text) == "" {
		return result
	}

	lower := strings.ToLower(text)
	exact := make(map[int]struct{})

	m.index.ac.find(lower, func(pos int) {
		exact[pos] = struct{}{}
		p := &m.index.phrases[pos]
		result.keepMax(p.termIDs, exactConfidence(p.words)*weight)
	})

	// Bag-of-words pass: count how many distinct words of each phrase occur
	// as tokens; a phrase qualifies when every word does.
	hits := make(map[int]int)
	for tok := range textTokens(lower) {
		for _, pos := range m.index.byWord[tok] {
			hits[pos]++
		}
	}
	for pos, n := range hits {
		if _, done := exact[pos]; done {
			continue
		}
		p := &m.index.phrases[pos]
		if n == len(p.distinct) {
			result.keepMax(p.termIDs, subsetConfidence(len(p.distinct))*weight)
		}
	}

	return result
}

// matchNaive is the linear-scan reference for Match.
func (m *Matcher) matchNaive(text string, weight float64) MatchResult {
	result := make(MatchResult)
	if m.index.Empty() || strings.TrimSpace(text) == "" {
		return result
	}

	lower := strings.ToLower(text)
	tokens := textTokens(lower)

	for _, p := range m.index.phrases {
		var conf float64
		if strings.Contains(lower, p.text) {
			conf = exactConfidence(p.words)
		} else {
			all := true
			for _, w := range p.distinct {
				if _, ok := tokens[w]; !ok {
					all = false
					break
				}
			}
			if !all {
				continue
			}
			conf = subsetConfidence(len(p.distinct))
		}
		result.keepMax(p.termIDs, conf*weight)
	}

	return result
}

func (r MatchResult) keepMax(ids []string, conf float64) {
	for _, id := range ids {
		if cur, ok := r[id]; !ok || conf > cur {
			r[id] = conf
		}
	}
}

// MatchEntity matches each field, keeps each term's best score, drops
// scores below threshold and sorts by confidence descending then term ID.
func (m *Matcher) MatchEntity(fields []Field, threshold float64) []TermMatch {
	merged := make(MatchResult)
	for _, f := range fields {
		for id, conf := range m.Match(f.Text, f.Weight) {
			merged.keepMax([]string{id}, conf)
		}
	}

	matches := make([]TermMatch, 0, len(merged))
	for id, conf := range merged {
		if conf >= threshold {
			matches = append(matches, TermMatch{TermID: id, Confidence: conf})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].TermID < matches[j].TermID
	})
	return matches
}

// SeriesFields returns the weighted fields of a series. Empty fields are
// omitted.
func (m *Matcher) SeriesFields(s *store.Series) []Field {
	var fields []Field
	add := func(name, text string, weight float64) {
		if strings.TrimSpace(text) != "" {
			fields = append(fields, Field{Name: name, Text: text, Weight: weight})
		}
	}
	add("title", s.Title, m.cfg.TitleWeight)
	add("summary", s.Summary, m.cfg.SummaryWeight)
	add("overall_design", s.OverallDesign, m.cfg.DesignWeight)
	return fields
}

// MatchSeries runs MatchEntity over a series with the configured weights
// and threshold.
func (m *Matcher) MatchSeries(s *store.Series) []TermMatch {
	return m.MatchEntity(m.SeriesFields(s), m.cfg.Threshold)
}
