package search

import (
	"sort"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
const DefaultRRFConstant = 60

// FusedItem is one candidate after fusion.
type FusedItem struct {
	ID string

	// SemanticRank and LexicalRank are 1-based positions (0 if absent).
	SemanticRank int
	LexicalRank  int

	RRFScore float64
	Boost    float64

	// Score is RRFScore plus Boost.
	Score float64

	// Ordinal is the order in which the item was first seen across the
	// source lists, semantic first.
	Ordinal int
}

// RRFFusion combines ranked lists with Reciprocal Rank Fusion.
//
// Algorithm: RRF_score(d) = Σ 1 / (k + rank_i)
//
// Where:
//   - k = smoothing constant (default: 60)
//   - rank_i = position in ranked list i (1-indexed)
//
// An item absent from a list gets nothing from it.
type RRFFusion struct {
	K int
}

// NewRRFFusion creates a fusion with k=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK creates a fusion with a custom k. If k <= 0, defaults to 60.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Contribution is the score an item at 1-based rank adds.
func (f *RRFFusion) Contribution(rank int) float64 {
	return 1.0 / float64(f.K+rank)
}

// Fuse accumulates RRF scores over the semantic list, then the lexical list.
// Items are returned in first-discovery order, unsorted.
func (f *RRFFusion) Fuse(semantic, lexical []Hit) []*FusedItem {
	items := make([]*FusedItem, 0, len(semantic)+len(lexical))
	byID := make(map[string]*FusedItem, len(semantic)+len(lexical))

	add := func(hits []Hit, setRank func(*FusedItem, int)) {
		for i, h := range hits {
			item, ok := byID[h.ID]
			if !ok {
				item = &FusedItem{ID: h.ID, Ordinal: len(items)}
				byID[h.ID] = item
				items = append(items, item)
			}
			setRank(item, i+1)
			item.RRFScore += f.Contribution(i + 1)
		}
	}

	// A repeated ID within one list keeps its best rank but every
	// occurrence contributes.
	add(semantic, func(it *FusedItem, rank int) {
		if it.SemanticRank == 0 {
			it.SemanticRank = rank
		}
	})
	add(lexical, func(it *FusedItem, rank int) {
		if it.LexicalRank == 0 {
			it.LexicalRank = rank
		}
	})

	for _, it := range items {
		it.Score = it.RRFScore
	}
	return items
}

// BoostFor returns min(cap, perTerm × count).
func BoostFor(count int, perTerm, cap float64) float64 {
	if count <= 0 {
		return 0
	}
	b := perTerm * float64(count)
	if b > cap {
		return cap
	}
	return b
}

// ApplyBoost adds each item's term boost to its score.
func ApplyBoost(items []*FusedItem, counts map[string]int, perTerm, cap float64) {
	for _, it := range items {
		it.Boost = BoostFor(counts[it.ID], perTerm, cap)
		it.Score = it.RRFScore + it.Boost
	}
}

// Rank sorts items by Score descending; ties keep first-discovery order.
func Rank(items []*FusedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Ordinal < items[j].Ordinal
	})
}
