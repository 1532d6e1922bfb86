package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

func newSampleMatcher() *Matcher {
	return NewMatcher(BuildIndex(SampleTerms()), DefaultMatcherConfig())
}

// =============================================================================
// Match
// =============================================================================

func TestMatcher_Match_ExactPhrases(t *testing.T) {
	// Given: two single-phrase terms
	idx := BuildIndex([]*store.Term{
		{ID: "T1", PreferredName: "breast cancer"},
		{ID: "T2", PreferredName: "rna sequencing"},
	})
	m := NewMatcher(idx, DefaultMatcherConfig())

	// When: both appear verbatim
	got := m.Match("This breast cancer rna sequencing study looked at tumors.", 1.0)

	// Then: two-word exact matches score 0.5 + 0.2
	require.Len(t, got, 2)
	assert.InDelta(t, 0.7, got["T1"], 1e-9)
	assert.InDelta(t, 0.7, got["T2"], 1e-9)
}

func TestMatcher_Match_Confidence(t *testing.T) {
	idx := BuildIndex([]*store.Term{
		{ID: "T1", PreferredName: "rna sequencing"},
		{ID: "T2", PreferredName: "cancer of breast", Synonyms: []string{"breast cancer"}},
		{ID: "T3", PreferredName: "very long five word phrase here"},
		{ID: "T4", PreferredName: "tumor tumor"},
	})
	m := NewMatcher(idx, DefaultMatcherConfig())

	tests := []struct {
		name   string
		text   string
		weight float64
		id     string
		want   float64
	}{
		{"subset of tokens", "sequencing of rna", 1, "T1", 0.5},
		{"punctuation trimmed from tokens", "Rna, and sequencing.", 1, "T1", 0.5},
		{"case insensitive exact", "RNA Sequencing was done", 1, "T1", 0.7},
		{"weight scales confidence", "rna sequencing", 2, "T1", 1.4},
		{"best phrase wins", "a cancer of breast", 1, "T2", 0.8},
		{"exact capped at one", "very long five word phrase here", 1, "T3", 1.0},
		{"subset capped", "here phrase word five long very", 1, "T3", 0.7},
		{"subset counts distinct words", "the tumor grew", 1, "T4", 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(tt.text, tt.weight)
			assert.InDelta(t, tt.want, got[tt.id], 1e-9)
		})
	}
}

func TestMatcher_Match_NoMatch(t *testing.T) {
	m := newSampleMatcher()

	tests := []struct {
		name string
		text string
	}{
		{"empty text", ""},
		{"whitespace", "   \n\t"},
		{"unrelated text", "xyzabc123 qwerty"},
		{"partial phrase words", "breast tissue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, m.Match(tt.text, 1))
		})
	}
}

func TestMatcher_Match_EmptyIndex(t *testing.T) {
	m := NewMatcher(BuildIndex(nil), DefaultMatcherConfig())
	assert.Empty(t, m.Match("breast cancer", 1))

	var nilIndex *TermIndex
	m = NewMatcher(nilIndex, DefaultMatcherConfig())
	assert.Empty(t, m.Match("breast cancer", 1))
}

func TestMatcher_Match_ConfidenceBoundedByWeight(t *testing.T) {
	m := newSampleMatcher()
	texts := []string{
		"Breast cancer RNA-Seq of primary tumors in humans",
		"Single-cell analysis of mouse C57BL/6 cell cycle",
		"Next-generation sequencing of lung cancer and diabetes mellitus",
		"gene expression profiling microarray analysis",
		"cancer cancers tumor tumors malignancy neoplasms",
	}

	for _, text := range texts {
		for _, w := range []float64{0.5, 1.0, 1.5, 2.0} {
			for id, conf := range m.Match(text, w) {
				assert.GreaterOrEqual(t, conf, 0.0, "term %s in %q", id, text)
				assert.LessOrEqual(t, conf, w, "term %s in %q", id, text)
			}
		}
	}
}

func TestMatcher_Match_AgreesWithLinearScan(t *testing.T) {
	m := newSampleMatcher()
	texts := []string{
		"This breast cancer rna sequencing study looked at tumors.",
		"Mice, inbred C57BL on a high fat diet: metabolic disorder",
		"sequencing, high-throughput nucleotide; massively parallel",
		"human homo sapiens mouse mus musculus",
		"mitosis and the cell cycle in single cell data",
		"",
		"no vocabulary here",
	}

	for _, text := range texts {
		assert.Equal(t, m.matchNaive(text, 1.5), m.Match(text, 1.5), "text %q", text)
	}
}

// =============================================================================
// MatchEntity
// =============================================================================

func TestMatcher_MatchEntity_SortsAndFilters(t *testing.T) {
	m := newSampleMatcher()
	fields := []Field{{Name: "title", Text: "Breast cancer RNA-Seq", Weight: 2.0}}

	// When: matching with the default threshold
	got := m.MatchEntity(fields, 0.3)

	// Then: highest confidence first, ties broken by term ID
	require.Len(t, got, 3)
	assert.Equal(t, "D001943", got[0].TermID)
	assert.InDelta(t, 1.4, got[0].Confidence, 1e-9)
	assert.Equal(t, "D009369", got[1].TermID)
	assert.Equal(t, "D017423", got[2].TermID)
	assert.InDelta(t, got[1].Confidence, got[2].Confidence, 1e-9)

	// When: raising the threshold above the ties
	got = m.MatchEntity(fields, 1.3)

	// Then: only the strongest term survives
	require.Len(t, got, 1)
	assert.Equal(t, "D001943", got[0].TermID)
}

func TestMatcher_MatchEntity_KeepsBestFieldScore(t *testing.T) {
	m := newSampleMatcher()
	fields := []Field{
		{Name: "summary", Text: "mitosis", Weight: 1.5},
		{Name: "overall_design", Text: "mitosis", Weight: 1.0},
	}

	got := m.MatchEntity(fields, 0)

	require.Len(t, got, 1)
	assert.Equal(t, "D002455", got[0].TermID)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-9)
}

func TestMatcher_MatchSeries(t *testing.T) {
	m := newSampleMatcher()
	s := &store.Series{
		Accession:     "GSE1",
		Title:         "Lung cancer profiling",
		Summary:       "",
		OverallDesign: "Tumors from C57BL mice",
	}

	fields := m.SeriesFields(s)
	require.Len(t, fields, 2)
	assert.Equal(t, "title", fields[0].Name)
	assert.Equal(t, "overall_design", fields[1].Name)

	ids := make([]string, 0)
	for _, tm := range m.MatchSeries(s) {
		ids = append(ids, tm.TermID)
	}
	assert.Contains(t, ids, "D008175")
	assert.Contains(t, ids, "D009369")
	assert.Contains(t, ids, "D016513")
}
