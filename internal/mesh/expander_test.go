package mesh

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSampleExpander() *Expander {
	return NewExpander(BuildIndex(SampleTerms()), DefaultExpanderConfig())
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "uni bi and trigrams",
			query: "Breast cancer, RNA-seq!",
			want: []string{
				"breast", "breast cancer", "breast cancer rna-seq",
				"cancer", "cancer rna-seq",
				"rna-seq",
			},
		},
		{
			name:  "underscores kept",
			query: "gene_id",
			want:  []string{"gene_id"},
		},
		{
			name:  "empty",
			query: " ?! ",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.query))
		})
	}
}

func TestExpander_FindMatchingTerms(t *testing.T) {
	e := newSampleExpander()

	// Given: tokens in query order; phrases are scanned in dictionary order
	terms := e.FindMatchingTerms(Tokenize("breast cancer"), 5)

	ids := make([]string, len(terms))
	for i, term := range terms {
		ids[i] = term.ID
	}
	assert.Equal(t, []string{"D001943", "D008175", "D009369"}, ids)

	// Then: the cap applies across tokens
	assert.Len(t, e.FindMatchingTerms(Tokenize("breast cancer"), 2), 2)
	assert.Empty(t, e.FindMatchingTerms(Tokenize("breast cancer"), 0))
}

func TestExpander_FindMatchingTerms_SkipsShortTokens(t *testing.T) {
	e := newSampleExpander()

	// "rn" is contained in many phrases but is below the token minimum
	assert.Empty(t, e.FindMatchingTerms([]string{"rn", "ce"}, 5))
}

func TestExpander_Expand(t *testing.T) {
	e := newSampleExpander()

	// When: expanding with synonyms
	got := e.Expand("breast cancer", 5, true)

	// Then: preferred names and the first two synonyms of each term are
	// appended, skipping anything already in the query
	assert.Equal(t, "breast cancer", got.OriginalQuery)
	assert.Equal(t, []string{"D001943", "D008175", "D009369"}, got.MatchedTermIDs())
	assert.Equal(t, []string{
		"Breast Neoplasms", "Mammary Cancer",
		"Lung Neoplasms", "Lung Cancer", "Pulmonary Cancer",
		"Neoplasms", "Tumor",
	}, got.ExpansionTokens)
	assert.Equal(t, "breast cancer "+strings.Join(got.ExpansionTokens, " "), got.ExpandedQuery)
}

func TestExpander_Expand_WithoutSynonyms(t *testing.T) {
	e := newSampleExpander()

	got := e.Expand("breast cancer", 1, false)

	assert.Equal(t, []string{"D001943"}, got.MatchedTermIDs())
	assert.Equal(t, []string{"Breast Neoplasms"}, got.ExpansionTokens)
	assert.Equal(t, "breast cancer Breast Neoplasms", got.ExpandedQuery)
}

func TestExpander_Expand_NoMatch(t *testing.T) {
	e := newSampleExpander()

	// When: nothing in the dictionary matches
	got := e.Expand("xyzabc123", 5, true)

	// Then: the query passes through untouched
	assert.Equal(t, "xyzabc123", got.ExpandedQuery)
	require.NotNil(t, got.MatchedTerms)
	assert.Empty(t, got.MatchedTerms)
	require.NotNil(t, got.ExpansionTokens)
	assert.Empty(t, got.ExpansionTokens)
}

func TestExpander_Expand_NameAlreadyInQuery(t *testing.T) {
	e := newSampleExpander()

	// Every novel name of D051379 is already present
	got := e.Expand("Mice mouse Mus musculus", 1, true)

	assert.Equal(t, []string{"D051379"}, got.MatchedTermIDs())
	assert.Empty(t, got.ExpansionTokens)
	assert.Equal(t, "Mice mouse Mus musculus", got.ExpandedQuery)
}

func TestExpander_Expand_EmptyIndex(t *testing.T) {
	e := NewExpander(BuildIndex(nil), DefaultExpanderConfig())

	got := e.Expand("breast cancer", 5, true)

	assert.Equal(t, "breast cancer", got.ExpandedQuery)
	assert.Empty(t, got.MatchedTerms)
}

func TestExpander_Expand_KeepsOriginalPrefix(t *testing.T) {
	e := newSampleExpander()
	queries := []string{
		"", "rna-seq of mouse liver", "Single cell atlas", "DIABETES",
		"lung tumor microarray", "xyz", "cancer", "C57BL/6 knockout",
	}

	for _, q := range queries {
		got := e.ExpandDefault(q)
		assert.True(t, strings.HasPrefix(got.ExpandedQuery, q), "query %q", q)
		assert.Contains(t, got.ExpandedQuery, got.OriginalQuery)
		assert.LessOrEqual(t, len(got.MatchedTerms), DefaultExpanderConfig().MaxTerms)
	}
}
