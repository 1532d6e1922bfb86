package mcp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/mesh"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/search"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

func TestFormatSearchResults_Basic(t *testing.T) {
	// Given: one result with facts and evidence
	samples := 8
	resp := oneResult()
	resp.Results[0].Series.Organisms = []string{"Homo sapiens"}
	resp.Results[0].Series.TechType = "rna-seq"
	resp.Results[0].Series.SampleCount = &samples
	resp.Results[0].Snippet = "...breast tumors..."

	// When: formatting results
	markdown := FormatSearchResults(resp)

	// Then: markdown contains expected elements
	assert.Contains(t, markdown, `## Dataset Results for "breast cancer"`)
	assert.Contains(t, markdown, "Expanded query: `breast cancer Breast Neoplasms`")
	assert.Contains(t, markdown, "Found 1 result\n")
	assert.Contains(t, markdown, "### 1. GSE10: Breast tumor profiling (score: 0.4200)")
	assert.Contains(t, markdown, "**Homo sapiens | rna-seq | 8 samples**")
	assert.Contains(t, markdown, "**MeSH:** Breast Neoplasms")
	assert.Contains(t, markdown, "...breast tumors...")
	assert.Contains(t, markdown, search.GEOURL("GSE10"))
}

func TestFormatSearchResults_Plural(t *testing.T) {
	resp := oneResult()
	second := *resp.Results[0]
	second.Accession = "GSE11"
	resp.Results = append(resp.Results, &second)

	markdown := FormatSearchResults(resp)

	assert.Contains(t, markdown, "Found 2 results")
	assert.Less(t, strings.Index(markdown, "GSE10"), strings.Index(markdown, "GSE11"))
}

func TestFormatSearchResults_EmptyAndDegraded(t *testing.T) {
	resp := &search.SearchResponse{Metadata: search.SearchMetadata{
		Query:    "zebrafish",
		Degraded: []string{search.SourceSemantic, search.SourceLexical},
	}}

	markdown := FormatSearchResults(resp)

	assert.Contains(t, markdown, "Partial results: semantic, lexical retrieval unavailable")
	assert.Contains(t, markdown, `No datasets found for "zebrafish"`)
}

func TestFormatSearchResults_SkipsResultsWithoutRecord(t *testing.T) {
	resp := oneResult()
	resp.Results = append(resp.Results, nil, &search.SearchResult{Accession: "GSE12"})

	markdown := FormatSearchResults(resp)

	assert.Contains(t, markdown, "Found 1 result")
	assert.NotContains(t, markdown, "GSE12")
}

func TestFormatSearchResults_Nil(t *testing.T) {
	assert.Equal(t, "No results.", FormatSearchResults(nil))
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero uses default", 0, 10},
		{"negative uses default", -5, 10},
		{"within bounds", 25, 25},
		{"above max", 500, 100},
		{"at min", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampLimit(tt.limit, 10, 1, 100))
		})
	}
}

func TestGenerateMatchReason(t *testing.T) {
	tests := []struct {
		name   string
		result *search.SearchResult
		want   string
	}{
		{"semantic only", &search.SearchResult{SemanticRank: 3}, "semantic match (#3)"},
		{"lexical only", &search.SearchResult{LexicalRank: 1}, "keyword match (#1)"},
		{
			"both with terms",
			&search.SearchResult{SemanticRank: 1, LexicalRank: 2, MatchedTerms: make([]search.MatchedTerm, 2)},
			"found by both semantic (#1) and keyword (#2) search; tagged with 2 query MeSH terms",
		},
		{"nothing", &search.SearchResult{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generateMatchReason(tt.result))
		})
	}
}

func TestToDatasetResult_NilSafe(t *testing.T) {
	assert.Equal(t, DatasetResult{}, ToDatasetResult(nil))
	assert.Equal(t, DatasetResult{}, ToDatasetResult(&search.SearchResult{Accession: "GSE1"}))
}

func TestToSearchOutput_UnexpandedQuery(t *testing.T) {
	resp := oneResult()
	resp.Metadata.ExpandedQuery = resp.Metadata.Query

	out := ToSearchOutput(resp)

	assert.Empty(t, out.ExpandedQuery)
	assert.Equal(t, 1, out.Total)
}

func TestToDatasetOutput(t *testing.T) {
	// Given: a dated record with one known and one unknown term
	submitted := time.Date(2019, 5, 2, 0, 0, 0, 0, time.UTC)
	s := &store.Series{Accession: "GSE5", Title: "T", SubmissionDate: &submitted, PubMedIDs: []string{"123"}}
	assocs := []*store.Association{
		{TermID: "D001943", Source: store.SourceManual, Confidence: 1},
		{TermID: "D000000", Source: store.SourceAuto, Confidence: 0.4},
	}
	idx := mesh.BuildIndex(mesh.SampleTerms())

	// When: converting
	out := ToDatasetOutput(s, assocs, idx)

	// Then: dates are formatted and unknown terms keep their ID
	assert.Equal(t, "2019-05-02", out.SubmissionDate)
	assert.Empty(t, out.LastUpdateDate)
	assert.Equal(t, []string{"123"}, out.PubMedIDs)
	require.Len(t, out.MeshTerms, 2)
	assert.Equal(t, "Breast Neoplasms", out.MeshTerms[0].Name)
	assert.Equal(t, "D000000", out.MeshTerms[1].Name)
}

func TestToExpandOutput_EmptyExpansion(t *testing.T) {
	out := ToExpandOutput(mesh.Expansion{OriginalQuery: "xyz", ExpandedQuery: "xyz"})

	assert.NotNil(t, out.MatchedTerms)
	assert.NotNil(t, out.ExpansionTokens)
	assert.Empty(t, out.MatchedTerms)
}
