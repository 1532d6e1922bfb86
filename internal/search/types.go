// Package search ranks GEO series against a free-text query by fusing
// semantic and lexical retrieval with Reciprocal Rank Fusion (RRF) and
// boosting series tagged with MeSH terms recognized in the query.
package search

import (
	"context"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// Retrieval source names, used in logs, metrics and response metadata.
const (
	SourceSemantic = "semantic"
	SourceLexical  = "lexical"
)

// GEOURLPrefix is the NCBI GEO accession viewer.
const GEOURLPrefix = "https://www.ncbi.nlm.nih.gov/geo/query/acc.cgi?acc="

// GEOURL returns the GEO page for accession.
func GEOURL(accession string) string {
	return GEOURLPrefix + accession
}

// Hit is one entry of a ranked retrieval list. Only the position in the
// list matters for fusion; Score is kept for display.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// SemanticRetriever returns series similar in meaning to text, best first.
type SemanticRetriever interface {
	SearchSemantic(ctx context.Context, text string, topK int) ([]Hit, error)
}

// LexicalRetriever returns series matching query keywords, best first.
// Implementations may apply filters early; the engine filters again.
type LexicalRetriever interface {
	SearchLexical(ctx context.Context, query string, filters Filters, topK int) ([]Hit, error)
}

// RecordStore is what the engine reads after fusion: series records and
// series-term associations.
type RecordStore interface {
	GetSeries(ctx context.Context, accessions []string) (map[string]*store.Series, error)
	CountAssociations(ctx context.Context, accessions, termIDs []string) (map[string]int, error)
	GetAssociations(ctx context.Context, accessions, termIDs []string) ([]*store.Association, error)
}

// SearchOptions configures one search.
type SearchOptions struct {
	// Filters restrict results after fusion. The zero value filters nothing.
	Filters Filters

	// UseSemantic enables vector retrieval over the expanded query.
	UseSemantic bool

	// UseLexical enables keyword retrieval over the raw query.
	UseLexical bool

	// UseMesh enables query expansion and the term boost.
	UseMesh bool

	// TopK is the number of results to return (default: search.final_top_k).
	TopK int
}

// DefaultSearchOptions enables every signal.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{UseSemantic: true, UseLexical: true, UseMesh: true}
}

// MatchedTerm is evidence that a result is tagged with a query term.
type MatchedTerm struct {
	TermID        string  `json:"term_id"`
	PreferredName string  `json:"preferred_name"`
	Confidence    float64 `json:"confidence"`
	Source        string  `json:"source"`
}

// SearchResult is one ranked series.
type SearchResult struct {
	Accession    string        `json:"accession"`
	Score        float64       `json:"score"`
	RRFScore     float64       `json:"rrf_score"`
	Boost        float64       `json:"boost"`
	SemanticRank int           `json:"semantic_rank,omitempty"`
	LexicalRank  int           `json:"lexical_rank,omitempty"`
	Series       *store.Series `json:"series"`
	MatchedTerms []MatchedTerm `json:"matched_terms"`
	Snippet      string        `json:"snippet,omitempty"`
	GEOURL       string        `json:"geo_url"`
}

// SearchMetadata describes how a response was produced.
type SearchMetadata struct {
	RequestID       string        `json:"request_id"`
	Query           string        `json:"query"`
	ExpandedQuery   string        `json:"expanded_query"`
	MatchedTerms    []*store.Term `json:"matched_terms"`
	ExpansionTokens []string      `json:"expansion_tokens"`

	SemanticCount  int `json:"semantic_count"`
	LexicalCount   int `json:"lexical_count"`
	CandidateCount int `json:"candidate_count"`
	TotalResults   int `json:"total_results"`

	// Degraded lists enabled sources that failed or timed out.
	Degraded []string `json:"degraded,omitempty"`

	DictionaryAvailable bool    `json:"dictionary_available"`
	Filters             Filters `json:"filters"`
	DurationMS          float64 `json:"duration_ms"`
}

// SearchResponse is the ranked result list and its metadata.
type SearchResponse struct {
	Results  []*SearchResult `json:"results"`
	Metadata SearchMetadata  `json:"metadata"`
}
