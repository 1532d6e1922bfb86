package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/embed"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// lexicalOverfetch widens an index query when results are filtered after
// retrieval.
const lexicalOverfetch = 4

// VectorRetriever embeds the query and searches a vector store.
type VectorRetriever struct {
	embedder embed.Embedder
	vectors  store.VectorStore
}

var _ SemanticRetriever = (*VectorRetriever)(nil)

// NewVectorRetriever creates a semantic retriever.
func NewVectorRetriever(embedder embed.Embedder, vectors store.VectorStore) (*VectorRetriever, error) {
	if embedder == nil || vectors == nil {
		return nil, fmt.Errorf("vector retriever: %w", ErrNilDependency)
	}
	return &VectorRetriever{embedder: embedder, vectors: vectors}, nil
}

// SearchSemantic returns the topK nearest series to text.
func (r *VectorRetriever) SearchSemantic(ctx context.Context, text string, topK int) ([]Hit, error) {
	if topK <= 0 || r.vectors.Count() == 0 {
		return []Hit{}, nil
	}

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.vectors.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	hits := make([]Hit, len(results))
	for i, res := range results {
		hits[i] = Hit{ID: res.ID, Score: float64(res.Score)}
	}
	return hits, nil
}

// IndexLexicalRetriever searches a BM25 index. Index entries carry no
// metadata, so active filters are checked against the record store.
type IndexLexicalRetriever struct {
	index  store.BM25Index
	series store.SeriesStore
}

var _ LexicalRetriever = (*IndexLexicalRetriever)(nil)

// NewIndexLexicalRetriever creates a lexical retriever over a BM25 index.
func NewIndexLexicalRetriever(index store.BM25Index, series store.SeriesStore) (*IndexLexicalRetriever, error) {
	if index == nil || series == nil {
		return nil, fmt.Errorf("lexical retriever: %w", ErrNilDependency)
	}
	return &IndexLexicalRetriever{index: index, series: series}, nil
}

// SearchLexical returns up to topK series matching query and filters.
func (r *IndexLexicalRetriever) SearchLexical(ctx context.Context, query string, filters Filters, topK int) ([]Hit, error) {
	if topK <= 0 {
		return []Hit{}, nil
	}

	limit := topK
	if !filters.IsZero() {
		limit = topK * lexicalOverfetch
	}

	results, err := r.index.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical index search failed: %w", err)
	}

	if filters.IsZero() {
		return bm25Hits(results, topK), nil
	}

	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.DocID
	}
	records, err := r.series.GetSeries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load series for filtering: %w", err)
	}

	kept := make([]*store.BM25Result, 0, len(results))
	for _, res := range results {
		if filters.Matches(records[res.DocID]) {
			kept = append(kept, res)
		}
	}
	return bm25Hits(kept, topK), nil
}

// LikeRetriever runs substring search in the record store, with filters
// applied in SQL.
type LikeRetriever struct {
	searcher store.LikeSearcher
}

var _ LexicalRetriever = (*LikeRetriever)(nil)

// NewLikeRetriever creates a substring lexical retriever.
func NewLikeRetriever(searcher store.LikeSearcher) (*LikeRetriever, error) {
	if searcher == nil {
		return nil, fmt.Errorf("like retriever: %w", ErrNilDependency)
	}
	return &LikeRetriever{searcher: searcher}, nil
}

// SearchLexical returns up to topK series containing any query word.
func (r *LikeRetriever) SearchLexical(ctx context.Context, query string, filters Filters, topK int) ([]Hit, error) {
	if topK <= 0 {
		return []Hit{}, nil
	}
	results, err := r.searcher.LikeSearch(ctx, query, filters.ToSeriesFilter(), topK)
	if err != nil {
		return nil, fmt.Errorf("substring search failed: %w", err)
	}
	return bm25Hits(results, topK), nil
}

func bm25Hits(results []*store.BM25Result, limit int) []Hit {
	if len(results) > limit {
		results = results[:limit]
	}
	hits := make([]Hit, len(results))
	for i, res := range results {
		hits[i] = Hit{ID: res.DocID, Score: res.Score}
	}
	return hits
}
