package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	// TextTokenizerName is the registered name of the biomedical tokenizer.
	TextTokenizerName = "geo_text"

	// TextStopFilterName is the registered name of the stop word filter.
	TextStopFilterName = "geo_stop"

	// TextAnalyzerName is the default analyzer for series content.
	TextAnalyzerName = "geo_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(TextTokenizerName, textTokenizerConstructor)
	_ = registry.RegisterTokenFilter(TextStopFilterName, textStopFilterConstructor)
}

// BleveBM25Index is a BM25Index backed by Bleve v2.
type BleveBM25Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config BM25Config
	closed bool
}

var _ BM25Index = (*BleveBM25Index)(nil)

// bleveDocument is the stored shape of a series in Bleve.
type bleveDocument struct {
	Content string `json:"content"`
}

// validateBleveIntegrity rejects an index directory whose metadata is
// missing or unreadable.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(path, "index_meta.json"))
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isBleveCorruption(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, bleve.ErrorIndexMetaCorrupt) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt")
}

// NewBleveBM25Index opens or creates a Bleve index at path.
// An empty path creates an in-memory index. Corrupt indexes are cleared.
func NewBleveBM25Index(path string, config BM25Config) (*BleveBM25Index, error) {
	m, err := newIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("lexical_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if err := os.RemoveAll(path); err != nil {
				return nil, fmt.Errorf("lexical index corrupted at %s and cannot remove: %w", path, err)
			}
		}

		idx, err = bleve.Open(path)
		switch {
		case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
			idx, err = bleve.New(path, m)
		case isBleveCorruption(err):
			slog.Warn("lexical_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, fmt.Errorf("lexical index corrupted, cannot clear: %w", rmErr)
			}
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveBM25Index{index: idx, path: path, config: config}, nil
}

func newIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(TextAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     TextTokenizerName,
		"token_filters": []string{TextStopFilterName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add analyzer: %w", err)
	}
	m.DefaultAnalyzer = TextAnalyzerName
	return m, nil
}

// Index adds or replaces documents in one batch.
func (b *BleveBM25Index) Index(_ context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, bleveDocument{Content: doc.Content}); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search runs a match query (OR over analyzed tokens) against content.
func (b *BleveBM25Index) Search(ctx context.Context, query string, limit int) ([]*BM25Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []*BM25Result{}, nil
	}

	mq := bleve.NewMatchQuery(query)
	mq.SetField("content")

	req := bleve.NewSearchRequest(mq)
	req.Size = limit
	req.IncludeLocations = true

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*BM25Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, &BM25Result{
			DocID:        hit.ID,
			Score:        hit.Score,
			MatchedTerms: matchedTerms(hit),
		})
	}
	return results, nil
}

// Delete removes documents by accession.
func (b *BleveBM25Index) Delete(_ context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range docIDs {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// AllIDs returns every indexed accession, sorted.
func (b *BleveBM25Index) AllIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	count, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	ids := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		ids[i] = hit.ID
	}
	sort.Strings(ids)
	return ids, nil
}

// Stats returns the document count.
func (b *BleveBM25Index) Stats() *IndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return &IndexStats{}
	}
	count, _ := b.index.DocCount()
	return &IndexStats{DocumentCount: int(count)}
}

// Save is a no-op; Bleve persists on every batch.
func (b *BleveBM25Index) Save(string) error { return nil }

// Load reopens the index at path.
func (b *BleveBM25Index) Load(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index != nil && !b.closed {
		_ = b.index.Close()
	}

	idx, err := bleve.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	b.index = idx
	b.path = path
	b.closed = false
	return nil
}

// Close closes the index. Safe to call twice.
func (b *BleveBM25Index) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

func matchedTerms(hit *search.DocumentMatch) []string {
	var terms []string
	for term := range hit.Locations["content"] {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

func textTokenizerConstructor(map[string]any, *registry.Cache) (analysis.Tokenizer, error) {
	return textTokenizer{}, nil
}

// textTokenizer adapts TokenizeText to Bleve. Offsets point at the first
// occurrence of each token after the previous one.
type textTokenizer struct{}

func (textTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := strings.ToLower(string(input))
	tokens := TokenizeText(text)

	stream := make(analysis.TokenStream, 0, len(tokens))
	offset := 0
	for i, tok := range tokens {
		start := offset
		if at := strings.Index(text[offset:], tok); at >= 0 {
			start = offset + at
			offset = start
		}
		stream = append(stream, &analysis.Token{
			Term:     []byte(tok),
			Start:    start,
			End:      start + len(tok),
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return stream
}

func textStopFilterConstructor(map[string]any, *registry.Cache) (analysis.TokenFilter, error) {
	return stopFilter{stopWords: BuildStopWordMap(DefaultStopWords)}, nil
}

type stopFilter struct {
	stopWords map[string]struct{}
}

func (f stopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		if _, stop := f.stopWords[string(tok.Term)]; !stop {
			out = append(out, tok)
		}
	}
	return out
}
