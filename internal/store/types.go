// Package store persists GEO series records, the MeSH term dictionary,
// series-term associations, and the lexical and vector indexes built over
// the records. SQLite (modernc) is the default backend; Postgres with
// pgvector is the shared-deployment alternative.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Association sources.
const (
	// SourceAuto marks associations written by the tagger.
	SourceAuto = "auto"
	// SourceManual marks curated associations. The tagger never removes them.
	SourceManual = "manual"
)

// Series is one GEO series record (accession GSE...).
type Series struct {
	Accession      string     `json:"accession"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary,omitempty"`
	OverallDesign  string     `json:"overall_design,omitempty"`
	Organisms      []string   `json:"organisms,omitempty"`
	Platforms      []string   `json:"platforms,omitempty"`
	TechType       string     `json:"tech_type,omitempty"`
	PubMedIDs      []string   `json:"pubmed_ids,omitempty"`
	SubmissionDate *time.Time `json:"submission_date,omitempty"`
	LastUpdateDate *time.Time `json:"last_update_date,omitempty"`
	SampleCount    *int       `json:"sample_count,omitempty"`
}

// SearchText is the text indexed for lexical and semantic retrieval.
func (s *Series) SearchText() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.Title, s.Summary, s.OverallDesign} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

// Term is one controlled-vocabulary entry (a MeSH descriptor).
type Term struct {
	ID            string   `json:"id"`
	PreferredName string   `json:"preferred_name"`
	Synonyms      []string `json:"synonyms,omitempty"`
	TreeNumbers   []string `json:"tree_numbers,omitempty"`
}

// Association links a series to a term.
type Association struct {
	Accession  string  `json:"accession"`
	TermID     string  `json:"term_id"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// SeriesFilter restricts the substring search to matching records.
// Nil and empty fields do not filter.
type SeriesFilter struct {
	Organisms  []string
	TechType   string
	From       *time.Time
	To         *time.Time
	MinSamples *int
}

// Stats summarizes store contents.
type Stats struct {
	Series       int `json:"series"`
	Terms        int `json:"terms"`
	Associations int `json:"associations"`
}

// SeriesStore persists series records.
type SeriesStore interface {
	// SaveSeries inserts or replaces records by accession.
	SaveSeries(ctx context.Context, series []*Series) error
	// GetSeries returns the records found for accessions, keyed by accession.
	// Missing accessions are absent from the map.
	GetSeries(ctx context.Context, accessions []string) (map[string]*Series, error)
	// ListAccessions returns every stored accession in insertion order.
	ListAccessions(ctx context.Context) ([]string, error)
	CountSeries(ctx context.Context) (int, error)
}

// TermStore persists the term dictionary.
type TermStore interface {
	// SaveTerms inserts or replaces terms by ID. Replacing keeps a term's
	// original position in the dictionary order.
	SaveTerms(ctx context.Context, terms []*Term) error
	// AllTerms returns every term in dictionary order.
	AllTerms(ctx context.Context) ([]*Term, error)
	CountTerms(ctx context.Context) (int, error)
}

// AssociationStore persists series-term associations.
type AssociationStore interface {
	// SaveAssociations upserts on (accession, term ID).
	SaveAssociations(ctx context.Context, assocs []*Association) error
	// DeleteAssociations removes an accession's associations with source.
	DeleteAssociations(ctx context.Context, accession, source string) error
	// CountAssociations counts, per accession, associations whose term is in termIDs.
	// Accessions with no such association are absent from the map.
	CountAssociations(ctx context.Context, accessions, termIDs []string) (map[string]int, error)
	// GetAssociations lists associations for accessions, limited to termIDs when non-empty.
	GetAssociations(ctx context.Context, accessions, termIDs []string) ([]*Association, error)
}

// LikeSearcher is substring search over the record store.
type LikeSearcher interface {
	LikeSearch(ctx context.Context, query string, filter SeriesFilter, limit int) ([]*BM25Result, error)
}

// Store is the full record store.
type Store interface {
	SeriesStore
	TermStore
	AssociationStore
	LikeSearcher
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Document is a unit of text indexed for lexical search.
type Document struct {
	ID      string // Series accession
	Content string
}

// BM25Result represents a single lexical search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the lexical index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index provides keyword search using the BM25 algorithm.
type BM25Index interface {
	// Index adds documents to the index, replacing existing IDs.
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, scored by BM25.
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Delete removes documents from index.
	Delete(ctx context.Context, docIDs []string) error

	// AllIDs returns all document IDs in the index.
	AllIDs() ([]string, error)

	// Stats returns index statistics.
	Stats() *IndexStats

	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the lexical index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2)
	K1 float64

	// B is the length normalization parameter (default: 0.75)
	B float64

	// StopWords are dropped at index and query time.
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 2)
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords are English function words plus boilerplate that
// appears in nearly every GEO record.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"in", "into", "is", "it", "of", "on", "or", "that", "the", "these",
	"this", "to", "was", "were", "which", "with",
	"study", "studies", "samples", "sample", "data", "dataset", "using", "used",
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Series accession
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the embedding dimension.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 20)
	EfSearch int
}

// DefaultVectorStoreConfig returns defaults for the given dimension.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides nearest-neighbour search over series embeddings.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store.
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'geosearch index --rebuild')", e.Expected, e.Got)
}
