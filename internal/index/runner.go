package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/embed"
	geoerrors "github.com/raghaviCJanaswamy/GEOSearch/internal/errors"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// Indexing stages reported to a ProgressFunc.
const (
	StageSave    = "save"
	StageLexical = "lexical"
	StageEmbed   = "embed"
)

const (
	// saveBatchSize is how many series are written per transaction.
	saveBatchSize = 500

	// lexicalBatchSize is how many documents go into one index batch.
	lexicalBatchSize = 500
)

// ProgressFunc receives stage progress. It may be called from several
// goroutines.
type ProgressFunc func(stage string, done, total int)

// RunnerConfig configures an indexing run.
type RunnerConfig struct {
	// BatchSize is the embedding batch size (default: embed.DefaultBatchSize).
	BatchSize int

	// LexicalPath and VectorPath persist the indexes after the run.
	// Empty paths skip persisting.
	LexicalPath string
	VectorPath  string

	// Compaction reclaims vector nodes orphaned by re-indexed series
	// before the vector index is saved. The zero value never compacts.
	Compaction store.CompactionPolicy
}

// RunnerResult contains the outcome of an indexing run.
type RunnerResult struct {
	// Series is the number of records saved.
	Series int

	// Lexical is the number of documents added to the lexical index.
	Lexical int

	// Vectors is the number of embeddings added to the vector store.
	Vectors int

	// Empty counts records with no searchable text. They are saved but not indexed.
	Empty int

	// Compacted is the number of orphaned vector nodes reclaimed.
	Compacted int

	Duration time.Duration
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Store receives the series records (required).
	Store store.SeriesStore

	// Lexical is the keyword index (required).
	Lexical store.BM25Index

	// Vectors and Embedder build the semantic index. Both or neither.
	Vectors  store.VectorStore
	Embedder embed.Embedder

	// Progress is optional.
	Progress ProgressFunc
}

// Runner saves series and indexes them for lexical and semantic retrieval.
type Runner struct {
	store    store.SeriesStore
	lexical  store.BM25Index
	vectors  store.VectorStore
	embedder embed.Embedder
	progress ProgressFunc
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("series store is required")
	}
	if deps.Lexical == nil {
		return nil, fmt.Errorf("lexical index is required")
	}
	if (deps.Vectors == nil) != (deps.Embedder == nil) {
		return nil, fmt.Errorf("vector store and embedder must be provided together")
	}

	progress := deps.Progress
	if progress == nil {
		progress = func(string, int, int) {}
	}

	return &Runner{
		store:    deps.Store,
		lexical:  deps.Lexical,
		vectors:  deps.Vectors,
		embedder: deps.Embedder,
		progress: progress,
	}, nil
}

// Run saves series, then builds the lexical and vector indexes
// concurrently. The first failure cancels the other stage.
func (r *Runner) Run(ctx context.Context, series []*store.Series, cfg RunnerConfig) (*RunnerResult, error) {
	start := time.Now()
	result := &RunnerResult{}

	if err := r.save(ctx, series); err != nil {
		return nil, err
	}
	result.Series = len(series)

	docs := documents(series)
	result.Empty = len(series) - len(docs)

	var lexical, vectors atomic.Int64

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := r.indexLexical(gctx, docs)
		lexical.Store(int64(n))
		return err
	})

	if r.vectors != nil {
		g.Go(func() error {
			n, err := r.embed(gctx, docs, cfg.BatchSize)
			vectors.Store(int64(n))
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, geoerrors.New(geoerrors.ErrCodeIndexFailed, "indexing failed", err)
	}

	result.Lexical = int(lexical.Load())
	result.Vectors = int(vectors.Load())

	compacted, err := r.persist(cfg)
	if err != nil {
		return nil, err
	}
	result.Compacted = compacted

	result.Duration = time.Since(start)
	slog.Info("index_complete",
		slog.Int("series", result.Series),
		slog.Int("lexical", result.Lexical),
		slog.Int("vectors", result.Vectors),
		slog.Int("empty", result.Empty),
		slog.Int("compacted", result.Compacted),
		slog.Duration("duration", result.Duration))

	return result, nil
}

func (r *Runner) save(ctx context.Context, series []*store.Series) error {
	for start := 0; start < len(series); start += saveBatchSize {
		end := min(start+saveBatchSize, len(series))
		if err := r.store.SaveSeries(ctx, series[start:end]); err != nil {
			return fmt.Errorf("failed to save series %d-%d: %w", start, end, err)
		}
		r.progress(StageSave, end, len(series))
	}
	return nil
}

func (r *Runner) indexLexical(ctx context.Context, docs []*store.Document) (int, error) {
	indexed := 0
	for start := 0; start < len(docs); start += lexicalBatchSize {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		end := min(start+lexicalBatchSize, len(docs))
		if err := r.lexical.Index(ctx, docs[start:end]); err != nil {
			return indexed, fmt.Errorf("failed to index lexical batch %d-%d: %w", start, end, err)
		}
		indexed = end
		r.progress(StageLexical, indexed, len(docs))
	}
	return indexed, nil
}

func (r *Runner) embed(ctx context.Context, docs []*store.Document, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}

	embedded := 0
	for start := 0; start < len(docs); start += batchSize {
		select {
		case <-ctx.Done():
			slog.Info("index_interrupted",
				slog.Int("embedded", embedded),
				slog.Int("total", len(docs)))
			return embedded, fmt.Errorf("indexing interrupted at %d/%d series: %w", embedded, len(docs), ctx.Err())
		default:
		}

		end := min(start+batchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
			ids[i] = d.ID
		}

		vecs, err := r.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return embedded, fmt.Errorf("failed to generate embeddings for batch %d-%d: %w", start, end, err)
		}
		if err := r.vectors.Add(ctx, ids, vecs); err != nil {
			return embedded, fmt.Errorf("failed to add vectors: %w", err)
		}

		embedded = end
		r.progress(StageEmbed, embedded, len(docs))
	}
	return embedded, nil
}

func (r *Runner) persist(cfg RunnerConfig) (int, error) {
	if cfg.LexicalPath != "" {
		if err := r.lexical.Save(cfg.LexicalPath); err != nil {
			return 0, fmt.Errorf("failed to save lexical index: %w", err)
		}
	}
	if r.vectors == nil {
		return 0, nil
	}

	compacted, err := store.CompactIfNeeded(r.vectors, cfg.Compaction)
	if err != nil {
		return 0, fmt.Errorf("failed to compact vector index: %w", err)
	}

	if cfg.VectorPath != "" {
		if err := r.vectors.Save(cfg.VectorPath); err != nil {
			return compacted, fmt.Errorf("failed to save vector index: %w", err)
		}
	}
	return compacted, nil
}

// documents returns the searchable text of each series, skipping empty ones.
func documents(series []*store.Series) []*store.Document {
	docs := make([]*store.Document, 0, len(series))
	for _, s := range series {
		text := s.SearchText()
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, &store.Document{ID: s.Accession, Content: text})
	}
	return docs
}
