package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/config"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/embed"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/mesh"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/search"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// appOptions controls how much of the stack openApp brings up.
type appOptions struct {
	// writer takes the data directory lock.
	writer bool
	// rebuild discards existing lexical and vector indexes.
	rebuild bool
	// indexes opens the lexical index, vector store and embedder.
	indexes bool
}

// app holds the wired stores for one command invocation.
type app struct {
	cfg      *config.Config
	store    store.Store
	lexical  store.BM25Index
	vectors  store.VectorStore
	embedder embed.Embedder
	terms    *mesh.Registry
	lock     *store.DirLock
}

// openApp wires the configured backends. The term registry is loaded
// best effort: a missing dictionary degrades search instead of failing.
func openApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.open(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) open(ctx context.Context, opts appOptions) error {
	cfg := a.cfg
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if opts.writer {
		lock := store.NewDirLock(cfg.DataDir)
		if err := lock.TryLock(); err != nil {
			if errors.Is(err, store.ErrLocked) {
				return fmt.Errorf("%w: wait for the other command to finish", err)
			}
			return err
		}
		a.lock = lock
	}

	st, err := openRecordStore(ctx, cfg)
	if err != nil {
		return err
	}
	a.store = st

	if opts.indexes {
		if err := a.openIndexes(ctx, opts.rebuild); err != nil {
			return err
		}
	}

	a.terms = newTermRegistry(cfg, a.store)
	if _, err := a.terms.Reload(ctx); err != nil {
		slog.Warn("mesh_dictionary_unavailable", slog.String("error", err.Error()))
	}
	return nil
}

func openRecordStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if strings.EqualFold(cfg.Storage.Backend, "postgres") {
		st, err := store.OpenPostgresStore(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	st, err := store.OpenSQLiteStore(cfg.DatabasePath(), cfg.Storage.SQLiteCacheMB)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// lexicalBackend is the ranked index maintained on disk. The "like"
// backend searches the record store at query time but indexing still
// keeps an FTS5 index so switching back needs no reindex.
func lexicalBackend(cfg *config.Config) string {
	backend := strings.ToLower(cfg.Search.LexicalBackend)
	if backend == "like" {
		return string(store.LexicalBackendSQLite)
	}
	return backend
}

func (a *app) openIndexes(ctx context.Context, rebuild bool) error {
	cfg := a.cfg

	lexicalPath := cfg.LexicalIndexPath()
	if rebuild {
		if err := os.RemoveAll(lexicalPath); err != nil {
			return fmt.Errorf("failed to remove lexical index: %w", err)
		}
	}
	lexical, err := store.NewLexicalIndex(lexicalPath, store.DefaultBM25Config(), lexicalBackend(cfg))
	if err != nil {
		return err
	}
	a.lexical = lexical

	embedder, err := embed.NewEmbedder(ctx, embed.Options{
		Provider:   embed.ParseProvider(cfg.Embeddings.Provider),
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		CacheSize:  cfg.Embeddings.CacheSize,
		APIKey:     cfg.Embeddings.OpenAIAPIKey,
		BaseURL:    cfg.Embeddings.OpenAIBaseURL,
		Timeout:    cfg.Embeddings.Timeout,
	})
	if err != nil {
		return err
	}
	a.embedder = embedder

	vcfg := store.DefaultVectorStoreConfig(cfg.Embeddings.Dimensions)
	if strings.EqualFold(cfg.Storage.VectorBackend, "pgvector") {
		vectors, err := store.OpenPGVectorStore(ctx, cfg.Storage.PostgresDSN, vcfg)
		if err != nil {
			return err
		}
		a.vectors = vectors
		return nil
	}

	vectors, err := store.NewHNSWStore(vcfg)
	if err != nil {
		return err
	}
	a.vectors = vectors

	vectorPath := cfg.VectorIndexPath()
	if rebuild {
		return nil
	}
	saved, err := store.ReadVectorDimensions(vectorPath)
	if err != nil {
		return err
	}
	if saved == 0 {
		return nil
	}
	if err := vectors.Load(vectorPath); err != nil {
		return fmt.Errorf("failed to load vector index (run 'geosearch index --rebuild'): %w", err)
	}
	return nil
}

// newTermRegistry reads the dictionary from mesh.dictionary_path when set,
// otherwise from the terms stored by 'geosearch mesh load'.
func newTermRegistry(cfg *config.Config, st store.TermStore) *mesh.Registry {
	source := mesh.FromStore(st)
	if cfg.Mesh.DictionaryPath != "" {
		source = mesh.FromFile(cfg.Mesh.DictionaryPath)
	}
	return mesh.NewRegistry(source, mesh.WithMinPhraseLength(cfg.Mesh.MinPhraseLength))
}

// expanderConfig maps the mesh section to expander options.
func expanderConfig(cfg *config.Config) mesh.ExpanderConfig {
	return mesh.ExpanderConfig{
		MaxTerms:        cfg.Mesh.MaxTerms,
		SynonymsPerTerm: cfg.Mesh.SynonymsPerTerm,
		IncludeSynonyms: cfg.Mesh.IncludeSynonyms,
	}
}

// matcherConfig maps the mesh section to matcher weights.
func matcherConfig(cfg *config.Config) mesh.MatcherConfig {
	return mesh.MatcherConfig{
		Threshold:     cfg.Mesh.MatchThreshold,
		TitleWeight:   cfg.Mesh.TitleWeight,
		SummaryWeight: cfg.Mesh.SummaryWeight,
		DesignWeight:  cfg.Mesh.DesignWeight,
	}
}

// compactionPolicy maps the compaction section to the vector store policy.
func compactionPolicy(cfg *config.Config) store.CompactionPolicy {
	return store.CompactionPolicy{
		Enabled:         cfg.Compaction.Enabled,
		OrphanThreshold: cfg.Compaction.OrphanThreshold,
		MinOrphanCount:  cfg.Compaction.MinOrphanCount,
	}
}

// engineConfig maps the search section to fusion constants.
func engineConfig(cfg *config.Config) search.EngineConfig {
	ec := search.DefaultEngineConfig()
	ec.SemanticTopK = cfg.Search.SemanticTopK
	ec.LexicalTopK = cfg.Search.LexicalTopK
	ec.FinalTopK = cfg.Search.FinalTopK
	ec.RRFK = cfg.Search.RRFK
	ec.BoostPerTerm = cfg.Search.BoostPerTerm
	ec.BoostCap = cfg.Search.BoostCap
	ec.CandidateMultiplier = cfg.Search.CandidateMultiplier
	ec.RetrievalTimeout = cfg.Search.RetrievalTimeout
	ec.Expander = expanderConfig(cfg)
	return ec
}

// engine builds a search engine over the opened stores. A source whose
// retriever cannot be built is left out and reported as degraded per query.
func (a *app) engine() (*search.Engine, error) {
	opts := []search.EngineOption{search.WithTermRegistry(a.terms)}

	if a.embedder != nil && a.vectors != nil {
		semantic, err := search.NewVectorRetriever(a.embedder, a.vectors)
		if err != nil {
			return nil, err
		}
		opts = append(opts, search.WithSemantic(semantic))
	}

	if strings.EqualFold(a.cfg.Search.LexicalBackend, "like") {
		lexical, err := search.NewLikeRetriever(a.store)
		if err != nil {
			return nil, err
		}
		opts = append(opts, search.WithLexical(lexical))
	} else if a.lexical != nil {
		lexical, err := search.NewIndexLexicalRetriever(a.lexical, a.store)
		if err != nil {
			return nil, err
		}
		opts = append(opts, search.WithLexical(lexical))
	}

	return search.NewEngine(a.store, engineConfig(a.cfg), opts...)
}

// watchDictionary reloads the registry when the dictionary file changes.
// It returns immediately when watching is not configured.
func (a *app) watchDictionary(ctx context.Context) {
	path := a.cfg.Mesh.DictionaryPath
	if !a.cfg.Mesh.Watch || path == "" {
		return
	}
	w, err := mesh.NewWatcher(path, a.terms, 0)
	if err != nil {
		slog.Warn("dictionary_watch_disabled", slog.String("error", err.Error()))
		return
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			slog.Warn("dictionary_watch_stopped", slog.String("error", err.Error()))
		}
	}()
}

// Close releases everything openApp acquired, in reverse order.
func (a *app) Close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.vectors != nil {
		_ = a.vectors.Close()
	}
	if a.lexical != nil {
		_ = a.lexical.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
}
