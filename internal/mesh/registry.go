package mesh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// TermSource supplies the dictionary a TermIndex is built from.
type TermSource func(ctx context.Context) ([]*store.Term, error)

// FromStore reads the dictionary from a term store.
func FromStore(ts store.TermStore) TermSource {
	return ts.AllTerms
}

// FromFile reads the dictionary from a MeSH XML or JSON file.
func FromFile(path string) TermSource {
	return func(context.Context) ([]*store.Term, error) {
		return LoadFile(path)
	}
}

// Registry publishes the current TermIndex. Readers take a snapshot with
// Current and keep using it; Reload builds a replacement off to the side
// and swaps it in atomically.
type Registry struct {
	current atomic.Pointer[TermIndex]
	version atomic.Uint64

	reloadMu sync.Mutex
	source   TermSource
	opts     []IndexOption
}

// NewRegistry creates an empty registry reading from source.
func NewRegistry(source TermSource, opts ...IndexOption) *Registry {
	return &Registry{source: source, opts: opts}
}

// Current returns the published snapshot, or nil before the first load.
func (r *Registry) Current() *TermIndex {
	return r.current.Load()
}

// Available reports whether a non-empty dictionary is published.
func (r *Registry) Available() bool {
	return !r.Current().Empty()
}

// Publish swaps idx in as the current snapshot and stamps its version.
func (r *Registry) Publish(idx *TermIndex) {
	idx.version = r.version.Add(1)
	r.current.Store(idx)
}

// Reload rebuilds the index from the source and publishes it. On error the
// previous snapshot stays current. Concurrent reloads are serialized.
func (r *Registry) Reload(ctx context.Context) (*TermIndex, error) {
	if r.source == nil {
		return nil, fmt.Errorf("term registry has no source")
	}

	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	start := time.Now()
	terms, err := r.source(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read terms: %w", err)
	}

	idx := BuildIndex(terms, r.opts...)
	r.Publish(idx)

	slog.Info("term_index_reloaded",
		slog.Uint64("version", idx.version),
		slog.Int("terms", idx.TermCount()),
		slog.Int("phrases", idx.Len()),
		slog.Duration("duration", time.Since(start)))

	return idx, nil
}
