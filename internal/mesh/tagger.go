package mesh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// DefaultTagBatchSize is how many series TagAll loads per round.
const DefaultTagBatchSize = 200

// TaggerStore is what the tagger reads and writes.
type TaggerStore interface {
	store.SeriesStore
	store.AssociationStore
}

// Tagger annotates stored series with the dictionary terms they mention.
type Tagger struct {
	registry *Registry
	store    TaggerStore
	cfg      MatcherConfig
	pool     *ants.Pool
}

// NewTagger creates a tagger that matches with workers goroutines.
func NewTagger(registry *Registry, st TaggerStore, cfg MatcherConfig, workers int) (*Tagger, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create tagging pool: %w", err)
	}
	return &Tagger{registry: registry, store: st, cfg: cfg, pool: pool}, nil
}

// Release stops the worker pool. The tagger must not be used afterwards.
func (t *Tagger) Release() {
	t.pool.Release()
}

// TagBatch matches each series against the current dictionary and upserts
// associations with source auto. With overwrite, existing auto associations
// of each series are removed first. Terms already curated manually for a
// series are left alone. It returns the number of associations written.
func (t *Tagger) TagBatch(ctx context.Context, accessions []string, threshold float64, overwrite bool) (int, error) {
	if len(accessions) == 0 {
		return 0, nil
	}

	idx := t.registry.Current()
	if idx.Empty() {
		return 0, fmt.Errorf("term dictionary is empty: run 'geosearch mesh load' first")
	}
	cfg := t.cfg
	cfg.Threshold = threshold
	matcher := NewMatcher(idx, cfg)

	records, err := t.store.GetSeries(ctx, accessions)
	if err != nil {
		return 0, fmt.Errorf("failed to load series: %w", err)
	}

	// Matching is CPU bound and runs on the pool. Writes stay on this
	// goroutine since SQLite has a single writer.
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		matches = make(map[string][]TermMatch, len(records))
	)
	for _, acc := range accessions {
		s, ok := records[acc]
		if !ok {
			continue
		}
		wg.Add(1)
		err := t.pool.Submit(func() {
			defer wg.Done()
			m := matcher.MatchSeries(s)
			mu.Lock()
			matches[s.Accession] = m
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return 0, fmt.Errorf("failed to submit tagging task: %w", err)
		}
	}
	wg.Wait()

	written := 0
	for _, acc := range accessions {
		m, ok := matches[acc]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}

		if overwrite {
			if err := t.store.DeleteAssociations(ctx, acc, store.SourceAuto); err != nil {
				return written, fmt.Errorf("failed to clear associations for %s: %w", acc, err)
			}
		}

		manual, err := t.manualTerms(ctx, acc)
		if err != nil {
			return written, err
		}

		assocs := make([]*store.Association, 0, len(m))
		for _, tm := range m {
			if _, ok := manual[tm.TermID]; ok {
				continue
			}
			assocs = append(assocs, &store.Association{
				Accession:  acc,
				TermID:     tm.TermID,
				Source:     store.SourceAuto,
				Confidence: tm.Confidence,
			})
		}
		if len(assocs) == 0 {
			continue
		}
		if err := t.store.SaveAssociations(ctx, assocs); err != nil {
			return written, fmt.Errorf("failed to save associations for %s: %w", acc, err)
		}
		written += len(assocs)
	}

	return written, nil
}

func (t *Tagger) manualTerms(ctx context.Context, accession string) (map[string]struct{}, error) {
	existing, err := t.store.GetAssociations(ctx, []string{accession}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read associations for %s: %w", accession, err)
	}
	manual := make(map[string]struct{})
	for _, a := range existing {
		if a.Source == store.SourceManual {
			manual[a.TermID] = struct{}{}
		}
	}
	return manual, nil
}

// TagAll tags every stored series in batches of DefaultTagBatchSize.
func (t *Tagger) TagAll(ctx context.Context, threshold float64, overwrite bool) (int, error) {
	start := time.Now()

	accessions, err := t.store.ListAccessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list series: %w", err)
	}

	total := 0
	for i := 0; i < len(accessions); i += DefaultTagBatchSize {
		end := min(i+DefaultTagBatchSize, len(accessions))
		n, err := t.TagBatch(ctx, accessions[i:end], threshold, overwrite)
		total += n
		if err != nil {
			return total, err
		}
		slog.Debug("tag_batch_done",
			slog.Int("offset", i),
			slog.Int("size", end-i),
			slog.Int("associations", n))
	}

	slog.Info("tagging_complete",
		slog.Int("series", len(accessions)),
		slog.Int("associations", total),
		slog.Duration("duration", time.Since(start)))

	return total, nil
}
