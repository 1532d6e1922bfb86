package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphanLexical is a lexical entry with no stored series.
	InconsistencyOrphanLexical InconsistencyType = iota
	// InconsistencyOrphanVector is a vector with no stored series.
	InconsistencyOrphanVector
	// InconsistencyMissingLexical is a stored series absent from the lexical index.
	InconsistencyMissingLexical
	// InconsistencyMissingVector is a stored series absent from the vector store.
	InconsistencyMissingVector
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanLexical:
		return "orphan_lexical"
	case InconsistencyOrphanVector:
		return "orphan_vector"
	case InconsistencyMissingLexical:
		return "missing_lexical"
	case InconsistencyMissingVector:
		return "missing_vector"
	default:
		return "unknown"
	}
}

// Inconsistency represents a detected cross-store issue.
type Inconsistency struct {
	Type      InconsistencyType
	Accession string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of stored series verified.
	Checked int
	// Inconsistencies contains all detected issues, orphans first.
	Inconsistencies []Inconsistency
	// OrphanNodes counts vector graph nodes left behind by replaced or
	// deleted series. Repair reclaims them.
	OrphanNodes int
	// Duration is how long the check took.
	Duration time.Duration
}

// Count returns how many issues of type t were found.
func (r *CheckResult) Count(t InconsistencyType) int {
	n := 0
	for _, issue := range r.Inconsistencies {
		if issue.Type == t {
			n++
		}
	}
	return n
}

// ConsistencyChecker compares the series store (source of truth) with the
// lexical and vector indexes.
type ConsistencyChecker struct {
	series  store.SeriesStore
	lexical store.BM25Index
	vectors store.VectorStore
}

// NewConsistencyChecker creates a checker. vectors may be nil when the
// semantic index lives elsewhere.
func NewConsistencyChecker(series store.SeriesStore, lexical store.BM25Index, vectors store.VectorStore) *ConsistencyChecker {
	return &ConsistencyChecker{series: series, lexical: lexical, vectors: vectors}
}

// Check scans all stores for inconsistencies.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	accessions, err := c.series.ListAccessions(ctx)
	if err != nil {
		return nil, err
	}
	stored := toSet(accessions)

	lexicalIDs, err := c.lexical.AllIDs()
	if err != nil {
		slog.Warn("consistency_lexical_ids_failed", slog.String("error", err.Error()))
	}
	var vectorIDs []string
	if c.vectors != nil {
		vectorIDs = c.vectors.AllIDs()
	}

	var issues []Inconsistency
	for _, id := range lexicalIDs {
		if _, ok := stored[id]; !ok {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanLexical, Accession: id})
		}
	}
	for _, id := range vectorIDs {
		if _, ok := stored[id]; !ok {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanVector, Accession: id})
		}
	}

	// Series with no searchable text are never indexed and show up as missing.
	lexicalSet := toSet(lexicalIDs)
	vectorSet := toSet(vectorIDs)
	for _, id := range accessions {
		if _, ok := lexicalSet[id]; !ok {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingLexical, Accession: id})
		}
		if c.vectors == nil {
			continue
		}
		if _, ok := vectorSet[id]; !ok {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingVector, Accession: id})
		}
	}

	return &CheckResult{
		Checked:         len(accessions),
		Inconsistencies: issues,
		OrphanNodes:     c.orphanNodes(),
		Duration:        time.Since(start),
	}, nil
}

// orphanNodes returns the unreferenced vector node count, or 0 when the
// vector store does not track them.
func (c *ConsistencyChecker) orphanNodes() int {
	if comp, ok := c.vectors.(store.Compactor); ok {
		return comp.Orphans()
	}
	return 0
}

// Repair deletes orphans and compacts the vector store. Missing entries
// need a reindex and are only logged.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) error {
	var orphanLexical, orphanVector []string
	var missing int

	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanLexical:
			orphanLexical = append(orphanLexical, issue.Accession)
		case InconsistencyOrphanVector:
			orphanVector = append(orphanVector, issue.Accession)
		case InconsistencyMissingLexical, InconsistencyMissingVector:
			missing++
		}
	}

	if len(orphanLexical) > 0 {
		if err := c.lexical.Delete(ctx, orphanLexical); err != nil {
			slog.Warn("orphan_lexical_delete_failed",
				slog.Int("count", len(orphanLexical)),
				slog.String("error", err.Error()))
		} else {
			slog.Info("orphan_lexical_deleted", slog.Int("count", len(orphanLexical)))
		}
	}

	if len(orphanVector) > 0 && c.vectors != nil {
		if err := c.vectors.Delete(ctx, orphanVector); err != nil {
			slog.Warn("orphan_vector_delete_failed",
				slog.Int("count", len(orphanVector)),
				slog.String("error", err.Error()))
		} else {
			slog.Info("orphan_vector_deleted", slog.Int("count", len(orphanVector)))
		}
	}

	if comp, ok := c.vectors.(store.Compactor); ok {
		if orphans := comp.Orphans(); orphans > 0 {
			if err := comp.Compact(); err != nil {
				return fmt.Errorf("failed to compact vector index: %w", err)
			}
			slog.Info("vector_index_compacted", slog.Int("removed", orphans))
		}
	}

	if missing > 0 {
		slog.Warn("index_missing_entries",
			slog.Int("missing_count", missing),
			slog.String("suggestion", "run 'geosearch index --rebuild'"))
	}

	return nil
}

// QuickCheck compares counts only.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) (bool, error) {
	count, err := c.series.CountSeries(ctx)
	if err != nil {
		return false, err
	}

	lexicalCount := 0
	if stats := c.lexical.Stats(); stats != nil {
		lexicalCount = stats.DocumentCount
	}

	consistent := count == lexicalCount
	if c.vectors != nil {
		consistent = consistent && count == c.vectors.Count()
	}

	if !consistent {
		slog.Debug("index_counts_mismatch",
			slog.Int("series", count),
			slog.Int("lexical", lexicalCount))
	}
	return consistent, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
