package store

// Compactor is implemented by vector stores that leave unreferenced nodes
// behind on replace or delete.
type Compactor interface {
	// Orphans returns the number of unreferenced nodes.
	Orphans() int
	// Compact drops unreferenced nodes.
	Compact() error
}

var _ Compactor = (*HNSWStore)(nil)

// CompactionPolicy decides when orphaned vector nodes are reclaimed.
type CompactionPolicy struct {
	Enabled bool

	// OrphanThreshold is the orphan share of all nodes, in [0, 1], above
	// which compaction runs.
	OrphanThreshold float64

	// MinOrphanCount is the fewest orphans worth a rebuild.
	MinOrphanCount int
}

// DefaultCompactionPolicy compacts once orphans exceed 20% of the graph.
func DefaultCompactionPolicy() CompactionPolicy {
	return CompactionPolicy{
		Enabled:         true,
		OrphanThreshold: 0.2,
		MinOrphanCount:  1,
	}
}

// ShouldCompact reports whether orphans out of live+orphans nodes warrant
// a compaction.
func (p CompactionPolicy) ShouldCompact(orphans, live int) bool {
	if !p.Enabled || orphans <= 0 || orphans < p.MinOrphanCount {
		return false
	}
	return float64(orphans)/float64(orphans+live) > p.OrphanThreshold
}

// CompactIfNeeded compacts vectors when it is a Compactor and p allows it.
// It returns the number of orphans removed.
func CompactIfNeeded(vectors VectorStore, p CompactionPolicy) (int, error) {
	c, ok := vectors.(Compactor)
	if !ok {
		return 0, nil
	}
	orphans := c.Orphans()
	if !p.ShouldCompact(orphans, vectors.Count()) {
		return 0, nil
	}
	if err := c.Compact(); err != nil {
		return 0, err
	}
	return orphans, nil
}
