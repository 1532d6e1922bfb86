package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWStore is an in-process VectorStore over coder/hnsw, persisted as a
// graph file plus a gob sidecar holding the accession mapping.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	ids     map[string]uint64 // accession -> graph key
	keys    map[uint64]string // graph key -> accession
	nextKey uint64

	closed bool
}

var _ VectorStore = (*HNSWStore)(nil)

// hnswSidecar is the persisted form of the accession mapping.
type hnswSidecar struct {
	IDs     map[string]uint64
	NextKey uint64
	Config  VectorStoreConfig
}

// NewHNSWStore creates an empty graph for cfg.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("hnsw store requires positive dimensions, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}

	return &HNSWStore{
		graph:  newGraph(cfg),
		config: cfg,
		ids:    make(map[string]uint64),
		keys:   make(map[uint64]string),
	}, nil
}

func newGraph(cfg VectorStoreConfig) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	if cfg.Metric == "l2" {
		g.Distance = hnsw.EuclideanDistance
	} else {
		g.Distance = hnsw.CosineDistance
	}
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Ml = 0.25
	return g
}

// Add inserts or replaces embeddings by accession.
func (s *HNSWStore) Add(_ context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		// Replaced nodes stay in the graph unreferenced; coder/hnsw
		// misbehaves when the last node is deleted. Compact reclaims them.
		if old, ok := s.ids[id]; ok {
			delete(s.keys, old)
		}

		key := s.nextKey
		s.nextKey++

		s.graph.Add(hnsw.MakeNode(key, s.prepare(vectors[i])))
		s.ids[id] = key
		s.keys[key] = id
	}

	return nil
}

func (s *HNSWStore) prepare(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(out)
	}
	return out
}

// Search returns up to k nearest accessions, best first.
func (s *HNSWStore) Search(_ context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if k <= 0 || s.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	q := s.prepare(query)

	// Over-fetch so orphaned nodes do not crowd out live ones.
	want := k + (s.graph.Len() - len(s.ids))
	nodes := s.graph.Search(q, want)

	results := make([]*VectorResult, 0, k)
	for _, node := range nodes {
		id, ok := s.keys[node.Key]
		if !ok {
			continue
		}
		d := s.graph.Distance(q, node.Value)
		results = append(results, &VectorResult{
			ID:       id,
			Distance: d,
			Score:    distanceToScore(d, s.config.Metric),
		})
		if len(results) == k {
			break
		}
	}

	return results, nil
}

// Delete unmaps accessions; their nodes remain until Compact.
func (s *HNSWStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, id := range ids {
		if key, ok := s.ids[id]; ok {
			delete(s.keys, key)
			delete(s.ids, id)
		}
	}
	return nil
}

// AllIDs returns the live accessions in sorted order.
func (s *HNSWStore) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}

	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether id has a live embedding.
func (s *HNSWStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Count returns the number of live embeddings.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.ids)
}

// Orphans returns the number of unreferenced graph nodes.
func (s *HNSWStore) Orphans() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return s.graph.Len() - len(s.ids)
}

// Compact rebuilds the graph from live nodes only.
func (s *HNSWStore) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	orphans := s.graph.Len() - len(s.ids)
	if orphans == 0 {
		return nil
	}

	fresh := newGraph(s.config)
	ids := make(map[string]uint64, len(s.ids))
	keys := make(map[uint64]string, len(s.ids))
	var next uint64

	accs := make([]string, 0, len(s.ids))
	for id := range s.ids {
		accs = append(accs, id)
	}
	sort.Strings(accs)

	for _, id := range accs {
		vec, ok := s.graph.Lookup(s.ids[id])
		if !ok {
			continue
		}
		fresh.Add(hnsw.MakeNode(next, vec))
		ids[id] = next
		keys[next] = id
		next++
	}

	s.graph, s.ids, s.keys, s.nextKey = fresh, ids, keys, next
	slog.Debug("hnsw_compacted", slog.Int("removed", orphans), slog.Int("live", len(ids)))
	return nil
}

// Save writes the graph and sidecar atomically via temp files.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := writeAtomic(path, func(f *os.File) error {
		return s.graph.Export(f)
	}); err != nil {
		return fmt.Errorf("failed to export graph: %w", err)
	}

	sidecar := hnswSidecar{IDs: s.ids, NextKey: s.nextKey, Config: s.config}
	if err := writeAtomic(path+".meta", func(f *os.File) error {
		return gob.NewEncoder(f).Encode(sidecar)
	}); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

func writeAtomic(path string, write func(*os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load replaces the in-memory graph with the one saved at path.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	sidecar, err := readSidecar(path)
	if err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}
	if sidecar.Config.Dimensions != s.config.Dimensions {
		return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: sidecar.Config.Dimensions}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	graph := newGraph(sidecar.Config)
	// Import needs an io.ByteReader.
	if err := graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	s.graph = graph
	s.config = sidecar.Config
	s.ids = sidecar.IDs
	s.nextKey = sidecar.NextKey
	s.keys = make(map[uint64]string, len(s.ids))
	for id, key := range s.ids {
		s.keys[key] = id
	}
	return nil
}

func readSidecar(vectorPath string) (*hnswSidecar, error) {
	f, err := os.Open(vectorPath + ".meta")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close hnsw metadata file", slog.String("error", err.Error()))
		}
	}()

	var sc hnswSidecar
	if err := gob.NewDecoder(f).Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode hnsw metadata: %w", err)
	}
	if sc.IDs == nil {
		sc.IDs = make(map[string]uint64)
	}
	return &sc, nil
}

// Close releases the graph.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.graph = nil
	return nil
}

// ReadVectorDimensions returns the dimension recorded next to a saved graph,
// or 0 when nothing has been saved at vectorPath yet.
func ReadVectorDimensions(vectorPath string) (int, error) {
	sc, err := readSidecar(vectorPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read hnsw metadata: %w", err)
	}
	return sc.Config.Dimensions, nil
}

func normalizeVectorInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore maps cosine distance [0,2] to [0,1] and L2 distance to 1/(1+d).
func distanceToScore(distance float32, metric string) float32 {
	if metric == "l2" {
		return 1.0 / (1.0 + distance)
	}
	return 1.0 - distance/2.0
}
