package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lexicalBackends runs each test against both BM25 implementations.
var lexicalBackends = []struct {
	name string
	file string
	open func(path string) (BM25Index, error)
}{
	{
		name: "sqlite",
		file: "lexical.db",
		open: func(path string) (BM25Index, error) { return NewSQLiteBM25Index(path, DefaultBM25Config()) },
	},
	{
		name: "bleve",
		file: "lexical.bleve",
		open: func(path string) (BM25Index, error) { return NewBleveBM25Index(path, DefaultBM25Config()) },
	},
}

func seriesDocs() []*Document {
	return []*Document{
		{ID: "GSE1001", Content: "Breast cancer tumor profiling by RNA-Seq"},
		{ID: "GSE1002", Content: "Lung adenocarcinoma microarray of smokers"},
		{ID: "GSE1003", Content: "Breast tissue from healthy donors"},
	}
}

func resultIDs(results []*BM25Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids
}

// =============================================================================
// Index and search
// =============================================================================

func TestLexicalIndex_IndexAndSearch_Basic(t *testing.T) {
	for _, be := range lexicalBackends {
		t.Run(be.name, func(t *testing.T) {
			// Given: an index with three series
			idx, err := be.open("")
			require.NoError(t, err)
			defer idx.Close()
			require.NoError(t, idx.Index(context.Background(), seriesDocs()))

			// When: searching for a term in one record
			results, err := idx.Search(context.Background(), "adenocarcinoma", 10)

			// Then: only that record is returned with a positive score
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "GSE1002", results[0].DocID)
			assert.Greater(t, results[0].Score, 0.0)
		})
	}
}

func TestLexicalIndex_Search_MultiTermRanking(t *testing.T) {
	for _, be := range lexicalBackends {
		t.Run(be.name, func(t *testing.T) {
			idx, err := be.open("")
			require.NoError(t, err)
			defer idx.Close()
			require.NoError(t, idx.Index(context.Background(), seriesDocs()))

			// When: searching for two words, one of which appears in two records
			results, err := idx.Search(context.Background(), "breast cancer", 10)

			// Then: the record matching both words ranks first
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, "GSE1001", results[0].DocID)
			assert.Equal(t, "GSE1003", results[1].DocID)
		})
	}
}

func TestLexicalIndex_Search_CompoundWords(t *testing.T) {
	queries := []string{"RNA-Seq", "rnaseq", "seq"}

	for _, be := range lexicalBackends {
		t.Run(be.name, func(t *testing.T) {
			idx, err := be.open("")
			require.NoError(t, err)
			defer idx.Close()
			require.NoError(t, idx.Index(context.Background(), seriesDocs()))

			for _, q := range queries {
				results, err := idx.Search(context.Background(), q, 10)
				require.NoError(t, err)
				assert.Equal(t, []string{"GSE1001"}, resultIDs(results), "query %q", q)
			}
		})
	}
}

func TestLexicalIndex_Search_EmptyAndStopWordQueries(t *testing.T) {
	for _, be := range lexicalBackends {
		t.Run(be.name, func(t *testing.T) {
			idx, err := be.open("")
			require.NoError(t, err)
			defer idx.Close()
			require.NoError(t, idx.Index(context.Background(), seriesDocs()))

			for _, q := range []string{"", "   ", "the study of"} {
				results, err := idx.Search(context.Background(), q, 10)
				require.NoError(t, err)
				assert.Empty(t, results, "query %q", q)
			}
		})
	}
}

func TestLexicalIndex_Search_RespectsLimit(t *testing.T) {
	for _, be := range lexicalBackends {
		t.Run(be.name, func(t *testing.T) {
			idx, err := be.open("")
			require.NoError(t, err)
			defer idx.Close()
			require.NoError(t, idx.Index(context.Background(), seriesDocs()))

			results, err := idx.Search(context.Background(), "breast", 1)
			require.NoError(t, err)
			assert.Len(t, results, 1)

			results, err = idx.Search(context.Background(), "breast", 0)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

func TestLexicalIndex_Search_MatchedTerms(t *testing.T) {
	for _, be := range lexicalBackends {
		t.Run(be.name, func(t *testing.T) {
			idx, err := be.open("")
			require.NoError(t, err)
			defer idx.Close()
			require.NoError(t, idx.Index(context.Background(), seriesDocs()))

			results, err := idx.Search(context.Background(), "microarray", 10)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Contains(t, results[0].MatchedTerms, "microarray")
		})
	}
}

// =============================================================================
// Updates and deletes
// =============================================================================

func TestLexicalIndex_Index_ReplacesExisting(t *testing.T) {
	for _, be := range lexicalBackends {
		t.Run(be.name, func(t *testing.T) {
			idx, err := be.open("")
			require.NoError(t, err)
			defer idx.Close()
			ctx := context.Background()

			// Given: a record indexed twice with different text
			require.NoError(t, idx.Index(ctx, []*Document{{ID: "GSE1", Content: "zebrafish heart"}}))
			require.NoError(t, idx.Index(ctx, []*Document{{ID: "GSE1", Content: "drosophila wing"}}))

			// Then: only the new text matches and the count is unchanged
			old, err := idx.Search(ctx, "zebrafish", 10)
			require.NoError(t, err)
			assert.Empty(t, old)

			fresh, err := idx.Search(ctx, "drosophila", 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"GSE1"}, resultIDs(fresh))
			assert.Equal(t, 1, idx.Stats().DocumentCount)
		})
	}
}

func TestLexicalIndex_Delete(t *testing.T) {
	for _, be := range lexicalBackends {
		t.Run(be.name, func(t *testing.T) {
			idx, err := be.open("")
			require.NoError(t, err)
			defer idx.Close()
			ctx := context.Background()
			require.NoError(t, idx.Index(ctx, seriesDocs()))

			// When: deleting one record and one unknown accession
			require.NoError(t, idx.Delete(ctx, []string{"GSE1002", "GSE9999"}))

			// Then: it no longer matches and the others remain
			results, err := idx.Search(ctx, "adenocarcinoma", 10)
			require.NoError(t, err)
			assert.Empty(t, results)

			ids, err := idx.AllIDs()
			require.NoError(t, err)
			assert.Equal(t, []string{"GSE1001", "GSE1003"}, ids)

			assert.NoError(t, idx.Delete(ctx, nil))
		})
	}
}

func TestLexicalIndex_EmptyBatches(t *testing.T) {
	for _, be := range lexicalBackends {
		t.Run(be.name, func(t *testing.T) {
			idx, err := be.open("")
			require.NoError(t, err)
			defer idx.Close()

			assert.NoError(t, idx.Index(context.Background(), nil))
			assert.NoError(t, idx.Index(context.Background(), []*Document{}))
			assert.Equal(t, 0, idx.Stats().DocumentCount)
		})
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestLexicalIndex_Persistence_RoundTrip(t *testing.T) {
	for _, be := range lexicalBackends {
		t.Run(be.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", be.file)

			// Given: an on-disk index with records
			idx, err := be.open(path)
			require.NoError(t, err)
			require.NoError(t, idx.Index(context.Background(), seriesDocs()))
			require.NoError(t, idx.Save(path))
			require.NoError(t, idx.Close())

			// When: reopening it
			reopened, err := be.open(path)
			require.NoError(t, err)
			defer reopened.Close()

			// Then: records are still searchable
			results, err := reopened.Search(context.Background(), "lung", 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"GSE1002"}, resultIDs(results))
			assert.Equal(t, 3, reopened.Stats().DocumentCount)
		})
	}
}

func TestLexicalIndex_Close_Idempotent(t *testing.T) {
	for _, be := range lexicalBackends {
		t.Run(be.name, func(t *testing.T) {
			idx, err := be.open("")
			require.NoError(t, err)

			assert.NoError(t, idx.Close())
			assert.NoError(t, idx.Close())

			_, err = idx.Search(context.Background(), "breast", 10)
			assert.Error(t, err)
			_, err = idx.AllIDs()
			assert.Error(t, err)
			assert.Equal(t, 0, idx.Stats().DocumentCount)
		})
	}
}

func TestLexicalIndex_ConcurrentIndexAndSearch(t *testing.T) {
	for _, be := range lexicalBackends {
		t.Run(be.name, func(t *testing.T) {
			idx, err := be.open("")
			require.NoError(t, err)
			defer idx.Close()
			ctx := context.Background()
			require.NoError(t, idx.Index(ctx, seriesDocs()))

			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(2)
				go func() {
					defer wg.Done()
					_ = idx.Index(ctx, []*Document{{ID: "GSE2000", Content: "mouse liver"}})
				}()
				go func() {
					defer wg.Done()
					_, err := idx.Search(ctx, "breast", 10)
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			assert.Equal(t, 4, idx.Stats().DocumentCount)
		})
	}
}

// =============================================================================
// Corruption recovery
// =============================================================================

func TestSQLiteBM25Index_CorruptFileIsCleared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexical.db")
	require.NoError(t, os.WriteFile(path, []byte("definitely not sqlite"), 0o644))

	idx, err := NewSQLiteBM25Index(path, DefaultBM25Config())
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 0, idx.Stats().DocumentCount)
	require.NoError(t, idx.Index(context.Background(), seriesDocs()))
	assert.Equal(t, 3, idx.Stats().DocumentCount)
}

func TestValidateFTSIntegrity(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is valid", func(t *testing.T) {
		assert.NoError(t, validateFTSIntegrity(filepath.Join(dir, "absent.db")))
	})

	t.Run("garbage file is invalid", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.db")
		require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
		assert.Error(t, validateFTSIntegrity(path))
	})

	t.Run("healthy index is valid", func(t *testing.T) {
		path := filepath.Join(dir, "ok.db")
		idx, err := NewSQLiteBM25Index(path, DefaultBM25Config())
		require.NoError(t, err)
		require.NoError(t, idx.Close())
		assert.NoError(t, validateFTSIntegrity(path))
	})
}

func TestBleveBM25Index_CorruptMetaIsCleared(t *testing.T) {
	tests := []struct {
		name string
		meta []byte
	}{
		{name: "empty meta", meta: []byte{}},
		{name: "invalid json", meta: []byte("{not json")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "lexical.bleve")
			require.NoError(t, os.MkdirAll(path, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(path, "index_meta.json"), tt.meta, 0o644))

			idx, err := NewBleveBM25Index(path, DefaultBM25Config())
			require.NoError(t, err)
			defer idx.Close()

			require.NoError(t, idx.Index(context.Background(), seriesDocs()))
			assert.Equal(t, 3, idx.Stats().DocumentCount)
		})
	}
}

func TestIsBleveCorruption(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "unrelated", err: assert.AnError, want: false},
		{name: "truncated meta", err: fmt.Errorf("unexpected end of JSON input"), want: true},
		{name: "bolt", err: fmt.Errorf("error opening bolt segment"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isBleveCorruption(tt.err))
		})
	}
}
