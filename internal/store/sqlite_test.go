package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore("", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func date(s string) *time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func intPtr(n int) *int { return &n }

func fixtureSeries() []*Series {
	return []*Series{
		{
			Accession:      "GSE100",
			Title:          "Breast cancer RNA-Seq of primary tumors",
			Summary:        "Transcriptome profiling of breast tumors.",
			OverallDesign:  "Paired tumor and normal tissue.",
			Organisms:      []string{"Homo sapiens"},
			Platforms:      []string{"GPL20301"},
			TechType:       "RNA-Seq",
			PubMedIDs:      []string{"31000001"},
			SubmissionDate: date("2020-03-15"),
			SampleCount:    intPtr(48),
		},
		{
			Accession:      "GSE200",
			Title:          "Mouse liver microarray",
			Summary:        "Hepatic gene expression in C57BL/6 mice on a high fat diet.",
			Organisms:      []string{"Mus musculus"},
			TechType:       "microarray",
			SubmissionDate: date("2018-07-01"),
			SampleCount:    intPtr(12),
		},
		{
			Accession: "GSE300",
			Title:     "Cancer cell lines treated with drug X",
			Summary:   "Human and mouse cancer lines.",
			Organisms: []string{"Homo sapiens", "Mus musculus"},
			TechType:  "RNA-Seq",
		},
	}
}

// =============================================================================
// Series
// =============================================================================

func TestSQLiteStore_SaveAndGetSeries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Given: saved series
	require.NoError(t, s.SaveSeries(ctx, fixtureSeries()))

	// When: fetching two known and one unknown accession
	got, err := s.GetSeries(ctx, []string{"GSE100", "GSE300", "GSE999"})

	// Then: known records round-trip with optional fields intact
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got["GSE100"]
	require.NotNil(t, first)
	assert.Equal(t, "Breast cancer RNA-Seq of primary tumors", first.Title)
	assert.Equal(t, []string{"Homo sapiens"}, first.Organisms)
	assert.Equal(t, []string{"31000001"}, first.PubMedIDs)
	require.NotNil(t, first.SubmissionDate)
	assert.Equal(t, "2020-03-15", first.SubmissionDate.Format(dateLayout))
	require.NotNil(t, first.SampleCount)
	assert.Equal(t, 48, *first.SampleCount)

	third := got["GSE300"]
	require.NotNil(t, third)
	assert.Nil(t, third.SubmissionDate)
	assert.Nil(t, third.SampleCount)
	assert.Equal(t, []string{"Homo sapiens", "Mus musculus"}, third.Organisms)
}

func TestSQLiteStore_SaveSeries_UpsertKeepsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveSeries(ctx, fixtureSeries()))

	// When: re-saving the first record with a new title
	updated := *fixtureSeries()[0]
	updated.Title = "Revised title"
	require.NoError(t, s.SaveSeries(ctx, []*Series{&updated}))

	// Then: the title changes and insertion order is preserved
	got, err := s.GetSeries(ctx, []string{"GSE100"})
	require.NoError(t, err)
	assert.Equal(t, "Revised title", got["GSE100"].Title)

	ids, err := s.ListAccessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"GSE100", "GSE200", "GSE300"}, ids)
}

func TestSQLiteStore_GetSeries_Empty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetSeries(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// =============================================================================
// Terms and associations
// =============================================================================

func TestSQLiteStore_Terms_InsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	terms := []*Term{
		{ID: "D009369", PreferredName: "Neoplasms", Synonyms: []string{"Cancer", "Tumor"}, TreeNumbers: []string{"C04"}},
		{ID: "D001943", PreferredName: "Breast Neoplasms", Synonyms: []string{"Breast Cancer"}},
	}
	require.NoError(t, s.SaveTerms(ctx, terms))

	got, err := s.AllTerms(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "D009369", got[0].ID)
	assert.Equal(t, []string{"Cancer", "Tumor"}, got[0].Synonyms)
	assert.Equal(t, []string{"C04"}, got[0].TreeNumbers)
	assert.Equal(t, "D001943", got[1].ID)
	assert.Empty(t, got[1].TreeNumbers)
}

func TestSQLiteStore_Associations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAssociations(ctx, []*Association{
		{Accession: "GSE100", TermID: "D009369", Source: SourceAuto, Confidence: 0.6},
		{Accession: "GSE100", TermID: "D001943", Source: SourceAuto, Confidence: 1.0},
		{Accession: "GSE100", TermID: "D006801", Source: SourceManual, Confidence: 1.0},
		{Accession: "GSE200", TermID: "D051379", Source: SourceAuto, Confidence: 0.9},
	}))

	t.Run("count restricted to terms", func(t *testing.T) {
		counts, err := s.CountAssociations(ctx,
			[]string{"GSE100", "GSE200", "GSE300"},
			[]string{"D009369", "D001943", "D051379"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"GSE100": 2, "GSE200": 1}, counts)
	})

	t.Run("count with no terms", func(t *testing.T) {
		counts, err := s.CountAssociations(ctx, []string{"GSE100"}, nil)
		require.NoError(t, err)
		assert.Empty(t, counts)
	})

	t.Run("get ordered by confidence", func(t *testing.T) {
		got, err := s.GetAssociations(ctx, []string{"GSE100"}, []string{"D009369", "D001943"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "D001943", got[0].TermID)
		assert.Equal(t, "D009369", got[1].TermID)
	})

	t.Run("upsert replaces confidence", func(t *testing.T) {
		require.NoError(t, s.SaveAssociations(ctx, []*Association{
			{Accession: "GSE200", TermID: "D051379", Source: SourceAuto, Confidence: 0.4},
		}))
		got, err := s.GetAssociations(ctx, []string{"GSE200"}, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, 0.4, got[0].Confidence, 1e-9)
	})

	t.Run("delete by source keeps manual", func(t *testing.T) {
		require.NoError(t, s.DeleteAssociations(ctx, "GSE100", SourceAuto))
		got, err := s.GetAssociations(ctx, []string{"GSE100"}, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, SourceManual, got[0].Source)
	})
}

// =============================================================================
// Substring search
// =============================================================================

func TestSQLiteStore_LikeSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveSeries(ctx, fixtureSeries()))

	tests := []struct {
		name   string
		query  string
		filter SeriesFilter
		limit  int
		want   []string
	}{
		{
			name:  "any word matches in insertion order",
			query: "cancer liver",
			limit: 10,
			want:  []string{"GSE100", "GSE200", "GSE300"},
		},
		{
			name:  "case insensitive substring",
			query: "HEPATIC",
			limit: 10,
			want:  []string{"GSE200"},
		},
		{
			name:  "short words ignored",
			query: "of a X",
			limit: 10,
			want:  []string{},
		},
		{
			name:  "limit applied",
			query: "cancer",
			limit: 1,
			want:  []string{"GSE100"},
		},
		{
			name:   "organism filter intersects case-insensitively",
			query:  "cancer",
			filter: SeriesFilter{Organisms: []string{"mus MUSCULUS"}},
			limit:  10,
			want:   []string{"GSE300"},
		},
		{
			name:   "tech type equality",
			query:  "cancer liver",
			filter: SeriesFilter{TechType: "MICROARRAY"},
			limit:  10,
			want:   []string{"GSE200"},
		},
		{
			name:   "date range excludes undated records",
			query:  "cancer liver",
			filter: SeriesFilter{From: date("2019-01-01")},
			limit:  10,
			want:   []string{"GSE100"},
		},
		{
			name:   "date range bounds are inclusive",
			query:  "cancer liver",
			filter: SeriesFilter{From: date("2018-07-01"), To: date("2020-03-15")},
			limit:  10,
			want:   []string{"GSE100", "GSE200"},
		},
		{
			name:   "min samples excludes unknown counts",
			query:  "cancer liver",
			filter: SeriesFilter{MinSamples: intPtr(12)},
			limit:  10,
			want:   []string{"GSE100", "GSE200"},
		},
		{
			name:  "like wildcards are literal",
			query: "100%",
			limit: 10,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.LikeSearch(ctx, tt.query, tt.filter, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resultIDs(results))
		})
	}
}

func TestSQLiteStore_LikeSearch_PositionalScores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveSeries(ctx, fixtureSeries()))

	results, err := s.LikeSearch(ctx, "cancer liver", SeriesFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 0.5, results[1].Score, 1e-9)
	assert.InDelta(t, 1.0/3.0, results[2].Score, 1e-9)
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestSQLiteStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveSeries(ctx, fixtureSeries()))
	require.NoError(t, s.SaveTerms(ctx, []*Term{{ID: "D1", PreferredName: "One"}}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Series: 3, Terms: 1, Associations: 0}, *st)

	n, err := s.CountSeries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = s.CountTerms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "geosearch.db")
	ctx := context.Background()

	s, err := OpenSQLiteStore(path, 8)
	require.NoError(t, err)
	require.NoError(t, s.SaveSeries(ctx, fixtureSeries()))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	reopened, err := OpenSQLiteStore(path, 8)
	require.NoError(t, err)
	defer reopened.Close()

	ids, err := reopened.ListAccessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"GSE100", "GSE200", "GSE300"}, ids)
}

func TestSQLiteStore_ClosedStoreErrors(t *testing.T) {
	s, err := OpenSQLiteStore("", 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.GetSeries(context.Background(), []string{"GSE1"})
	assert.Error(t, err)
	_, err = s.Stats(context.Background())
	assert.Error(t, err)
}
