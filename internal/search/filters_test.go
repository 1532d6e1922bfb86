package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geoerrors "github.com/raghaviCJanaswamy/GEOSearch/internal/errors"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

func date(s string) *time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func intPtr(n int) *int { return &n }

func testSeries() []*store.Series {
	return []*store.Series{
		{
			Accession:      "GSE1",
			Title:          "Breast cancer RNA-Seq",
			Organisms:      []string{"Homo sapiens"},
			TechType:       "rna-seq",
			SubmissionDate: date("2020-03-01"),
			SampleCount:    intPtr(24),
		},
		{
			Accession:      "GSE2",
			Title:          "Mouse liver microarray",
			Organisms:      []string{"Mus musculus"},
			TechType:       "microarray",
			SubmissionDate: date("2015-06-15"),
			SampleCount:    intPtr(8),
		},
		{
			Accession: "GSE3",
			Title:     "Unknown provenance",
		},
	}
}

func accessions(series []*store.Series) []string {
	out := make([]string, len(series))
	for i, s := range series {
		out[i] = s.Accession
	}
	return out
}

func TestFilters_Matches(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{
			name: "zero filters pass everything",
			want: []string{"GSE1", "GSE2", "GSE3"},
		},
		{
			name:    "organism intersect case-insensitive",
			filters: Filters{Organisms: []string{"homo SAPIENS", "Danio rerio"}},
			want:    []string{"GSE1"},
		},
		{
			name:    "tech type equality",
			filters: Filters{TechType: "rna-seq"},
			want:    []string{"GSE1"},
		},
		{
			name:    "tech type case-insensitive",
			filters: Filters{TechType: "Microarray"},
			want:    []string{"GSE2"},
		},
		{
			name:    "date range inclusive",
			filters: Filters{DateRange: &DateRange{Start: date("2015-06-15"), End: date("2020-03-01")}},
			want:    []string{"GSE1", "GSE2"},
		},
		{
			name:    "open end bound",
			filters: Filters{DateRange: &DateRange{Start: date("2016-01-01")}},
			want:    []string{"GSE1"},
		},
		{
			name:    "open start bound",
			filters: Filters{DateRange: &DateRange{End: date("2016-01-01")}},
			want:    []string{"GSE2"},
		},
		{
			name:    "min samples",
			filters: Filters{MinSamples: intPtr(10)},
			want:    []string{"GSE1"},
		},
		{
			name:    "min samples zero still needs a count",
			filters: Filters{MinSamples: intPtr(0)},
			want:    []string{"GSE1", "GSE2"},
		},
		{
			name: "filters combine with AND",
			filters: Filters{
				Organisms: []string{"Homo sapiens"},
				TechType:  "microarray",
			},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filters.Apply(testSeries())
			assert.Equal(t, tt.want, accessions(got))
		})
	}
}

func TestFilters_ApplyIsIdempotent(t *testing.T) {
	// Given: several filter combinations
	all := []Filters{
		{},
		{TechType: "rna-seq"},
		{Organisms: []string{"Mus musculus"}, MinSamples: intPtr(5)},
		{DateRange: &DateRange{Start: date("2010-01-01")}},
	}

	for _, f := range all {
		// When: applying twice
		once := f.Apply(testSeries())
		twice := f.Apply(once)

		// Then: the surviving set is unchanged
		assert.Equal(t, accessions(once), accessions(twice))
	}
}

func TestFilters_MatchesNil(t *testing.T) {
	assert.False(t, Filters{}.Matches(nil))
}

func TestFilters_Validate(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		wantErr bool
	}{
		{"zero", Filters{}, false},
		{"valid range", Filters{DateRange: &DateRange{Start: date("2020-01-01"), End: date("2020-01-01")}}, false},
		{"inverted range", Filters{DateRange: &DateRange{Start: date("2021-01-01"), End: date("2020-01-01")}}, true},
		{"negative min samples", Filters{MinSamples: intPtr(-1)}, true},
		{"blank organism", Filters{Organisms: []string{"Homo sapiens", " "}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filters.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, geoerrors.ErrCodeInvalidFilter, geoerrors.GetCode(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFilters_IsZero(t *testing.T) {
	assert.True(t, Filters{}.IsZero())
	assert.True(t, Filters{DateRange: &DateRange{}}.IsZero())
	assert.False(t, Filters{TechType: "rna-seq"}.IsZero())
	assert.False(t, Filters{MinSamples: intPtr(0)}.IsZero())
}

func TestFilters_ToSeriesFilter(t *testing.T) {
	f := Filters{
		Organisms:  []string{"Homo sapiens"},
		TechType:   " rna-seq ",
		DateRange:  &DateRange{Start: date("2019-01-01"), End: date("2020-01-01")},
		MinSamples: intPtr(3),
	}

	sf := f.ToSeriesFilter()

	assert.Equal(t, []string{"Homo sapiens"}, sf.Organisms)
	assert.Equal(t, "rna-seq", sf.TechType)
	assert.Equal(t, date("2019-01-01"), sf.From)
	assert.Equal(t, date("2020-01-01"), sf.To)
	assert.Equal(t, 3, *sf.MinSamples)
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2020-03-01")
	require.NoError(t, err)
	assert.Equal(t, date("2020-03-01"), got)

	got, err = ParseDate("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseDate("03/01/2020")
	require.Error(t, err)
	assert.Equal(t, geoerrors.ErrCodeInvalidFilter, geoerrors.GetCode(err))
}
