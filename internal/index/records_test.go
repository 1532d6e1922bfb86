package index

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSONL = `{"accession":"GSE1","title":"Breast cancer RNA-Seq","summary":"Tumor expression","organisms":["Homo sapiens"],"tech_type":"RNA-Seq","submission_date":"2020-03-01","sample_count":24}
{"accession":"GSE2","title":"Mouse liver","submission_date":"2015-06-15T00:00:00Z"}

not json
{"title":"no accession"}
{"accession":"GSE3","title":"Bad date","submission_date":"March 2020"}
{"accession":"GSE1","title":"Breast cancer RNA-Seq v2"}
`

func TestReadJSONL(t *testing.T) {
	// Given: a stream with valid, malformed and duplicate lines
	res, err := ReadJSONL(strings.NewReader(sampleJSONL))

	// Then: valid records are kept in first-seen order, later duplicates win
	require.NoError(t, err)
	require.Len(t, res.Series, 2)
	assert.Equal(t, 3, res.Skipped)

	first := res.Series[0]
	assert.Equal(t, "GSE1", first.Accession)
	assert.Equal(t, "Breast cancer RNA-Seq v2", first.Title)

	second := res.Series[1]
	assert.Equal(t, "GSE2", second.Accession)
	require.NotNil(t, second.SubmissionDate)
	assert.Equal(t, "2015-06-15", second.SubmissionDate.Format("2006-01-02"))
}

func TestReadJSONL_NormalizesFields(t *testing.T) {
	res, err := ReadJSONL(strings.NewReader(
		`{"accession":" GSE9 ","title":" Title ","tech_type":" RNA-Seq ","submission_date":"2020-03-01","sample_count":3}`))

	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	s := res.Series[0]
	assert.Equal(t, "GSE9", s.Accession)
	assert.Equal(t, "Title", s.Title)
	assert.Equal(t, "rna-seq", s.TechType)
	require.NotNil(t, s.SampleCount)
	assert.Equal(t, 3, *s.SampleCount)
	assert.Equal(t, "2020-03-01", s.SubmissionDate.Format("2006-01-02"))
}

func TestReadFile_Gzip(t *testing.T) {
	// Given: a gzipped JSON Lines file
	path := filepath.Join(t.TempDir(), "series.jsonl.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(`{"accession":"GSE1","title":"A"}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	// When: reading it
	res, err := ReadFile(path)

	// Then: the record is decoded
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	assert.Equal(t, "GSE1", res.Series[0].Accession)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.Error(t, err)
}
