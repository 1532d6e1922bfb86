package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/search"
)

const seriesJSONL = `{"accession":"GSE10","title":"Breast cancer tumor profiling in human tissue","summary":"RNA-seq of primary breast tumors and matched normal tissue.","organisms":["Homo sapiens"],"tech_type":"RNA-seq","submission_date":"2019-05-02","sample_count":12}
{"accession":"GSE11","title":"Liver regeneration after partial hepatectomy","summary":"Microarray time course of mouse liver regeneration.","organisms":["Mus musculus"],"tech_type":"microarray","submission_date":"2015-01-20","sample_count":6}
not json
`

// ============================================================================
// End-to-end workflow
// ============================================================================

func TestWorkflow_LoadIndexTagSearch(t *testing.T) {
	// Given: an isolated config and a series file
	dir := isolateConfig(t)
	input := filepath.Join(t.TempDir(), "series.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(seriesJSONL), 0o644))

	// When: loading the sample dictionary
	out, err := runCLI(t, dir, "mesh", "sample")

	// Then: the terms are stored
	require.NoError(t, err, out)
	assert.Contains(t, out, "Loaded 15 MeSH terms")

	// When: indexing the series
	out, err = runCLI(t, dir, "index", input)

	// Then: both records are indexed and the bad line is reported
	require.NoError(t, err, out)
	assert.Contains(t, out, "Skipped 1 malformed line")
	assert.Contains(t, out, "Indexed 2 series")

	// When: tagging every series
	out, err = runCLI(t, dir, "tag")

	// Then: associations are written
	require.NoError(t, err, out)
	assert.Contains(t, out, "MeSH association")

	// When: searching with JSON output
	out, err = runCLI(t, dir, "search", "breast cancer", "--format", "json")
	require.NoError(t, err, out)

	// Then: the breast cancer series ranks first with term evidence
	var resp search.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.NotEmpty(t, resp.Results)
	top := resp.Results[0]
	assert.Equal(t, "GSE10", top.Accession)
	assert.Positive(t, top.LexicalRank)
	assert.Contains(t, resp.Metadata.ExpandedQuery, "Breast Neoplasms")
	assert.True(t, resp.Metadata.DictionaryAvailable)
	assert.Empty(t, resp.Metadata.Degraded)

	var termIDs []string
	for _, m := range top.MatchedTerms {
		termIDs = append(termIDs, m.TermID)
	}
	assert.Contains(t, termIDs, "D001943")
}

func TestWorkflow_SearchFilters(t *testing.T) {
	dir := isolateConfig(t)
	input := filepath.Join(t.TempDir(), "series.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(seriesJSONL), 0o644))
	_, err := runCLI(t, dir, "index", input)
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"organism", []string{"--organism", "mus musculus"}, []string{"GSE11"}},
		{"tech type", []string{"--tech-type", "rna-seq"}, []string{"GSE10"}},
		{"date range", []string{"--from", "2018-01-01"}, []string{"GSE10"}},
		{"min samples", []string{"--min-samples", "10"}, []string{"GSE10"}},
		{"nothing matches", []string{"--min-samples", "100"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"search", "tissue liver tumor", "--format", "json"}, tt.args...)
			out, err := runCLI(t, dir, args...)
			require.NoError(t, err, out)

			var resp search.SearchResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp), out)

			var got []string
			for _, r := range resp.Results {
				got = append(got, r.Accession)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWorkflow_ShowAndStatus(t *testing.T) {
	dir := isolateConfig(t)
	input := filepath.Join(t.TempDir(), "series.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(seriesJSONL), 0o644))
	_, err := runCLI(t, dir, "mesh", "sample")
	require.NoError(t, err)
	_, err = runCLI(t, dir, "index", input, "--tag")
	require.NoError(t, err)

	// When: showing a series by lower-case accession
	out, err := runCLI(t, dir, "show", "gse10")

	// Then: the record and its tagged terms are printed
	require.NoError(t, err, out)
	assert.Contains(t, out, "Breast cancer tumor profiling")
	assert.Contains(t, out, "Breast Neoplasms")
	assert.Contains(t, out, "acc=GSE10")

	// When: showing status
	out, err = runCLI(t, dir, "status")

	// Then: counts are reported and the indexes agree with the store
	require.NoError(t, err, out)
	assert.Contains(t, out, "Indexes match the record store")
	assert.Contains(t, out, "MeSH terms")
}

func TestWorkflow_ShowMissingSeries(t *testing.T) {
	dir := isolateConfig(t)

	_, err := runCLI(t, dir, "show", "GSE999")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GSE999")
}

func TestWorkflow_TagWithoutDictionary(t *testing.T) {
	dir := isolateConfig(t)

	_, err := runCLI(t, dir, "tag")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "MeSH dictionary not loaded")
}

func TestWorkflow_SearchWithoutDictionary(t *testing.T) {
	// Given: indexed series but no dictionary
	dir := isolateConfig(t)
	input := filepath.Join(t.TempDir(), "series.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(seriesJSONL), 0o644))
	_, err := runCLI(t, dir, "index", input)
	require.NoError(t, err)

	// When: searching in text mode
	out, err := runCLI(t, dir, "search", "liver regeneration")

	// Then: results are returned with a notice that expansion was skipped
	require.NoError(t, err, out)
	assert.Contains(t, out, "GSE11")
	assert.Contains(t, out, "MeSH dictionary not loaded")
}

func TestWorkflow_MeshExpand(t *testing.T) {
	dir := isolateConfig(t)
	_, err := runCLI(t, dir, "mesh", "sample")
	require.NoError(t, err)

	out, err := runCLI(t, dir, "mesh", "expand", "lung", "cancer")

	require.NoError(t, err, out)
	assert.Contains(t, out, "Lung Neoplasms")
	assert.Contains(t, out, "D008175")
}

func TestWorkflow_IndexCheck(t *testing.T) {
	dir := isolateConfig(t)
	input := filepath.Join(t.TempDir(), "series.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(seriesJSONL), 0o644))
	_, err := runCLI(t, dir, "index", input)
	require.NoError(t, err)

	out, err := runCLI(t, dir, "index", "--check")

	require.NoError(t, err, out)
	assert.Contains(t, out, "Series checked")
	assert.Contains(t, out, "Indexes are consistent")
}

func TestWorkflow_ReindexCompactsVectorIndex(t *testing.T) {
	// Given: a series file indexed once
	dir := isolateConfig(t)
	input := filepath.Join(t.TempDir(), "series.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(seriesJSONL), 0o644))
	_, err := runCLI(t, dir, "index", input)
	require.NoError(t, err)

	// When: indexing the same file again without --rebuild
	out, err := runCLI(t, dir, "index", input)

	// Then: the replaced vectors are compacted away
	require.NoError(t, err, out)
	assert.Contains(t, out, "Compacted")

	out, err = runCLI(t, dir, "index", "--check")
	require.NoError(t, err, out)
	assert.Contains(t, out, "orphan_nodes")
	assert.Contains(t, out, "Indexes are consistent")
}

func TestWorkflow_IndexRequiresInput(t *testing.T) {
	dir := isolateConfig(t)

	_, err := runCLI(t, dir, "index")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "input file is required")
}

func TestWorkflow_IndexMissingFile(t *testing.T) {
	dir := isolateConfig(t)

	_, err := runCLI(t, dir, "index", filepath.Join(dir, "nope.jsonl"))

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "nope.jsonl"))
}
