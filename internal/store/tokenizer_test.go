package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText_SplitsOnWhitespaceAndPunctuation(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{
			name:   "whitespace",
			input:  "breast cancer",
			expect: []string{"breast", "cancer"},
		},
		{
			name:   "punctuation",
			input:  "tumor (primary), metastasis.",
			expect: []string{"tumor", "primary", "metastasis"},
		},
		{
			name:   "mixed case lowercased",
			input:  "Homo Sapiens",
			expect: []string{"homo", "sapiens"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, TokenizeText(tt.input))
		})
	}
}

func TestTokenizeText_CompoundWords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{
			name:   "hyphenated assay",
			input:  "RNA-Seq",
			expect: []string{"rna", "seq", "rnaseq"},
		},
		{
			name:   "strain with slash",
			input:  "C57BL/6 mice",
			expect: []string{"c57bl", "c57bl6", "mice"},
		},
		{
			name:   "single-cell",
			input:  "single-cell profiling",
			expect: []string{"single", "cell", "singlecell", "profiling"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, TokenizeText(tt.input))
		})
	}
}

func TestTokenizeText_DropsShortTokens(t *testing.T) {
	// Given: text with single-character words
	text := "a B cell x"

	// When: tokenizing
	tokens := TokenizeText(text)

	// Then: only tokens of two or more characters remain
	assert.Equal(t, []string{"cell"}, tokens)
}

func TestTokenizeText_EmptyInput(t *testing.T) {
	assert.Empty(t, TokenizeText(""))
	assert.Empty(t, TokenizeText("  ,.;  "))
}

func TestSplitCompound_NeverNil(t *testing.T) {
	assert.NotNil(t, SplitCompound(""))
	assert.Equal(t, []string{"mus", "musculus"}, SplitCompound("mus-musculus"))
}

func TestFilterStopWords(t *testing.T) {
	// Given: the default stop words
	stop := BuildStopWordMap(DefaultStopWords)

	// When: filtering a tokenized sentence
	got := FilterStopWords([]string{"the", "study", "of", "lung", "tumors"}, stop)

	// Then: only content words remain
	assert.Equal(t, []string{"lung", "tumors"}, got)
}
