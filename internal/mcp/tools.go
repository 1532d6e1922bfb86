package mcp

// SearchDatasetsInput defines the input schema for the search_datasets tool.
type SearchDatasetsInput struct {
	Query      string   `json:"query" jsonschema:"natural-language description of the datasets to find"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Organisms  []string `json:"organisms,omitempty" jsonschema:"keep datasets from any of these organisms, e.g. Homo sapiens"`
	TechType   string   `json:"tech_type,omitempty" jsonschema:"keep datasets of this technology, e.g. rna-seq or microarray"`
	From       string   `json:"from,omitempty" jsonschema:"earliest submission date, YYYY-MM-DD"`
	To         string   `json:"to,omitempty" jsonschema:"latest submission date, YYYY-MM-DD"`
	MinSamples *int     `json:"min_samples,omitempty" jsonschema:"minimum number of samples"`
	Semantic   *bool    `json:"semantic,omitempty" jsonschema:"use embedding similarity, default true"`
	Lexical    *bool    `json:"lexical,omitempty" jsonschema:"use keyword matching, default true"`
	Mesh       *bool    `json:"mesh,omitempty" jsonschema:"expand the query with MeSH terms and boost tagged datasets, default true"`
}

// SearchDatasetsOutput defines the output schema for the search_datasets tool.
type SearchDatasetsOutput struct {
	Results       []DatasetResult `json:"results" jsonschema:"ranked datasets"`
	ExpandedQuery string          `json:"expanded_query,omitempty" jsonschema:"query after MeSH expansion"`
	MatchedTerms  []string        `json:"matched_terms,omitempty" jsonschema:"MeSH terms recognized in the query"`
	Degraded      []string        `json:"degraded,omitempty" jsonschema:"retrieval sources that failed for this request"`
	Total         int             `json:"total" jsonschema:"number of results returned"`
}

// DatasetResult is one ranked dataset.
type DatasetResult struct {
	Accession    string   `json:"accession" jsonschema:"GEO series accession"`
	Title        string   `json:"title"`
	Score        float64  `json:"score" jsonschema:"fused relevance score including MeSH boost"`
	Organisms    []string `json:"organisms,omitempty"`
	TechType     string   `json:"tech_type,omitempty"`
	SampleCount  *int     `json:"sample_count,omitempty"`
	Snippet      string   `json:"snippet,omitempty" jsonschema:"summary excerpt around the first query word"`
	MatchedTerms []string `json:"matched_terms,omitempty" jsonschema:"query MeSH terms this dataset is tagged with"`
	MatchReason  string   `json:"match_reason,omitempty" jsonschema:"which retrieval sources found this dataset"`
	URL          string   `json:"url" jsonschema:"GEO accession page"`
}

// GetDatasetInput defines the input schema for the get_dataset tool.
type GetDatasetInput struct {
	Accession string `json:"accession" jsonschema:"GEO series accession, e.g. GSE12345"`
}

// DatasetOutput defines the output schema for the get_dataset tool.
type DatasetOutput struct {
	Accession      string         `json:"accession"`
	Title          string         `json:"title"`
	Summary        string         `json:"summary,omitempty"`
	OverallDesign  string         `json:"overall_design,omitempty"`
	Organisms      []string       `json:"organisms,omitempty"`
	Platforms      []string       `json:"platforms,omitempty"`
	TechType       string         `json:"tech_type,omitempty"`
	PubMedIDs      []string       `json:"pubmed_ids,omitempty"`
	SubmissionDate string         `json:"submission_date,omitempty"`
	LastUpdateDate string         `json:"last_update_date,omitempty"`
	SampleCount    *int           `json:"sample_count,omitempty"`
	MeshTerms      []TermEvidence `json:"mesh_terms"`
	URL            string         `json:"url"`
}

// TermEvidence is one dataset-term association.
type TermEvidence struct {
	TermID     string  `json:"term_id"`
	Name       string  `json:"name"`
	Source     string  `json:"source" jsonschema:"auto for tagger output, manual for curated"`
	Confidence float64 `json:"confidence"`
}

// ExpandQueryInput defines the input schema for the expand_query tool.
type ExpandQueryInput struct {
	Query string `json:"query" jsonschema:"query to expand with MeSH synonyms"`
}

// ExpandQueryOutput defines the output schema for the expand_query tool.
type ExpandQueryOutput struct {
	OriginalQuery   string       `json:"original_query"`
	ExpandedQuery   string       `json:"expanded_query"`
	MatchedTerms    []TermOutput `json:"matched_terms"`
	ExpansionTokens []string     `json:"expansion_tokens"`
}

// TermOutput is one MeSH descriptor.
type TermOutput struct {
	ID            string   `json:"id"`
	PreferredName string   `json:"preferred_name"`
	Synonyms      []string `json:"synonyms,omitempty"`
	TreeNumbers   []string `json:"tree_numbers,omitempty"`
}
