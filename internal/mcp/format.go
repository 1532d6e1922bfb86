package mcp

import (
	"fmt"
	"strings"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/mesh"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/search"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// FormatSearchResults formats a search response as markdown.
func FormatSearchResults(resp *search.SearchResponse) string {
	if resp == nil {
		return "No results."
	}
	query := resp.Metadata.Query
	results := filterValidResults(resp.Results)

	var sb strings.Builder
	if len(resp.Metadata.Degraded) > 0 {
		fmt.Fprintf(&sb, "> Partial results: %s retrieval unavailable.\n\n", strings.Join(resp.Metadata.Degraded, ", "))
	}
	if len(results) == 0 {
		fmt.Fprintf(&sb, "No datasets found for \"%s\"", query)
		return sb.String()
	}

	fmt.Fprintf(&sb, "## Dataset Results for \"%s\"\n\n", query)
	if exp := resp.Metadata.ExpandedQuery; exp != "" && exp != query {
		fmt.Fprintf(&sb, "Expanded query: `%s`\n\n", exp)
	}
	sb.WriteString(fmt.Sprintf("Found %d result", len(results)))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

// filterValidResults removes results without a record.
func filterValidResults(results []*search.SearchResult) []*search.SearchResult {
	valid := make([]*search.SearchResult, 0, len(results))
	for _, r := range results {
		if r != nil && r.Series != nil {
			valid = append(valid, r)
		}
	}
	return valid
}

// formatResult formats a single result.
func formatResult(sb *strings.Builder, num int, r *search.SearchResult) {
	fmt.Fprintf(sb, "### %d. %s: %s (score: %.4f)\n", num, r.Accession, r.Series.Title, r.Score)

	var facts []string
	if len(r.Series.Organisms) > 0 {
		facts = append(facts, strings.Join(r.Series.Organisms, ", "))
	}
	if r.Series.TechType != "" {
		facts = append(facts, r.Series.TechType)
	}
	if r.Series.SampleCount != nil {
		facts = append(facts, fmt.Sprintf("%d samples", *r.Series.SampleCount))
	}
	if len(facts) > 0 {
		fmt.Fprintf(sb, "**%s**\n", strings.Join(facts, " | "))
	}
	if names := termNames(r.MatchedTerms); len(names) > 0 {
		fmt.Fprintf(sb, "**MeSH:** %s\n", strings.Join(names, ", "))
	}
	sb.WriteString("\n")
	if r.Snippet != "" {
		sb.WriteString(r.Snippet)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(sb, "%s\n\n", r.GEOURL)
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// ToSearchOutput converts a search response to the structured tool output.
func ToSearchOutput(resp *search.SearchResponse) SearchDatasetsOutput {
	out := SearchDatasetsOutput{Results: []DatasetResult{}}
	if resp == nil {
		return out
	}
	for _, r := range filterValidResults(resp.Results) {
		out.Results = append(out.Results, ToDatasetResult(r))
	}
	out.Total = len(out.Results)
	out.Degraded = resp.Metadata.Degraded
	if resp.Metadata.ExpandedQuery != resp.Metadata.Query {
		out.ExpandedQuery = resp.Metadata.ExpandedQuery
	}
	for _, t := range resp.Metadata.MatchedTerms {
		out.MatchedTerms = append(out.MatchedTerms, t.PreferredName)
	}
	return out
}

// ToDatasetResult converts one search result.
func ToDatasetResult(r *search.SearchResult) DatasetResult {
	if r == nil || r.Series == nil {
		return DatasetResult{}
	}
	return DatasetResult{
		Accession:    r.Accession,
		Title:        r.Series.Title,
		Score:        r.Score,
		Organisms:    r.Series.Organisms,
		TechType:     r.Series.TechType,
		SampleCount:  r.Series.SampleCount,
		Snippet:      r.Snippet,
		MatchedTerms: termNames(r.MatchedTerms),
		MatchReason:  generateMatchReason(r),
		URL:          r.GEOURL,
	}
}

// generateMatchReason explains which sources contributed to a result.
func generateMatchReason(r *search.SearchResult) string {
	var parts []string
	switch {
	case r.SemanticRank > 0 && r.LexicalRank > 0:
		parts = append(parts, fmt.Sprintf("found by both semantic (#%d) and keyword (#%d) search", r.SemanticRank, r.LexicalRank))
	case r.SemanticRank > 0:
		parts = append(parts, fmt.Sprintf("semantic match (#%d)", r.SemanticRank))
	case r.LexicalRank > 0:
		parts = append(parts, fmt.Sprintf("keyword match (#%d)", r.LexicalRank))
	}
	if len(r.MatchedTerms) > 0 {
		parts = append(parts, fmt.Sprintf("tagged with %d query MeSH term", len(r.MatchedTerms)))
		if len(r.MatchedTerms) != 1 {
			parts[len(parts)-1] += "s"
		}
	}
	return strings.Join(parts, "; ")
}

// ToDatasetOutput converts a stored record and its associations.
func ToDatasetOutput(s *store.Series, assocs []*store.Association, idx *mesh.TermIndex) DatasetOutput {
	out := DatasetOutput{
		Accession:     s.Accession,
		Title:         s.Title,
		Summary:       s.Summary,
		OverallDesign: s.OverallDesign,
		Organisms:     s.Organisms,
		Platforms:     s.Platforms,
		TechType:      s.TechType,
		PubMedIDs:     s.PubMedIDs,
		SampleCount:   s.SampleCount,
		MeshTerms:     make([]TermEvidence, 0, len(assocs)),
		URL:           search.GEOURL(s.Accession),
	}
	if s.SubmissionDate != nil {
		out.SubmissionDate = s.SubmissionDate.Format(search.DateLayout)
	}
	if s.LastUpdateDate != nil {
		out.LastUpdateDate = s.LastUpdateDate.Format(search.DateLayout)
	}
	for _, a := range assocs {
		name := a.TermID
		if t := idx.Term(a.TermID); t != nil {
			name = t.PreferredName
		}
		out.MeshTerms = append(out.MeshTerms, TermEvidence{
			TermID:     a.TermID,
			Name:       name,
			Source:     a.Source,
			Confidence: a.Confidence,
		})
	}
	return out
}

// ToExpandOutput converts a query expansion.
func ToExpandOutput(e mesh.Expansion) ExpandQueryOutput {
	out := ExpandQueryOutput{
		OriginalQuery:   e.OriginalQuery,
		ExpandedQuery:   e.ExpandedQuery,
		MatchedTerms:    make([]TermOutput, 0, len(e.MatchedTerms)),
		ExpansionTokens: e.ExpansionTokens,
	}
	if out.ExpansionTokens == nil {
		out.ExpansionTokens = []string{}
	}
	for _, t := range e.MatchedTerms {
		out.MatchedTerms = append(out.MatchedTerms, TermOutput{
			ID:            t.ID,
			PreferredName: t.PreferredName,
			Synonyms:      t.Synonyms,
			TreeNumbers:   t.TreeNumbers,
		})
	}
	return out
}

func termNames(terms []search.MatchedTerm) []string {
	if len(terms) == 0 {
		return nil
	}
	names := make([]string, len(terms))
	for i, t := range terms {
		names[i] = t.PreferredName
	}
	return names
}
