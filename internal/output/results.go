package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/mesh"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/search"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

const maxTermsShown = 5

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SearchResults renders a ranked result list with per-result evidence.
func (w *Writer) SearchResults(resp *search.SearchResponse) {
	if resp == nil {
		return
	}
	meta := resp.Metadata

	if meta.ExpandedQuery != "" && meta.ExpandedQuery != meta.Query {
		w.KeyValue("Expanded query", meta.ExpandedQuery)
	}
	for _, source := range meta.Degraded {
		w.Warningf("%s retrieval unavailable, results are partial", source)
	}
	if !meta.DictionaryAvailable {
		w.Warning("MeSH dictionary not loaded, query expansion skipped")
	}

	if len(resp.Results) == 0 {
		w.Status("🔍", fmt.Sprintf("No datasets found for %q", meta.Query))
		return
	}

	w.Newline()
	for i, r := range resp.Results {
		w.result(i+1, r)
	}
	w.Status("", w.styles.Dim.Render(fmt.Sprintf(
		"%d results (%d semantic, %d lexical, %d candidates) in %.0fms",
		meta.TotalResults, meta.SemanticCount, meta.LexicalCount, meta.CandidateCount, meta.DurationMS)))
}

func (w *Writer) result(rank int, r *search.SearchResult) {
	title := ""
	if r.Series != nil {
		title = r.Series.Title
	}
	_, _ = fmt.Fprintf(w.out, "%2d. %s  %s  %s\n",
		rank,
		w.styles.Accession.Render(r.Accession),
		w.styles.Score.Render(fmt.Sprintf("%.4f", r.Score)),
		w.styles.Title.Render(title))

	var ranks []string
	if r.SemanticRank > 0 {
		ranks = append(ranks, fmt.Sprintf("semantic #%d", r.SemanticRank))
	}
	if r.LexicalRank > 0 {
		ranks = append(ranks, fmt.Sprintf("lexical #%d", r.LexicalRank))
	}
	if r.Boost > 0 {
		ranks = append(ranks, fmt.Sprintf("mesh +%.2f", r.Boost))
	}
	if len(ranks) > 0 {
		w.Status("", w.styles.Dim.Render(strings.Join(ranks, " · ")))
	}

	if r.Series != nil {
		if facts := seriesFacts(r.Series); facts != "" {
			w.Status("", w.styles.Label.Render(facts))
		}
	}

	if len(r.MatchedTerms) > 0 {
		names := make([]string, 0, maxTermsShown)
		for i, mt := range r.MatchedTerms {
			if i == maxTermsShown {
				names = append(names, fmt.Sprintf("+%d more", len(r.MatchedTerms)-maxTermsShown))
				break
			}
			names = append(names, mt.PreferredName)
		}
		w.Status("", w.styles.Term.Render("MeSH: "+strings.Join(names, ", ")))
	}

	if r.Snippet != "" {
		w.Status("", r.Snippet)
	}
	w.Status("", w.styles.Dim.Render(r.GEOURL))
	w.Newline()
}

func seriesFacts(s *store.Series) string {
	var parts []string
	if len(s.Organisms) > 0 {
		parts = append(parts, strings.Join(s.Organisms, ", "))
	}
	if s.TechType != "" {
		parts = append(parts, s.TechType)
	}
	if s.SampleCount != nil {
		parts = append(parts, fmt.Sprintf("%d samples", *s.SampleCount))
	}
	if s.SubmissionDate != nil {
		parts = append(parts, s.SubmissionDate.Format(search.DateLayout))
	}
	return strings.Join(parts, " | ")
}

// Series renders the full record of one dataset with its term associations.
func (w *Writer) Series(s *store.Series, assocs []*store.Association, idx *mesh.TermIndex) {
	w.Header(s.Accession)
	w.KeyValue("Title", s.Title)
	if s.Summary != "" {
		w.KeyValue("Summary", s.Summary)
	}
	if s.OverallDesign != "" {
		w.KeyValue("Overall design", s.OverallDesign)
	}
	if len(s.Organisms) > 0 {
		w.KeyValue("Organisms", strings.Join(s.Organisms, ", "))
	}
	if len(s.Platforms) > 0 {
		w.KeyValue("Platforms", strings.Join(s.Platforms, ", "))
	}
	if s.TechType != "" {
		w.KeyValue("Technology", s.TechType)
	}
	if s.SampleCount != nil {
		w.KeyValue("Samples", *s.SampleCount)
	}
	if s.SubmissionDate != nil {
		w.KeyValue("Submitted", s.SubmissionDate.Format(search.DateLayout))
	}
	if s.LastUpdateDate != nil {
		w.KeyValue("Last updated", s.LastUpdateDate.Format(search.DateLayout))
	}
	if len(s.PubMedIDs) > 0 {
		w.KeyValue("PubMed", strings.Join(s.PubMedIDs, ", "))
	}
	w.KeyValue("URL", search.GEOURL(s.Accession))

	if len(assocs) == 0 {
		return
	}
	w.Newline()
	w.Header("MeSH terms")
	for _, a := range assocs {
		name := a.TermID
		if t := idx.Term(a.TermID); t != nil {
			name = t.PreferredName
		}
		_, _ = fmt.Fprintf(w.out, "  %s %s %s\n",
			w.styles.Term.Render(name),
			w.styles.Dim.Render("("+a.TermID+", "+a.Source+")"),
			w.styles.Score.Render(fmt.Sprintf("%.2f", a.Confidence)))
	}
}

// Expansion renders the result of query expansion.
func (w *Writer) Expansion(e mesh.Expansion) {
	w.KeyValue("Query", e.OriginalQuery)
	w.KeyValue("Expanded", e.ExpandedQuery)
	if len(e.MatchedTerms) == 0 {
		w.Status("", w.styles.Dim.Render("No MeSH terms matched"))
		return
	}
	w.Newline()
	w.Header("Matched terms")
	for _, t := range e.MatchedTerms {
		line := w.styles.Term.Render(t.PreferredName) + " " + w.styles.Dim.Render("("+t.ID+")")
		if len(t.Synonyms) > 0 {
			line += " " + w.styles.Label.Render(strings.Join(t.Synonyms, "; "))
		}
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
}
