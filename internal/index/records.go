// Package index imports GEO series records and builds the lexical and
// vector indexes over them.
package index

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// maxLineSize bounds one JSON Lines record.
const maxLineSize = 16 << 20

// record is the JSON Lines shape of a series. Dates are YYYY-MM-DD or RFC 3339.
type record struct {
	Accession      string   `json:"accession"`
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	OverallDesign  string   `json:"overall_design"`
	Organisms      []string `json:"organisms"`
	Platforms      []string `json:"platforms"`
	TechType       string   `json:"tech_type"`
	PubMedIDs      []string `json:"pubmed_ids"`
	SubmissionDate string   `json:"submission_date"`
	LastUpdateDate string   `json:"last_update_date"`
	SampleCount    *int     `json:"sample_count"`
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}

func (r *record) series() (*store.Series, error) {
	acc := strings.TrimSpace(r.Accession)
	if acc == "" {
		return nil, fmt.Errorf("missing accession")
	}
	submitted, err := parseDate(r.SubmissionDate)
	if err != nil {
		return nil, fmt.Errorf("submission_date: %w", err)
	}
	updated, err := parseDate(r.LastUpdateDate)
	if err != nil {
		return nil, fmt.Errorf("last_update_date: %w", err)
	}
	return &store.Series{
		Accession:      acc,
		Title:          strings.TrimSpace(r.Title),
		Summary:        strings.TrimSpace(r.Summary),
		OverallDesign:  strings.TrimSpace(r.OverallDesign),
		Organisms:      r.Organisms,
		Platforms:      r.Platforms,
		TechType:       strings.ToLower(strings.TrimSpace(r.TechType)),
		PubMedIDs:      r.PubMedIDs,
		SubmissionDate: submitted,
		LastUpdateDate: updated,
		SampleCount:    r.SampleCount,
	}, nil
}

// ReadResult is the outcome of reading a JSON Lines file.
type ReadResult struct {
	Series []*store.Series

	// Skipped counts malformed lines. They are logged and ignored.
	Skipped int
}

// ReadJSONL reads one series per line. Blank lines are ignored; later
// duplicates of an accession replace earlier ones.
func ReadJSONL(r io.Reader) (*ReadResult, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	res := &ReadResult{}
	seen := make(map[string]int)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			res.Skipped++
			slog.Warn("series_line_skipped", slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		s, err := rec.series()
		if err != nil {
			res.Skipped++
			slog.Warn("series_line_skipped", slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}

		if at, dup := seen[s.Accession]; dup {
			res.Series[at] = s
			continue
		}
		seen[s.Accession] = len(res.Series)
		res.Series = append(res.Series, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read series at line %d: %w", line+1, err)
	}
	return res, nil
}

// ReadFile reads a JSON Lines file, gunzipping *.gz.
func ReadFile(path string) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	return ReadJSONL(r)
}
