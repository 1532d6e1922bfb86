package search

import (
	"strings"
	"time"

	geoerrors "github.com/raghaviCJanaswamy/GEOSearch/internal/errors"
	"github.com/raghaviCJanaswamy/GEOSearch/internal/store"
)

// DateLayout is the accepted date format for filter bounds.
const DateLayout = "2006-01-02"

// DateRange is an inclusive submission date range. Either bound may be nil.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Filters restrict search results. All fields are optional and
// AND-combined; an unset field does not filter.
type Filters struct {
	// Organisms passes series whose organism set intersects this one
	// (case-insensitive).
	Organisms []string `json:"organisms,omitempty"`

	// TechType passes series with an equal technology type (case-insensitive).
	TechType string `json:"tech_type,omitempty"`

	// DateRange passes series whose submission date is known and in range.
	DateRange *DateRange `json:"date_range,omitempty"`

	// MinSamples passes series whose sample count is known and at least this.
	MinSamples *int `json:"min_samples,omitempty"`
}

// IsZero reports whether no filter is active.
func (f Filters) IsZero() bool {
	return len(f.Organisms) == 0 && strings.TrimSpace(f.TechType) == "" &&
		(f.DateRange == nil || (f.DateRange.Start == nil && f.DateRange.End == nil)) &&
		f.MinSamples == nil
}

// Validate rejects filters that cannot match anything meaningful.
func (f Filters) Validate() error {
	for _, o := range f.Organisms {
		if strings.TrimSpace(o) == "" {
			return geoerrors.InvalidFilter("organism must not be empty")
		}
	}
	if f.MinSamples != nil && *f.MinSamples < 0 {
		return geoerrors.InvalidFilter("min_samples must not be negative")
	}
	if r := f.DateRange; r != nil && r.Start != nil && r.End != nil && r.Start.After(*r.End) {
		return geoerrors.InvalidFilter("date range start is after end").
			WithDetail("start", r.Start.Format(DateLayout)).
			WithDetail("end", r.End.Format(DateLayout))
	}
	return nil
}

// Matches reports whether s passes every active filter.
func (f Filters) Matches(s *store.Series) bool {
	if s == nil {
		return false
	}

	if len(f.Organisms) > 0 && !intersectsFold(f.Organisms, s.Organisms) {
		return false
	}

	if tech := strings.TrimSpace(f.TechType); tech != "" && !strings.EqualFold(tech, strings.TrimSpace(s.TechType)) {
		return false
	}

	if r := f.DateRange; r != nil && (r.Start != nil || r.End != nil) {
		if s.SubmissionDate == nil {
			return false
		}
		if r.Start != nil && s.SubmissionDate.Before(*r.Start) {
			return false
		}
		if r.End != nil && s.SubmissionDate.After(*r.End) {
			return false
		}
	}

	if f.MinSamples != nil && (s.SampleCount == nil || *s.SampleCount < *f.MinSamples) {
		return false
	}

	return true
}

// Apply returns the series that pass f, in order. Applying the same filters
// to the output again returns it unchanged.
func (f Filters) Apply(series []*store.Series) []*store.Series {
	out := make([]*store.Series, 0, len(series))
	for _, s := range series {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}

// ToSeriesFilter converts f for stores that filter in SQL.
func (f Filters) ToSeriesFilter() store.SeriesFilter {
	sf := store.SeriesFilter{
		Organisms:  f.Organisms,
		TechType:   strings.TrimSpace(f.TechType),
		MinSamples: f.MinSamples,
	}
	if f.DateRange != nil {
		sf.From = f.DateRange.Start
		sf.To = f.DateRange.End
	}
	return sf
}

// ParseDate parses a YYYY-MM-DD filter bound. Empty input is an open bound.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, geoerrors.InvalidFilter("invalid date " + s + ", expected YYYY-MM-DD")
	}
	return &t, nil
}

func intersectsFold(want, have []string) bool {
	for _, w := range want {
		w = strings.TrimSpace(w)
		for _, h := range have {
			if strings.EqualFold(w, strings.TrimSpace(h)) {
				return true
			}
		}
	}
	return false
}
