package store

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"
)

// dialect selects placeholder and function syntax for the shared queries.
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// dateLayout is how SQLite stores series dates; it sorts lexically.
const dateLayout = "2006-01-02"

// minLikeTermLength drops query words too short to be selective.
const minLikeTermLength = 3

// queryBuilder accumulates positional arguments for one statement.
type queryBuilder struct {
	dialect dialect
	args    []any
}

// arg records v and returns its placeholder.
func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	if b.dialect == dialectPostgres {
		return fmt.Sprintf("$%d", len(b.args))
	}
	return "?"
}

// list records values and returns a comma-separated placeholder list.
func (b *queryBuilder) list(values []string) string {
	ph := make([]string, len(values))
	for i, v := range values {
		ph[i] = b.arg(v)
	}
	return strings.Join(ph, ", ")
}

func (b *queryBuilder) date(t time.Time) string {
	if b.dialect == dialectPostgres {
		return b.arg(t)
	}
	return b.arg(t.Format(dateLayout))
}

// likeTerms lowercases query, splits on whitespace and drops short words.
func likeTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(w) >= minLikeTermLength {
			terms = append(terms, w)
		}
	}
	return terms
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// filterClauses renders filter as SQL conditions over the series table.
// NULL columns never satisfy a comparison, so records missing a filtered
// attribute are excluded.
func (b *queryBuilder) filterClauses(filter SeriesFilter) []string {
	var clauses []string

	if len(filter.Organisms) > 0 {
		lowered := make([]string, 0, len(filter.Organisms))
		for _, o := range filter.Organisms {
			lowered = append(lowered, strings.ToLower(strings.TrimSpace(o)))
		}
		if b.dialect == dialectPostgres {
			clauses = append(clauses, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM unnest(series.organisms) AS o WHERE lower(o) = ANY(%s))",
				b.arg(pq.Array(lowered))))
		} else {
			clauses = append(clauses, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM json_each(series.organisms) WHERE lower(json_each.value) IN (%s))",
				b.list(lowered)))
		}
	}
	if filter.TechType != "" {
		clauses = append(clauses, "lower(series.tech_type) = "+b.arg(strings.ToLower(filter.TechType)))
	}
	if filter.From != nil {
		clauses = append(clauses, "series.submission_date >= "+b.date(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "series.submission_date <= "+b.date(*filter.To))
	}
	if filter.MinSamples != nil {
		clauses = append(clauses, "series.sample_count >= "+b.arg(*filter.MinSamples))
	}

	return clauses
}

// buildLikeQuery returns the substring search statement, or ok=false when
// the query has no usable words.
func buildLikeQuery(d dialect, query string, filter SeriesFilter, limit int) (sql string, args []any, ok bool) {
	terms := likeTerms(query)
	if len(terms) == 0 {
		return "", nil, false
	}

	b := &queryBuilder{dialect: d}
	var matches []string
	for _, t := range terms {
		pattern := "%" + likeEscaper.Replace(t) + "%"
		for _, col := range []string{"title", "summary", "overall_design"} {
			matches = append(matches, fmt.Sprintf(`lower(series.%s) LIKE %s ESCAPE '\'`, col, b.arg(pattern)))
		}
	}

	where := []string{"(" + strings.Join(matches, " OR ") + ")"}
	where = append(where, b.filterClauses(filter)...)

	order := "series.rowid"
	if d == dialectPostgres {
		order = "series.seq"
	}

	sql = fmt.Sprintf("SELECT series.accession FROM series WHERE %s ORDER BY %s LIMIT %s",
		strings.Join(where, " AND "), order, b.arg(limit))
	return sql, b.args, true
}

// likeResults scores accessions by position: 1/(i+1).
func likeResults(accessions []string, terms []string) []*BM25Result {
	results := make([]*BM25Result, len(accessions))
	for i, acc := range accessions {
		results[i] = &BM25Result{
			DocID:        acc,
			Score:        1.0 / float64(i+1),
			MatchedTerms: terms,
		}
	}
	return results
}
