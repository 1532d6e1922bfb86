package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// postgresSchema mirrors the SQLite layout with native arrays and dates.
// seq preserves insertion order for dictionary and LIKE ordering.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS series (
	seq              BIGSERIAL,
	accession        TEXT PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	summary          TEXT NOT NULL DEFAULT '',
	overall_design   TEXT NOT NULL DEFAULT '',
	organisms        TEXT[] NOT NULL DEFAULT '{}',
	platforms        TEXT[] NOT NULL DEFAULT '{}',
	tech_type        TEXT NOT NULL DEFAULT '',
	pubmed_ids       TEXT[] NOT NULL DEFAULT '{}',
	submission_date  DATE,
	last_update_date DATE,
	sample_count     INTEGER,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS mesh_terms (
	seq            BIGSERIAL,
	term_id        TEXT PRIMARY KEY,
	preferred_name TEXT NOT NULL,
	synonyms       TEXT[] NOT NULL DEFAULT '{}',
	tree_numbers   TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS series_mesh (
	accession  TEXT NOT NULL,
	term_id    TEXT NOT NULL,
	source     TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (accession, term_id)
);

CREATE INDEX IF NOT EXISTS idx_series_mesh_term ON series_mesh(term_id);
CREATE INDEX IF NOT EXISTS idx_series_submission ON series(submission_date);
`

// OpenPostgresStore connects to dsn and creates the schema if needed.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := openPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Debug("postgres_store_opened")
	return &PostgresStore{db: db}, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// SaveSeries inserts or replaces records by accession.
func (p *PostgresStore) SaveSeries(ctx context.Context, series []*Series) error {
	if len(series) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO series (accession, title, summary, overall_design, organisms, platforms,
			tech_type, pubmed_ids, submission_date, last_update_date, sample_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (accession) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			overall_design = EXCLUDED.overall_design,
			organisms = EXCLUDED.organisms,
			platforms = EXCLUDED.platforms,
			tech_type = EXCLUDED.tech_type,
			pubmed_ids = EXCLUDED.pubmed_ids,
			submission_date = EXCLUDED.submission_date,
			last_update_date = EXCLUDED.last_update_date,
			sample_count = EXCLUDED.sample_count,
			updated_at = now()`)
	if err != nil {
		return fmt.Errorf("failed to prepare series statement: %w", err)
	}
	defer stmt.Close()

	for _, sr := range series {
		if sr == nil || sr.Accession == "" {
			continue
		}
		var sampleCount sql.NullInt64
		if sr.SampleCount != nil {
			sampleCount = sql.NullInt64{Int64: int64(*sr.SampleCount), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			sr.Accession, sr.Title, sr.Summary, sr.OverallDesign,
			pq.Array(nonNil(sr.Organisms)), pq.Array(nonNil(sr.Platforms)), sr.TechType, pq.Array(nonNil(sr.PubMedIDs)),
			nullTime(sr.SubmissionDate), nullTime(sr.LastUpdateDate), sampleCount,
		); err != nil {
			return fmt.Errorf("failed to save series %s: %w", sr.Accession, err)
		}
	}

	return tx.Commit()
}

// GetSeries returns the stored records for accessions.
func (p *PostgresStore) GetSeries(ctx context.Context, accessions []string) (map[string]*Series, error) {
	out := make(map[string]*Series, len(accessions))
	if len(accessions) == 0 {
		return out, nil
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT accession, title, summary, overall_design, organisms, platforms, tech_type,
			pubmed_ids, submission_date, last_update_date, sample_count
		FROM series WHERE accession = ANY($1)`, pq.Array(accessions))
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sr                 Series
			submitted, updated sql.NullTime
			sampleCount        sql.NullInt64
		)
		if err := rows.Scan(&sr.Accession, &sr.Title, &sr.Summary, &sr.OverallDesign,
			pq.Array(&sr.Organisms), pq.Array(&sr.Platforms), &sr.TechType, pq.Array(&sr.PubMedIDs),
			&submitted, &updated, &sampleCount); err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		if submitted.Valid {
			t := submitted.Time
			sr.SubmissionDate = &t
		}
		if updated.Valid {
			t := updated.Time
			sr.LastUpdateDate = &t
		}
		if sampleCount.Valid {
			n := int(sampleCount.Int64)
			sr.SampleCount = &n
		}
		out[sr.Accession] = &sr
	}

	return out, rows.Err()
}

// ListAccessions returns every stored accession in insertion order.
func (p *PostgresStore) ListAccessions(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, p.db, `SELECT accession FROM series ORDER BY seq`)
}

// SaveTerms inserts or replaces dictionary terms.
func (p *PostgresStore) SaveTerms(ctx context.Context, terms []*Term) error {
	if len(terms) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mesh_terms (term_id, preferred_name, synonyms, tree_numbers)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (term_id) DO UPDATE SET
			preferred_name = EXCLUDED.preferred_name,
			synonyms = EXCLUDED.synonyms,
			tree_numbers = EXCLUDED.tree_numbers`)
	if err != nil {
		return fmt.Errorf("failed to prepare term statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range terms {
		if t == nil || t.ID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.PreferredName,
			pq.Array(nonNil(t.Synonyms)), pq.Array(nonNil(t.TreeNumbers))); err != nil {
			return fmt.Errorf("failed to save term %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// AllTerms returns the dictionary in insertion order.
func (p *PostgresStore) AllTerms(ctx context.Context) ([]*Term, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT term_id, preferred_name, synonyms, tree_numbers FROM mesh_terms ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query terms: %w", err)
	}
	defer rows.Close()

	var terms []*Term
	for rows.Next() {
		var t Term
		if err := rows.Scan(&t.ID, &t.PreferredName, pq.Array(&t.Synonyms), pq.Array(&t.TreeNumbers)); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		terms = append(terms, &t)
	}

	return terms, rows.Err()
}

// SaveAssociations upserts associations on (accession, term_id).
func (p *PostgresStore) SaveAssociations(ctx context.Context, assocs []*Association) error {
	if len(assocs) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO series_mesh (accession, term_id, source, confidence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (accession, term_id) DO UPDATE SET
			source = EXCLUDED.source,
			confidence = EXCLUDED.confidence`)
	if err != nil {
		return fmt.Errorf("failed to prepare association statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range assocs {
		if _, err := stmt.ExecContext(ctx, a.Accession, a.TermID, a.Source, a.Confidence); err != nil {
			return fmt.Errorf("failed to save association %s/%s: %w", a.Accession, a.TermID, err)
		}
	}

	return tx.Commit()
}

// DeleteAssociations removes an accession's associations from source.
func (p *PostgresStore) DeleteAssociations(ctx context.Context, accession, source string) error {
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM series_mesh WHERE accession = $1 AND source = $2`, accession, source); err != nil {
		return fmt.Errorf("failed to delete associations: %w", err)
	}
	return nil
}

// CountAssociations counts matching associations per accession.
func (p *PostgresStore) CountAssociations(ctx context.Context, accessions, termIDs []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(accessions) == 0 || len(termIDs) == 0 {
		return counts, nil
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT accession, COUNT(*) FROM series_mesh
		WHERE accession = ANY($1) AND term_id = ANY($2)
		GROUP BY accession`, pq.Array(accessions), pq.Array(termIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to count associations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var acc string
		var n int
		if err := rows.Scan(&acc, &n); err != nil {
			return nil, fmt.Errorf("failed to scan association count: %w", err)
		}
		counts[acc] = n
	}

	return counts, rows.Err()
}

// GetAssociations lists associations for accessions, optionally limited to termIDs.
func (p *PostgresStore) GetAssociations(ctx context.Context, accessions, termIDs []string) ([]*Association, error) {
	if len(accessions) == 0 {
		return nil, nil
	}

	query := `SELECT accession, term_id, source, confidence FROM series_mesh WHERE accession = ANY($1)`
	args := []any{pq.Array(accessions)}
	if len(termIDs) > 0 {
		query += ` AND term_id = ANY($2)`
		args = append(args, pq.Array(termIDs))
	}
	query += ` ORDER BY accession, confidence DESC, term_id`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query associations: %w", err)
	}
	defer rows.Close()

	var out []*Association
	for rows.Next() {
		var a Association
		if err := rows.Scan(&a.Accession, &a.TermID, &a.Source, &a.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan association: %w", err)
		}
		out = append(out, &a)
	}

	return out, rows.Err()
}

// LikeSearch is the Postgres form of SQLiteStore.LikeSearch.
func (p *PostgresStore) LikeSearch(ctx context.Context, query string, filter SeriesFilter, limit int) ([]*BM25Result, error) {
	stmt, args, ok := buildLikeQuery(dialectPostgres, query, filter, limit)
	if !ok || limit <= 0 {
		return []*BM25Result{}, nil
	}

	accessions, err := queryStrings(ctx, p.db, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("like search failed: %w", err)
	}

	return likeResults(accessions, likeTerms(query)), nil
}

// Stats counts rows in each table.
func (p *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := p.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM series),
		(SELECT COUNT(*) FROM mesh_terms),
		(SELECT COUNT(*) FROM series_mesh)`).Scan(&st.Series, &st.Terms, &st.Associations)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	return &st, nil
}

// CountSeries returns the number of stored series.
func (p *PostgresStore) CountSeries(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM series`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count series: %w", err)
	}
	return n, nil
}

// CountTerms returns the dictionary size.
func (p *PostgresStore) CountTerms(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mesh_terms`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count terms: %w", err)
	}
	return n, nil
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
