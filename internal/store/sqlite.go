package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// sqliteSchema is version 1 of the record store.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS series (
	accession        TEXT PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	summary          TEXT NOT NULL DEFAULT '',
	overall_design   TEXT NOT NULL DEFAULT '',
	organisms        TEXT NOT NULL DEFAULT '[]',
	platforms        TEXT NOT NULL DEFAULT '[]',
	tech_type        TEXT NOT NULL DEFAULT '',
	pubmed_ids       TEXT NOT NULL DEFAULT '[]',
	submission_date  TEXT,
	last_update_date TEXT,
	sample_count     INTEGER,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS mesh_terms (
	term_id        TEXT PRIMARY KEY,
	preferred_name TEXT NOT NULL,
	synonyms       TEXT NOT NULL DEFAULT '[]',
	tree_numbers   TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS series_mesh (
	accession  TEXT NOT NULL,
	term_id    TEXT NOT NULL,
	source     TEXT NOT NULL,
	confidence REAL NOT NULL,
	PRIMARY KEY (accession, term_id)
);

CREATE INDEX IF NOT EXISTS idx_series_mesh_term ON series_mesh(term_id);
CREATE INDEX IF NOT EXISTS idx_series_submission ON series(submission_date);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// OpenSQLiteStore opens or creates the record store at path.
// If path is empty, the store lives in memory.
func OpenSQLiteStore(path string, cacheMB int) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}
	if cacheMB <= 0 {
		cacheMB = 64
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention; also keeps :memory: on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Debug("sqlite_store_opened", slog.String("path", path))

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) checkOpen() error {
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// SaveSeries inserts or replaces records by accession.
func (s *SQLiteStore) SaveSeries(ctx context.Context, series []*Series) error {
	if len(series) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// ON CONFLICT keeps the rowid, so insertion order survives re-imports.
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO series (accession, title, summary, overall_design, organisms, platforms,
			tech_type, pubmed_ids, submission_date, last_update_date, sample_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(accession) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			overall_design = excluded.overall_design,
			organisms = excluded.organisms,
			platforms = excluded.platforms,
			tech_type = excluded.tech_type,
			pubmed_ids = excluded.pubmed_ids,
			submission_date = excluded.submission_date,
			last_update_date = excluded.last_update_date,
			sample_count = excluded.sample_count,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare series statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, sr := range series {
		if sr == nil || sr.Accession == "" {
			continue
		}
		var sampleCount any
		if sr.SampleCount != nil {
			sampleCount = *sr.SampleCount
		}
		if _, err := stmt.ExecContext(ctx,
			sr.Accession, sr.Title, sr.Summary, sr.OverallDesign,
			encodeList(sr.Organisms), encodeList(sr.Platforms), sr.TechType, encodeList(sr.PubMedIDs),
			encodeDate(sr.SubmissionDate), encodeDate(sr.LastUpdateDate), sampleCount, now,
		); err != nil {
			return fmt.Errorf("failed to save series %s: %w", sr.Accession, err)
		}
	}

	return tx.Commit()
}

// GetSeries returns the stored records for accessions.
func (s *SQLiteStore) GetSeries(ctx context.Context, accessions []string) (map[string]*Series, error) {
	out := make(map[string]*Series, len(accessions))
	if len(accessions) == 0 {
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	b := &queryBuilder{dialect: dialectSQLite}
	query := `SELECT accession, title, summary, overall_design, organisms, platforms, tech_type,
		pubmed_ids, submission_date, last_update_date, sample_count
		FROM series WHERE accession IN (` + b.list(accessions) + `)`

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sr                            Series
			organisms, platforms, pubmeds string
			submitted, updated            sql.NullString
			sampleCount                   sql.NullInt64
		)
		if err := rows.Scan(&sr.Accession, &sr.Title, &sr.Summary, &sr.OverallDesign,
			&organisms, &platforms, &sr.TechType, &pubmeds, &submitted, &updated, &sampleCount); err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		sr.Organisms = decodeList(organisms)
		sr.Platforms = decodeList(platforms)
		sr.PubMedIDs = decodeList(pubmeds)
		sr.SubmissionDate = decodeDate(submitted)
		sr.LastUpdateDate = decodeDate(updated)
		if sampleCount.Valid {
			n := int(sampleCount.Int64)
			sr.SampleCount = &n
		}
		out[sr.Accession] = &sr
	}

	return out, rows.Err()
}

// ListAccessions returns every stored accession in insertion order.
func (s *SQLiteStore) ListAccessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	return queryStrings(ctx, s.db, `SELECT accession FROM series ORDER BY rowid`)
}

// SaveTerms inserts or replaces dictionary terms.
func (s *SQLiteStore) SaveTerms(ctx context.Context, terms []*Term) error {
	if len(terms) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mesh_terms (term_id, preferred_name, synonyms, tree_numbers)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(term_id) DO UPDATE SET
			preferred_name = excluded.preferred_name,
			synonyms = excluded.synonyms,
			tree_numbers = excluded.tree_numbers`)
	if err != nil {
		return fmt.Errorf("failed to prepare term statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range terms {
		if t == nil || t.ID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.PreferredName, encodeList(t.Synonyms), encodeList(t.TreeNumbers)); err != nil {
			return fmt.Errorf("failed to save term %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// AllTerms returns the dictionary in insertion order.
func (s *SQLiteStore) AllTerms(ctx context.Context) ([]*Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT term_id, preferred_name, synonyms, tree_numbers FROM mesh_terms ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query terms: %w", err)
	}
	defer rows.Close()

	var terms []*Term
	for rows.Next() {
		var t Term
		var synonyms, trees string
		if err := rows.Scan(&t.ID, &t.PreferredName, &synonyms, &trees); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		t.Synonyms = decodeList(synonyms)
		t.TreeNumbers = decodeList(trees)
		terms = append(terms, &t)
	}

	return terms, rows.Err()
}

// SaveAssociations upserts associations on (accession, term_id).
func (s *SQLiteStore) SaveAssociations(ctx context.Context, assocs []*Association) error {
	if len(assocs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO series_mesh (accession, term_id, source, confidence)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(accession, term_id) DO UPDATE SET
			source = excluded.source,
			confidence = excluded.confidence`)
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
func (s *SQLiteStore) DeleteAssociations(ctx context.Context, accession, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM series_mesh WHERE accession = ? AND source = ?`, accession, source)
	if err != nil {
		return fmt.Errorf("failed to delete associations: %w", err)
	}
	return nil
}

// CountAssociations counts matching associations per accession.
func (s *SQLiteStore) CountAssociations(ctx context.Context, accessions, termIDs []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(accessions) == 0 || len(termIDs) == 0 {
		return counts, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	b := &queryBuilder{dialect: dialectSQLite}
	query := `SELECT accession, COUNT(*) FROM series_mesh
		WHERE accession IN (` + b.list(accessions) + `) AND term_id IN (` + b.list(termIDs) + `)
		GROUP BY accession`

	rows, err := s.db.QueryContext(ctx, query, b.args...)
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
func (s *SQLiteStore) GetAssociations(ctx context.Context, accessions, termIDs []string) ([]*Association, error) {
	if len(accessions) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	b := &queryBuilder{dialect: dialectSQLite}
	query := `SELECT accession, term_id, source, confidence FROM series_mesh
		WHERE accession IN (` + b.list(accessions) + `)`
	if len(termIDs) > 0 {
		query += ` AND term_id IN (` + b.list(termIDs) + `)`
	}
	query += ` ORDER BY accession, confidence DESC, term_id`

	rows, err := s.db.QueryContext(ctx, query, b.args...)
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

// LikeSearch returns records whose title, summary or overall design
// contains any query word of three or more characters, in insertion order,
// scored 1/(position+1).
func (s *SQLiteStore) LikeSearch(ctx context.Context, query string, filter SeriesFilter, limit int) ([]*BM25Result, error) {
	stmt, args, ok := buildLikeQuery(dialectSQLite, query, filter, limit)
	if !ok || limit <= 0 {
		return []*BM25Result{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	accessions, err := queryStrings(ctx, s.db, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("like search failed: %w", err)
	}

	return likeResults(accessions, likeTerms(query)), nil
}

// Stats counts rows in each table.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM series),
		(SELECT COUNT(*) FROM mesh_terms),
		(SELECT COUNT(*) FROM series_mesh)`).Scan(&st.Series, &st.Terms, &st.Associations)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	return &st, nil
}

// CountSeries returns the number of stored series.
func (s *SQLiteStore) CountSeries(ctx context.Context) (int, error) {
	st, err := s.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return st.Series, nil
}

// CountTerms returns the dictionary size.
func (s *SQLiteStore) CountTerms(ctx context.Context) (int, error) {
	st, err := s.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return st.Terms, nil
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// queryStrings runs a single-column query.
func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}

func encodeDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func decodeDate(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
