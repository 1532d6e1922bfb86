package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go driver, no CGO
)

// SQLiteBM25Index implements BM25Index with an SQLite FTS5 table.
// WAL mode lets the HTTP server read while the indexer writes.
type SQLiteBM25Index struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	config    BM25Config
	closed    bool
	stopWords map[string]struct{}
}

var _ BM25Index = (*SQLiteBM25Index)(nil)

// validateFTSIntegrity returns an error when the file at path exists but is
// not a usable FTS index.
func validateFTSIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='series_fts'`).Scan(&count); err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("FTS5 table 'series_fts' missing")
	}

	return nil
}

// NewSQLiteBM25Index opens or creates an FTS5 index at path.
// An empty path creates an in-memory index. A corrupt file is removed and
// recreated empty; the caller must reindex.
func NewSQLiteBM25Index(path string, config BM25Config) (*SQLiteBM25Index, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}

		if validErr := validateFTSIntegrity(path); validErr != nil {
			slog.Warn("lexical_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("lexical index corrupted at %s and cannot remove: %w", path, err)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("lexical_index_cleared", slog.String("path", path))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores most DSN parameters; pragmas must be executed.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteBM25Index{
		db:        db,
		path:      path,
		config:    config,
		stopWords: BuildStopWordMap(config.StopWords),
	}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return idx, nil
}

func (s *SQLiteBM25Index) initSchema() error {
	// Content is stored pre-tokenized, so unicode61 only splits on spaces.
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

	CREATE VIRTUAL TABLE IF NOT EXISTS series_fts USING fts5(
		accession UNINDEXED,
		content,
		tokenize='unicode61'
	);

	CREATE TABLE IF NOT EXISTS fts_ids (accession TEXT PRIMARY KEY);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`)
	return err
}

func (s *SQLiteBM25Index) analyze(text string) []string {
	return FilterStopWords(TokenizeText(text), s.stopWords)
}

// Index adds or replaces documents.
func (s *SQLiteBM25Index) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 tables do not support REPLACE.
	del, err := tx.PrepareContext(ctx, `DELETE FROM series_fts WHERE accession = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer del.Close()

	ins, err := tx.PrepareContext(ctx, `INSERT INTO series_fts(accession, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer ins.Close()

	track, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO fts_ids(accession) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare id statement: %w", err)
	}
	defer track.Close()

	for _, doc := range docs {
		content := strings.Join(s.analyze(doc.Content), " ")
		if _, err := del.ExecContext(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to replace document %s: %w", doc.ID, err)
		}
		if _, err := ins.ExecContext(ctx, doc.ID, content); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
		if _, err := track.ExecContext(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to track document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// ftsQuery ORs quoted tokens so any matching word contributes to BM25.
func ftsQuery(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// Search returns documents matching any query token, best BM25 first.
func (s *SQLiteBM25Index) Search(ctx context.Context, query string, limit int) ([]*BM25Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if limit <= 0 {
		return []*BM25Result{}, nil
	}

	tokens := dedupe(s.analyze(query))
	if len(tokens) == 0 {
		return []*BM25Result{}, nil
	}

	// bm25() is negative; more negative is better.
	rows, err := s.db.QueryContext(ctx, `
		SELECT accession, bm25(series_fts) AS score
		FROM series_fts
		WHERE series_fts MATCH ?
		ORDER BY score, rowid
		LIMIT ?`, ftsQuery(tokens), limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []*BM25Result{}, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	results := []*BM25Result{}
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, &BM25Result{DocID: id, Score: -score, MatchedTerms: tokens})
	}

	return results, rows.Err()
}

// Delete removes documents by accession.
func (s *SQLiteBM25Index) Delete(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	b := &queryBuilder{dialect: dialectSQLite}
	in := "(" + b.list(docIDs) + ")"

	if _, err := tx.ExecContext(ctx, "DELETE FROM series_fts WHERE accession IN "+in, b.args...); err != nil {
		return fmt.Errorf("failed to delete from FTS: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM fts_ids WHERE accession IN "+in, b.args...); err != nil {
		return fmt.Errorf("failed to delete ids: %w", err)
	}

	return tx.Commit()
}

// AllIDs returns every indexed accession, sorted.
func (s *SQLiteBM25Index) AllIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}
	return queryStrings(context.Background(), s.db, `SELECT accession FROM fts_ids ORDER BY accession`)
}

// Stats returns the document count.
func (s *SQLiteBM25Index) Stats() *IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return &IndexStats{}
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM fts_ids`).Scan(&count); err != nil {
		return &IndexStats{}
	}
	return &IndexStats{DocumentCount: count}
}

// Save checkpoints the WAL into the main file.
func (s *SQLiteBM25Index) Save(string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Load reopens the index at path.
func (s *SQLiteBM25Index) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil && !s.closed {
		_ = s.db.Close()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	db.SetMaxOpenConns(1)

	s.db = db
	s.path = path
	s.closed = false
	return nil
}

// Close checkpoints and closes the database. Safe to call twice.
func (s *SQLiteBM25Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
