package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PGVectorStore keeps series embeddings in Postgres using the pgvector
// extension. Persistence is the database itself, so Save and Load are no-ops.
type PGVectorStore struct {
	db         *sql.DB
	dimensions int
}

var _ VectorStore = (*PGVectorStore)(nil)

// OpenPGVectorStore connects to dsn and ensures the embeddings table exists
// with the configured dimension.
func OpenPGVectorStore(ctx context.Context, dsn string, cfg VectorStoreConfig) (*PGVectorStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("pgvector store requires positive dimensions, got %d", cfg.Dimensions)
	}

	db, err := openPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}

	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS series_embeddings (
			accession TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL
		);`, cfg.Dimensions)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize vector schema: %w", err)
	}

	return &PGVectorStore{db: db, dimensions: cfg.Dimensions}, nil
}

// Add upserts embeddings by accession.
func (p *PGVectorStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO series_embeddings (accession, embedding) VALUES ($1, $2)
		ON CONFLICT (accession) DO UPDATE SET embedding = EXCLUDED.embedding`)
	if err != nil {
		return fmt.Errorf("failed to prepare embedding statement: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		if len(vectors[i]) != p.dimensions {
			return ErrDimensionMismatch{Expected: p.dimensions, Got: len(vectors[i])}
		}
		if _, err := stmt.ExecContext(ctx, id, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("failed to save embedding %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// Search orders embeddings by cosine distance to query.
func (p *PGVectorStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != p.dimensions {
		return nil, ErrDimensionMismatch{Expected: p.dimensions, Got: len(query)}
	}
	if k <= 0 {
		return []*VectorResult{}, nil
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT accession, embedding <=> $1 AS distance
		FROM series_embeddings
		ORDER BY distance
		LIMIT $2`, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	results := make([]*VectorResult, 0, k)
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan vector result: %w", err)
		}
		results = append(results, &VectorResult{
			ID:       id,
			Distance: float32(distance),
			Score:    distanceToScore(float32(distance), "cos"),
		})
	}

	return results, rows.Err()
}

// Delete removes embeddings by accession.
func (p *PGVectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM series_embeddings WHERE accession = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return nil
}

// AllIDs returns every stored accession. Errors are logged and yield nil.
func (p *PGVectorStore) AllIDs() []string {
	ids, err := queryStrings(context.Background(), p.db, `SELECT accession FROM series_embeddings ORDER BY accession`)
	if err != nil {
		slog.Warn("pgvector_list_failed", slog.String("error", err.Error()))
		return nil
	}
	return ids
}

// Contains reports whether id has an embedding.
func (p *PGVectorStore) Contains(id string) bool {
	var exists bool
	err := p.db.QueryRowContext(context.Background(),
		`SELECT EXISTS (SELECT 1 FROM series_embeddings WHERE accession = $1)`, id).Scan(&exists)
	return err == nil && exists
}

// Count returns the number of stored embeddings.
func (p *PGVectorStore) Count() int {
	var n int
	if err := p.db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM series_embeddings`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Save is a no-op; rows are durable on commit.
func (p *PGVectorStore) Save(string) error { return nil }

// Load is a no-op; rows are read on demand.
func (p *PGVectorStore) Load(string) error { return nil }

// Close closes the connection pool.
func (p *PGVectorStore) Close() error {
	return p.db.Close()
}
