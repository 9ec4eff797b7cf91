package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/webingest/core/internal/domain"
)

// PgVectorStore implements vectoringest.Store on top of Postgres with
// the pgvector extension, storing the embedding as a native vector
// column via github.com/pgvector/pgvector-go rather than a text-cast
// ::vector literal.
type PgVectorStore struct {
	pool *pgxpool.Pool
	dim  int
}

// NewPgVectorStore connects to Postgres and ensures the pgvector
// extension and chunk table exist. dim is the embedding dimension of
// the configured embedding provider.
func NewPgVectorStore(ctx context.Context, dsn string, dim int) (*PgVectorStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector store: ping: %w", err)
	}

	s := &PgVectorStore{pool: pool, dim: dim}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS vector_chunks (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	document_id TEXT NOT NULL DEFAULT '',
	ingestion_id TEXT NOT NULL DEFAULT '',
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	source_type TEXT NOT NULL,
	source_name TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	page_number INTEGER NOT NULL DEFAULT 0,
	section_title TEXT NOT NULL DEFAULT '',
	category_ids TEXT[] NOT NULL DEFAULT '{}',
	tag_ids TEXT[] NOT NULL DEFAULT '{}',
	uploaded_at TIMESTAMPTZ,
	scraped_at TIMESTAMPTZ,
	embedding vector(%d) NOT NULL
);
CREATE INDEX IF NOT EXISTS vector_chunks_tenant_idx ON vector_chunks(tenant_id);
CREATE UNIQUE INDEX IF NOT EXISTS vector_chunks_hash_idx ON vector_chunks(tenant_id, content_hash);

CREATE TABLE IF NOT EXISTS vector_tenant_stats (
	tenant_id TEXT PRIMARY KEY,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	last_indexed_at TIMESTAMPTZ
);
`, s.dim))
	if err != nil {
		return fmt.Errorf("pgvector store: init schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PgVectorStore) Close() {
	s.pool.Close()
}

// ExistingHashes returns which of the given content hashes are already
// stored for this tenant, so the caller can skip re-embedding them.
func (s *PgVectorStore) ExistingHashes(ctx context.Context, tenantID string, hashes []string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `
SELECT content_hash FROM vector_chunks WHERE tenant_id = $1 AND content_hash = ANY($2)`,
		tenantID, hashes)
	if err != nil {
		return nil, fmt.Errorf("pgvector store: existing hashes: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(hashes))
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("pgvector store: scan hash: %w", err)
		}
		found[h] = true
	}
	return found, rows.Err()
}

// InsertChunks writes a batch of embedded chunks in one transaction.
// Chunks are already deduplicated by the Ingestor; a conflict here
// means a race with a concurrent ingestion of the same content and is
// resolved by keeping whichever row landed first.
func (s *PgVectorStore) InsertChunks(ctx context.Context, chunks []domain.VectorChunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgvector store: insert chunks: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO vector_chunks (
	id, tenant_id, document_id, ingestion_id, chunk_index, content, content_hash,
	source_type, source_name, content_type, page_number, section_title,
	category_ids, tag_ids, uploaded_at, scraped_at, embedding
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (tenant_id, content_hash) DO NOTHING`,
			c.ID, c.TenantID, c.DocumentID, c.IngestionID, c.ChunkIndex, c.Content, c.ContentHash,
			c.SourceType, c.SourceName, c.ContentType, c.PageNumber, c.SectionTitle,
			c.CategoryIDs, c.TagIDs, c.UploadDate, c.ScrapedDate, pgvector.NewVector(c.Embedding))
		if err != nil {
			return fmt.Errorf("pgvector store: insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgvector store: insert chunks: commit: %w", err)
	}
	return nil
}

// UpsertStats updates the tenant's running chunk count and
// last-indexed timestamp.
func (s *PgVectorStore) UpsertStats(ctx context.Context, tenantID string, chunksAdded int, indexedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO vector_tenant_stats (tenant_id, chunk_count, last_indexed_at)
VALUES ($1, $2, $3)
ON CONFLICT (tenant_id) DO UPDATE
SET chunk_count = vector_tenant_stats.chunk_count + $2, last_indexed_at = $3`,
		tenantID, chunksAdded, indexedAt)
	if err != nil {
		return fmt.Errorf("pgvector store: upsert stats: %w", err)
	}
	return nil
}

// DeleteByIngestion removes every chunk written for one ingestion, the
// vector-store half of an ingestion delete cascade. Matches
// store.VectorPurger.
func (s *PgVectorStore) DeleteByIngestion(ctx context.Context, tenantID, ingestionID string) error {
	_, err := s.pool.Exec(ctx, `
DELETE FROM vector_chunks WHERE tenant_id = $1 AND ingestion_id = $2`, tenantID, ingestionID)
	if err != nil {
		return fmt.Errorf("pgvector store: delete by ingestion: %w", err)
	}
	return nil
}

// Search returns the topK chunks nearest to queryEmbedding for the
// given tenant, ordered by cosine distance. Not part of
// vectoringest.Store; used by the (out-of-scope) query surface that
// would sit in front of this store.
func (s *PgVectorStore) Search(ctx context.Context, tenantID string, queryEmbedding []float32, topK int) ([]domain.VectorChunk, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, tenant_id, document_id, ingestion_id, chunk_index, content, content_hash,
       source_type, source_name, content_type, page_number, section_title
FROM vector_chunks
WHERE tenant_id = $1
ORDER BY embedding <=> $2
LIMIT $3`, tenantID, pgvector.NewVector(queryEmbedding), topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector store: search: %w", err)
	}
	defer rows.Close()

	var results []domain.VectorChunk
	for rows.Next() {
		var c domain.VectorChunk
		if err := rows.Scan(&c.ID, &c.TenantID, &c.DocumentID, &c.IngestionID, &c.ChunkIndex,
			&c.Content, &c.ContentHash, &c.SourceType, &c.SourceName, &c.ContentType,
			&c.PageNumber, &c.SectionTitle); err != nil {
			return nil, fmt.Errorf("pgvector store: scan result: %w", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}
