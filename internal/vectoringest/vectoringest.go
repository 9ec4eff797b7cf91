// Package vectoringest turns chunked document text into persisted,
// deduplicated vector rows: the last stage of both the website and
// uploaded-document ingestion pipelines.
package vectoringest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/webingest/core/internal/domain"
)

// Embedder produces one dense vector per input text, in order,
// batching internally as it sees fit. A failure aborts the whole call.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the vector store's write surface, as consumed by the
// ingestor. Implementations exist per backend (pgvector, qdrant).
type Store interface {
	// ExistingHashes returns the subset of the given content hashes
	// that already have a row for tenantID, for dedup.
	ExistingHashes(ctx context.Context, tenantID string, hashes []string) (map[string]bool, error)
	// InsertChunks persists new chunk rows. Chunks must already be
	// deduplicated by the caller.
	InsertChunks(ctx context.Context, chunks []domain.VectorChunk) error
	// UpsertStats updates the tenant's running chunk count and
	// last-indexed timestamp.
	UpsertStats(ctx context.Context, tenantID string, chunksAdded int, indexedAt time.Time) error
}

// Input is one chunk awaiting embedding and dedup, with the metadata
// that will be attached to its VectorChunk row if it survives dedup.
type Input struct {
	Content      string
	SourceType   string // "website" | "document"
	SourceName   string
	PageNumber   int
	SectionTitle string
	CategoryIDs  []string
	TagIDs       []string
	ContentType  string
	UploadDate   *time.Time
	ScrapedDate  *time.Time
}

// Ingestor embeds, deduplicates, and persists chunks for one tenant.
type Ingestor struct {
	embedder Embedder
	store    Store
	idFunc   func() string
}

// New builds an Ingestor. idFunc mints a new VectorChunk ID; callers
// typically pass a uuid generator.
func New(embedder Embedder, store Store, idFunc func() string) *Ingestor {
	return &Ingestor{embedder: embedder, store: store, idFunc: idFunc}
}

// Ingest embeds and writes chunks for one tenant and one document or
// ingestion. Exactly one of documentID/ingestionID should be set by
// the caller; this package does not enforce that, it only threads the
// values through into the written rows. chunk_index is assigned in
// the order chunks are given. Duplicates (same tenant_id,
// content_hash) are silently skipped, not an error. Any embedding or
// store failure aborts the whole call — nothing is retried here; the
// caller (Background Runner) marks the ingestion or document failed.
func (ig *Ingestor) Ingest(ctx context.Context, tenantID, documentID, ingestionID string, inputs []Input) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}

	hashes := make([]string, len(inputs))
	for i, in := range inputs {
		hashes[i] = contentHash(in.Content)
	}

	existing, err := ig.store.ExistingHashes(ctx, tenantID, hashes)
	if err != nil {
		return 0, fmt.Errorf("query existing hashes: %w", err)
	}

	type pending struct {
		idx   int
		input Input
		hash  string
	}
	var fresh []pending
	for i, in := range inputs {
		if existing[hashes[i]] {
			continue
		}
		fresh = append(fresh, pending{idx: i, input: in, hash: hashes[i]})
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	texts := make([]string, len(fresh))
	for i, p := range fresh {
		texts[i] = p.input.Content
	}
	vectors, err := ig.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(fresh) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(fresh))
	}

	chunks := make([]domain.VectorChunk, len(fresh))
	for i, p := range fresh {
		chunks[i] = domain.VectorChunk{
			ID:           ig.idFunc(),
			TenantID:     tenantID,
			DocumentID:   documentID,
			IngestionID:  ingestionID,
			ChunkIndex:   p.idx,
			Content:      p.input.Content,
			ContentHash:  p.hash,
			Embedding:    vectors[i],
			SourceType:   p.input.SourceType,
			SourceName:   p.input.SourceName,
			PageNumber:   p.input.PageNumber,
			SectionTitle: p.input.SectionTitle,
			CategoryIDs:  p.input.CategoryIDs,
			TagIDs:       p.input.TagIDs,
			ContentType:  p.input.ContentType,
			UploadDate:   p.input.UploadDate,
			ScrapedDate:  p.input.ScrapedDate,
		}
	}

	if err := ig.store.InsertChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("insert chunks: %w", err)
	}
	if err := ig.store.UpsertStats(ctx, tenantID, len(chunks), time.Now()); err != nil {
		return 0, fmt.Errorf("upsert stats: %w", err)
	}

	return len(chunks), nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
