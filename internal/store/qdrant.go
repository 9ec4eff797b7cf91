package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/webingest/core/internal/domain"
)

// QdrantConfig holds connection parameters for a Qdrant vector store.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	VectorSize uint64
	APIKey     string
	UseTLS     bool
}

// QdrantStore implements vectoringest.Store backed by Qdrant. Qdrant
// has no separate stats table, so tenant chunk counts are tracked in
// memory only: they start from zero at process start and are not
// reconstructed from the collection.
type QdrantStore struct {
	client *qdrant.Client
	cfg    *QdrantConfig

	mu    sync.Mutex
	stats map[string]tenantStats
}

type tenantStats struct {
	count         int
	lastIndexedAt time.Time
}

// NewQdrantStore creates a client and ensures the configured
// collection exists.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant store: create client: %w", err)
	}

	s := &QdrantStore{client: client, cfg: cfg, stats: make(map[string]tenantStats)}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant store: check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant store: create collection %q: %w", s.cfg.Collection, err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// ExistingHashes checks, per hash, whether a point with that
// (tenant_id, content_hash) payload pair already exists.
func (s *QdrantStore) ExistingHashes(ctx context.Context, tenantID string, hashes []string) (map[string]bool, error) {
	found := make(map[string]bool, len(hashes))
	// Queries are filter-only lookups, not similarity search, so the
	// query vector is a zero vector of the collection's configured
	// dimension; only Filter and the result count matter here.
	probe := make([]float32, s.cfg.VectorSize)
	for _, h := range hashes {
		limit := uint64(1)
		result, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.cfg.Collection,
			Query:          qdrant.NewQueryDense(probe),
			Filter: &qdrant.Filter{
				Must: []*qdrant.Condition{
					qdrant.NewMatch("tenant_id", tenantID),
					qdrant.NewMatch("content_hash", h),
				},
			},
			Limit:       &limit,
			WithPayload: qdrant.NewWithPayload(false),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant store: existing hash %q: %w", h, err)
		}
		if len(result) > 0 {
			found[h] = true
		}
	}
	return found, nil
}

// InsertChunks upserts one point per chunk, carrying every
// domain.VectorChunk field as scalar/list payload values.
func (s *QdrantStore) InsertChunks(ctx context.Context, chunks []domain.VectorChunk) error {
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		payload := map[string]interface{}{
			"tenant_id":     c.TenantID,
			"document_id":   c.DocumentID,
			"ingestion_id":  c.IngestionID,
			"chunk_index":   int64(c.ChunkIndex),
			"content":       c.Content,
			"content_hash":  c.ContentHash,
			"source_type":   c.SourceType,
			"source_name":   c.SourceName,
			"content_type":  c.ContentType,
			"page_number":   int64(c.PageNumber),
			"section_title": c.SectionTitle,
			"category_ids":  toAnySlice(c.CategoryIDs),
			"tag_ids":       toAnySlice(c.TagIDs),
		}
		if c.UploadDate != nil {
			payload["upload_date"] = c.UploadDate.Format(time.RFC3339)
		}
		if c.ScrapedDate != nil {
			payload["scraped_date"] = c.ScrapedDate.Format(time.RFC3339)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID),
			Vectors: qdrant.NewVectorsDense(c.Embedding),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant store: upsert: %w", err)
	}
	return nil
}

// UpsertStats tracks running per-tenant counters in memory; Qdrant
// itself has no row for this, unlike the pgvector backend's stats
// table.
func (s *QdrantStore) UpsertStats(ctx context.Context, tenantID string, chunksAdded int, indexedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[tenantID]
	st.count += chunksAdded
	st.lastIndexedAt = indexedAt
	s.stats[tenantID] = st
	return nil
}

// DeleteByIngestion removes every point written for one ingestion.
// Matches store.VectorPurger.
func (s *QdrantStore) DeleteByIngestion(ctx context.Context, tenantID, ingestionID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("tenant_id", tenantID),
				qdrant.NewMatch("ingestion_id", ingestionID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant store: delete by ingestion: %w", err)
	}
	return nil
}

// Search performs a cosine similarity query scoped to one tenant.
func (s *QdrantStore) Search(ctx context.Context, tenantID string, queryEmbedding []float32, topK int) ([]domain.VectorChunk, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQueryDense(queryEmbedding),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("tenant_id", tenantID)},
		},
		Limit:       &limit,
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant store: search: %w", err)
	}

	chunks := make([]domain.VectorChunk, 0, len(results))
	for _, r := range results {
		p := r.Payload
		if p == nil {
			continue
		}
		chunks = append(chunks, domain.VectorChunk{
			ID:           r.Id.GetUuid(),
			TenantID:     payloadString(p, "tenant_id"),
			DocumentID:   payloadString(p, "document_id"),
			IngestionID:  payloadString(p, "ingestion_id"),
			ChunkIndex:   int(p["chunk_index"].GetIntegerValue()),
			Content:      payloadString(p, "content"),
			ContentHash:  payloadString(p, "content_hash"),
			SourceType:   payloadString(p, "source_type"),
			SourceName:   payloadString(p, "source_name"),
			ContentType:  payloadString(p, "content_type"),
			PageNumber:   int(p["page_number"].GetIntegerValue()),
			SectionTitle: payloadString(p, "section_title"),
		})
	}
	return chunks, nil
}

func payloadString(p map[string]*qdrant.Value, key string) string {
	v, ok := p[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func toAnySlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
