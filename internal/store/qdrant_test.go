package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/webingest/core/internal/domain"
)

func newTestQdrantStore(t *testing.T) *QdrantStore {
	t.Helper()
	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		t.Skip("QDRANT_HOST not set")
	}
	s, err := NewQdrantStore(context.Background(), &QdrantConfig{
		Host:       host,
		Collection: "webingest_test",
		VectorSize: testDim,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestQdrantInsertAndExistingHashes(t *testing.T) {
	s := newTestQdrantStore(t)
	ctx := context.Background()

	chunk := domain.VectorChunk{
		ID:          "11111111-1111-1111-1111-111111111111",
		TenantID:    "tenant-q",
		ChunkIndex:  0,
		Content:     "hello qdrant",
		ContentHash: "q-hash-1",
		Embedding:   testVector(0.2),
		SourceType:  "website",
		SourceName:  "https://example.com/",
	}

	if err := s.InsertChunks(ctx, []domain.VectorChunk{chunk}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.UpsertStats(ctx, "tenant-q", 1, time.Now()); err != nil {
		t.Fatalf("upsert stats: %v", err)
	}

	existing, err := s.ExistingHashes(ctx, "tenant-q", []string{"q-hash-1", "q-hash-missing"})
	if err != nil {
		t.Fatalf("existing hashes: %v", err)
	}
	if !existing["q-hash-1"] {
		t.Fatalf("expected q-hash-1 to be reported existing")
	}
	if existing["q-hash-missing"] {
		t.Fatalf("did not expect q-hash-missing to be reported existing")
	}
}

func TestQdrantSearchScopedByTenant(t *testing.T) {
	s := newTestQdrantStore(t)
	ctx := context.Background()

	chunks := []domain.VectorChunk{
		{ID: "22222222-2222-2222-2222-222222222222", TenantID: "tenant-q-a", ContentHash: "qa-hash", Content: "a", Embedding: testVector(1.0), SourceType: "website", SourceName: "a"},
		{ID: "33333333-3333-3333-3333-333333333333", TenantID: "tenant-q-b", ContentHash: "qb-hash", Content: "b", Embedding: testVector(1.0), SourceType: "website", SourceName: "b"},
	}
	if err := s.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := s.Search(ctx, "tenant-q-a", testVector(1.0), 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range results {
		if r.TenantID != "tenant-q-a" {
			t.Fatalf("search leaked a row from another tenant: %+v", r)
		}
	}
}
