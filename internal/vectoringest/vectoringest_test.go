package vectoringest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/webingest/core/internal/domain"
)

type fakeEmbedder struct {
	calls [][]string
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding provider unavailable")
}

type fakeStore struct {
	existing map[string]bool
	inserted []domain.VectorChunk
	statsAdd int
}

func (s *fakeStore) ExistingHashes(ctx context.Context, tenantID string, hashes []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, h := range hashes {
		if s.existing[h] {
			out[h] = true
		}
	}
	return out, nil
}

func (s *fakeStore) InsertChunks(ctx context.Context, chunks []domain.VectorChunk) error {
	s.inserted = append(s.inserted, chunks...)
	return nil
}

func (s *fakeStore) UpsertStats(ctx context.Context, tenantID string, chunksAdded int, indexedAt time.Time) error {
	s.statsAdd += chunksAdded
	return nil
}

func nextID() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("chunk-%d", n)
	}
}

func TestIngestWritesNewChunksAndStats(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{existing: map[string]bool{}}
	ig := New(embedder, store, nextID())

	inputs := []Input{
		{Content: "first chunk", SourceType: "website"},
		{Content: "second chunk", SourceType: "website"},
	}
	n, err := ig.Ingest(context.Background(), "tenant-1", "", "ing-1", inputs)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("Ingest() = %d, want 2", n)
	}
	if len(store.inserted) != 2 {
		t.Fatalf("store received %d chunks, want 2", len(store.inserted))
	}
	if store.statsAdd != 2 {
		t.Fatalf("stats added = %d, want 2", store.statsAdd)
	}
	for i, c := range store.inserted {
		if c.ChunkIndex != i {
			t.Fatalf("chunk %d has index %d, want %d", i, c.ChunkIndex, i)
		}
	}
}

func TestIngestSkipsDuplicateContentHash(t *testing.T) {
	embedder := &fakeEmbedder{}
	dupHash := contentHash("already indexed")
	store := &fakeStore{existing: map[string]bool{dupHash: true}}
	ig := New(embedder, store, nextID())

	inputs := []Input{
		{Content: "already indexed", SourceType: "website"},
		{Content: "brand new", SourceType: "website"},
	}
	n, err := ig.Ingest(context.Background(), "tenant-1", "", "ing-1", inputs)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Ingest() = %d, want 1 (one deduped)", n)
	}
	if len(store.inserted) != 1 || store.inserted[0].Content != "brand new" {
		t.Fatalf("unexpected inserted chunks: %+v", store.inserted)
	}
}

func TestIngestAllDuplicatesSkipsEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{}
	hash := contentHash("dup")
	store := &fakeStore{existing: map[string]bool{hash: true}}
	ig := New(embedder, store, nextID())

	n, err := ig.Ingest(context.Background(), "tenant-1", "", "ing-1", []Input{{Content: "dup"}})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("Ingest() = %d, want 0", n)
	}
	if len(embedder.calls) != 0 {
		t.Fatalf("expected no embedding calls when all chunks are duplicates")
	}
}

func TestIngestAbortsWholeCallOnEmbeddingFailure(t *testing.T) {
	store := &fakeStore{existing: map[string]bool{}}
	ig := New(failingEmbedder{}, store, nextID())

	_, err := ig.Ingest(context.Background(), "tenant-1", "", "ing-1", []Input{{Content: "x"}})
	if err == nil {
		t.Fatalf("expected error when embedding fails")
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected no chunks inserted on embedding failure")
	}
}

func TestIngestEmptyInputIsNoop(t *testing.T) {
	ig := New(&fakeEmbedder{}, &fakeStore{existing: map[string]bool{}}, nextID())
	n, err := ig.Ingest(context.Background(), "tenant-1", "", "ing-1", nil)
	if err != nil || n != 0 {
		t.Fatalf("Ingest(nil) = %d, %v, want 0, nil", n, err)
	}
}
