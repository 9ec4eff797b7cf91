package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/webingest/core/internal/domain"
)

func newTestRelationalStore(t *testing.T) *RelationalStore {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewRelationalStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestIngestionLifecycle(t *testing.T) {
	s := newTestRelationalStore(t)
	ctx := context.Background()

	ing := &domain.Ingestion{
		ID:               "ing-test-1",
		TenantID:         "tenant-a",
		BaseURL:          "https://example.com/",
		ScrapingStrategy: domain.StrategyAuto,
	}
	if err := s.CreateIngestion(ctx, ing); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetIngestion(ctx, ing.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.IngestionPending {
		t.Fatalf("expected pending status, got %s", got.Status)
	}

	if err := s.SetIngestionStatus(ctx, ing.ID, domain.IngestionInProgress); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, err = s.GetIngestion(ctx, ing.ID)
	if err != nil {
		t.Fatalf("get after status change: %v", err)
	}
	if got.Status != domain.IngestionInProgress {
		t.Fatalf("expected in_progress, got %s", got.Status)
	}

	if err := s.CompleteIngestion(ctx, ing.ID, time.Now(), 3, 0); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err = s.GetIngestion(ctx, ing.ID)
	if err != nil {
		t.Fatalf("get after complete: %v", err)
	}
	if got.Status != domain.IngestionCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}
}

func TestGetIngestionNotFound(t *testing.T) {
	s := newTestRelationalStore(t)
	ctx := context.Background()

	_, err := s.GetIngestion(ctx, "does-not-exist")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveCategoryAndTagIsIdempotent(t *testing.T) {
	s := newTestRelationalStore(t)
	ctx := context.Background()

	c := domain.Classification{
		Categories: []domain.ScoredLabel{{Name: "Documentation", Confidence: 0.9}},
		Tags:       []domain.ScoredLabel{{Name: "api", Confidence: 0.8}},
	}

	catIDs1, tagIDs1, err := s.Resolve(ctx, "tenant-b", "page-1", c)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	catIDs2, tagIDs2, err := s.Resolve(ctx, "tenant-b", "page-1", c)
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}

	if len(catIDs1) != 1 || catIDs1[0] != catIDs2[0] {
		t.Fatalf("expected same category ID across resolves, got %v and %v", catIDs1, catIDs2)
	}
	if len(tagIDs1) != 1 || tagIDs1[0] != tagIDs2[0] {
		t.Fatalf("expected same tag ID across resolves, got %v and %v", tagIDs1, tagIDs2)
	}
}

func TestSeedSystemCategoriesIsIdempotent(t *testing.T) {
	s := newTestRelationalStore(t)
	ctx := context.Background()

	if err := s.SeedSystemCategories(ctx, "tenant-seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.SeedSystemCategories(ctx, "tenant-seed"); err != nil {
		t.Fatalf("seed again: %v", err)
	}

	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM categories WHERE tenant_id = $1 AND is_system = TRUE`, "tenant-seed").Scan(&count); err != nil {
		t.Fatalf("count categories: %v", err)
	}
	if count == 0 {
		t.Fatalf("expected system categories to be seeded")
	}
}

func TestResetIngestionForRetryClearsState(t *testing.T) {
	s := newTestRelationalStore(t)
	ctx := context.Background()

	ing := &domain.Ingestion{ID: "ing-retry-1", TenantID: "tenant-c", BaseURL: "https://example.com/", ScrapingStrategy: domain.StrategyAuto}
	if err := s.CreateIngestion(ctx, ing); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.FailIngestion(ctx, ing.ID, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	if err := s.ResetIngestionForRetry(ctx, ing.ID); err != nil {
		t.Fatalf("reset for retry: %v", err)
	}

	got, err := s.GetIngestion(ctx, ing.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.IngestionPending {
		t.Fatalf("expected pending status after retry reset, got %s", got.Status)
	}
	if got.ErrorMessage != "" {
		t.Fatalf("expected error_message cleared, got %q", got.ErrorMessage)
	}
	if got.CompletedAt != nil {
		t.Fatalf("expected completed_at cleared")
	}
}

type fakeVectorPurger struct {
	tenantID, ingestionID string
	calls                 int
}

func (v *fakeVectorPurger) DeleteByIngestion(ctx context.Context, tenantID, ingestionID string) error {
	v.calls++
	v.tenantID, v.ingestionID = tenantID, ingestionID
	return nil
}

func TestDeleteIngestionPurgesVectorsAndRow(t *testing.T) {
	s := newTestRelationalStore(t)
	ctx := context.Background()

	ing := &domain.Ingestion{ID: "ing-delete-1", TenantID: "tenant-d", BaseURL: "https://example.com/", ScrapingStrategy: domain.StrategyAuto}
	if err := s.CreateIngestion(ctx, ing); err != nil {
		t.Fatalf("create: %v", err)
	}

	purger := &fakeVectorPurger{}
	if err := s.DeleteIngestion(ctx, purger, ing.TenantID, ing.ID); err != nil {
		t.Fatalf("delete ingestion: %v", err)
	}
	if purger.calls != 1 || purger.ingestionID != ing.ID {
		t.Fatalf("expected vectors purged for ingestion %s, got %+v", ing.ID, purger)
	}

	if _, err := s.GetIngestion(ctx, ing.ID); err != ErrNotFound {
		t.Fatalf("expected ingestion row to be gone, got %v", err)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestRelationalStore(t)
	ctx := context.Background()

	doc := &domain.Document{
		ID:               "doc-test-1",
		TenantID:         "tenant-e",
		Filename:         "report.md",
		OriginalFilename: "report.md",
		StoragePath:      "tenant_e/documents/doc-test-1/report.md",
		MimeType:         "text/markdown",
	}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.DocumentPending {
		t.Fatalf("expected pending status, got %s", got.Status)
	}

	if err := s.SetDocumentStatus(ctx, doc.ID, domain.DocumentProcessing); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := s.CompleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err = s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get after complete: %v", err)
	}
	if got.Status != domain.DocumentCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}
