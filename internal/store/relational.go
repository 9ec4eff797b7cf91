// Package store implements the persistent-store side of the core: the
// relational tables backing tenants, ingestions, pages, documents,
// categories and tags, plus the vector-store backends (pgvector and
// qdrant) that satisfy vectoringest.Store.
//
// Nothing here owns domain logic; it only turns domain.* values into
// rows and back, the same separation of concerns the rest of this
// codebase's persistence layer uses.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webingest/core/internal/classify"
	"github.com/webingest/core/internal/domain"
)

// ErrNotFound is returned when a row the caller expected to exist is
// missing.
var ErrNotFound = errors.New("store: not found")

// RelationalStore is the Postgres-backed store for everything except
// vector chunks. One instance is shared by the whole process; pgxpool
// already pools and hands out connections per call, so unlike the
// original's ORM-session model there is no dedicated per-job connection
// to open and close; Session and DocumentSession return thin wrappers
// over the shared pool.
type RelationalStore struct {
	pool *pgxpool.Pool
}

// NewRelationalStore connects to Postgres and verifies connectivity.
func NewRelationalStore(ctx context.Context, dsn string) (*RelationalStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &RelationalStore{pool: pool}, nil
}

// Close releases the pool. Call once at process shutdown.
func (s *RelationalStore) Close() {
	s.pool.Close()
}

// InitSchema creates every table this store needs if it does not
// already exist. Safe to call on every process start.
func (s *RelationalStore) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ingestions (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	base_url TEXT NOT NULL,
	status TEXT NOT NULL,
	scraping_strategy TEXT NOT NULL DEFAULT 'auto',
	pages_discovered INTEGER NOT NULL DEFAULT 0,
	pages_processed INTEGER NOT NULL DEFAULT 0,
	pages_failed INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ,
	error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS ingestions_tenant_idx ON ingestions(tenant_id);

CREATE TABLE IF NOT EXISTS pages (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	ingestion_id TEXT NOT NULL REFERENCES ingestions(id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	scraped_at TIMESTAMPTZ,
	error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS pages_ingestion_idx ON pages(ingestion_id);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS documents_tenant_idx ON documents(tenant_id);

CREATE TABLE IF NOT EXISTS categories (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	parent_id TEXT NOT NULL DEFAULT '',
	is_system BOOLEAN NOT NULL DEFAULT FALSE,
	color TEXT NOT NULL DEFAULT '',
	icon TEXT NOT NULL DEFAULT '',
	UNIQUE(tenant_id, parent_id, name)
);

CREATE TABLE IF NOT EXISTS tags (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	name TEXT NOT NULL,
	tag_type TEXT NOT NULL DEFAULT '',
	usage_count INTEGER NOT NULL DEFAULT 0,
	UNIQUE(tenant_id, name)
);

CREATE TABLE IF NOT EXISTS category_assignments (
	document_id TEXT NOT NULL,
	category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	confidence_score DOUBLE PRECISION NOT NULL,
	assigned_by TEXT NOT NULL,
	PRIMARY KEY (document_id, category_id)
);

CREATE TABLE IF NOT EXISTS tag_assignments (
	document_id TEXT NOT NULL,
	tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	confidence_score DOUBLE PRECISION NOT NULL,
	assigned_by TEXT NOT NULL,
	PRIMARY KEY (document_id, tag_id)
);
`)
	if err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}

// ---- Ingestion lifecycle ----

// CreateIngestion inserts a new pending ingestion row.
func (s *RelationalStore) CreateIngestion(ctx context.Context, ing *domain.Ingestion) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO ingestions (id, tenant_id, base_url, status, scraping_strategy, started_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		ing.ID, ing.TenantID, ing.BaseURL, domain.IngestionPending, ing.ScrapingStrategy, time.Now())
	if err != nil {
		return fmt.Errorf("store: create ingestion: %w", err)
	}
	return nil
}

// GetIngestion loads one ingestion row by ID.
func (s *RelationalStore) GetIngestion(ctx context.Context, id string) (*domain.Ingestion, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, tenant_id, base_url, status, scraping_strategy, pages_discovered,
       pages_processed, pages_failed, started_at, completed_at, error_message
FROM ingestions WHERE id = $1`, id)

	var ing domain.Ingestion
	if err := row.Scan(&ing.ID, &ing.TenantID, &ing.BaseURL, &ing.Status, &ing.ScrapingStrategy,
		&ing.PagesDiscovered, &ing.PagesProcessed, &ing.PagesFailed, &ing.StartedAt,
		&ing.CompletedAt, &ing.ErrorMessage); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get ingestion: %w", err)
	}
	return &ing, nil
}

// SetIngestionStatus flips an ingestion's status column.
func (s *RelationalStore) SetIngestionStatus(ctx context.Context, id string, status domain.IngestionStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE ingestions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("store: set ingestion status: %w", err)
	}
	return nil
}

// CompleteIngestion flips an ingestion to completed with a timestamp,
// persisting the final page counts the crawl orchestrator reported.
func (s *RelationalStore) CompleteIngestion(ctx context.Context, id string, completedAt time.Time, pagesProcessed, pagesFailed int) error {
	_, err := s.pool.Exec(ctx, `
UPDATE ingestions SET status = $2, completed_at = $3, pages_processed = $4, pages_failed = $5 WHERE id = $1`,
		id, domain.IngestionCompleted, completedAt, pagesProcessed, pagesFailed)
	if err != nil {
		return fmt.Errorf("store: complete ingestion: %w", err)
	}
	return nil
}

// ContentStats is the per-ingestion page-status breakdown backing the
// (external, unimplemented) polling UI contract. It is pure derived
// data read off the ingestions row rather than a new entity.
type ContentStats struct {
	PagesDiscovered int
	PagesProcessed  int
	PagesFailed     int
	Status          domain.IngestionStatus
}

func (s *RelationalStore) GetIngestionContentStats(ctx context.Context, id string) (*ContentStats, error) {
	row := s.pool.QueryRow(ctx, `
SELECT pages_discovered, pages_processed, pages_failed, status FROM ingestions WHERE id = $1`, id)
	var stats ContentStats
	if err := row.Scan(&stats.PagesDiscovered, &stats.PagesProcessed, &stats.PagesFailed, &stats.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get ingestion content stats: %w", err)
	}
	return &stats, nil
}

// FailIngestion flips an ingestion to failed, recording the error.
func (s *RelationalStore) FailIngestion(ctx context.Context, id string, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE ingestions SET status = $2, error_message = $3 WHERE id = $1`,
		id, domain.IngestionFailed, errMsg)
	if err != nil {
		return fmt.Errorf("store: fail ingestion: %w", err)
	}
	return nil
}

// ResetIngestionForRetry reverts a terminal (failed or completed)
// ingestion back to pending and clears the counters and error left
// over from the previous attempt, so Runner.Run re-crawls it as if it
// were new. A failed ingestion is switched to the auto scraping
// strategy; a completed one keeps the strategy it ran with.
// Vector Ingestor's content-hash dedup means pages that didn't change
// since the previous attempt are not re-embedded.
func (s *RelationalStore) ResetIngestionForRetry(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE ingestions
SET status = $2, pages_processed = 0, pages_failed = 0, error_message = '', completed_at = NULL,
    scraping_strategy = CASE WHEN status = $3 THEN $4 ELSE scraping_strategy END
WHERE id = $1`, id, domain.IngestionPending, domain.IngestionFailed, domain.StrategyAuto)
	if err != nil {
		return fmt.Errorf("store: reset ingestion for retry: %w", err)
	}
	return nil
}

// VectorPurger removes every chunk written for one ingestion. Each
// vector-store backend (PgVectorStore, QdrantStore) implements this
// directly; it is distinct from vectoringest.Store because deleting is
// an administrative operation, not part of the write path.
type VectorPurger interface {
	DeleteByIngestion(ctx context.Context, tenantID, ingestionID string) error
}

// DeleteIngestion purges an ingestion's vectors, then its row. Pages
// cascade via the ingestions->pages foreign key's ON DELETE CASCADE,
// so they are never deleted explicitly. Vectors are purged first so a
// crash between the two steps leaves an orphaned ingestion row (safe
// to retry the delete) rather than orphaned vectors (which would
// silently keep serving stale search results for a "deleted"
// ingestion).
func (s *RelationalStore) DeleteIngestion(ctx context.Context, vectors VectorPurger, tenantID, ingestionID string) error {
	if err := vectors.DeleteByIngestion(ctx, tenantID, ingestionID); err != nil {
		return fmt.Errorf("store: delete ingestion: purge vectors: %w", err)
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM ingestions WHERE id = $1 AND tenant_id = $2`, ingestionID, tenantID)
	if err != nil {
		return fmt.Errorf("store: delete ingestion: %w", err)
	}
	return nil
}

// Session backs a runner.SessionFactory (callers wrap it in a closure);
// the returned session satisfies runner.IngestionStore. pgxpool already hands out
// a connection per query from a shared pool, so the returned session
// wraps the same *RelationalStore rather than opening a dedicated
// connection; Close is a no-op left for interface symmetry with a
// future per-job connection strategy.
func (s *RelationalStore) Session(ctx context.Context) (ingestionSession, error) {
	return ingestionSession{store: s}, nil
}

type ingestionSession struct {
	store *RelationalStore
}

func (i ingestionSession) Get(ctx context.Context, id string) (*domain.Ingestion, error) {
	return i.store.GetIngestion(ctx, id)
}

func (i ingestionSession) SetStatus(ctx context.Context, id string, status domain.IngestionStatus) error {
	return i.store.SetIngestionStatus(ctx, id, status)
}

func (i ingestionSession) Complete(ctx context.Context, id string, completedAt time.Time, pagesProcessed, pagesFailed int) error {
	return i.store.CompleteIngestion(ctx, id, completedAt, pagesProcessed, pagesFailed)
}

func (i ingestionSession) Fail(ctx context.Context, id string, errMsg string) error {
	return i.store.FailIngestion(ctx, id, errMsg)
}

func (i ingestionSession) Close() error { return nil }

// ---- Categories & tags ----

// SeedSystemCategories idempotently inserts the fixed system
// categories (and their subcategories) for tenantID. Safe to call on
// every ingestion start; the categories table's
// UNIQUE(tenant_id, parent_id, name) constraint makes repeat calls a
// no-op via ON CONFLICT DO NOTHING.
func (s *RelationalStore) SeedSystemCategories(ctx context.Context, tenantID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: seed system categories: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, name := range classify.SystemCategoryNames() {
		parentID := slugID(tenantID, name)
		_, err := tx.Exec(ctx, `
INSERT INTO categories (id, tenant_id, parent_id, name, is_system, color, icon)
VALUES ($1, $2, '', $3, TRUE, $4, $5)
ON CONFLICT (tenant_id, parent_id, name) DO NOTHING`,
			parentID, tenantID, name, classify.CategoryColor(name), classify.CategoryIcon(name))
		if err != nil {
			return fmt.Errorf("store: seed system category %q: %w", name, err)
		}

		for _, sub := range classify.Subcategories(name) {
			subID := slugID(tenantID, name+"/"+sub)
			_, err := tx.Exec(ctx, `
INSERT INTO categories (id, tenant_id, parent_id, name, is_system, color, icon)
VALUES ($1, $2, $3, $4, TRUE, $5, $6)
ON CONFLICT (tenant_id, parent_id, name) DO NOTHING`,
				subID, tenantID, parentID, sub, classify.CategoryColor(name), classify.CategoryIcon(name))
			if err != nil {
				return fmt.Errorf("store: seed subcategory %q/%q: %w", name, sub, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: seed system categories: commit: %w", err)
	}
	return nil
}

// Resolve turns a Classification's scored labels into persisted
// category/tag IDs, creating rows on first use and bumping a tag's
// usage_count on every subsequent assignment, then records each as a
// confidence-scored assignment against resourceID (a page or document
// ID). Matches runner.CategoryResolver.
func (s *RelationalStore) Resolve(ctx context.Context, tenantID, resourceID string, c domain.Classification) (categoryIDs, tagIDs []string, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("store: resolve labels: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, label := range c.Categories {
		id, err := resolveCategory(ctx, tx, tenantID, label.Name)
		if err != nil {
			return nil, nil, err
		}
		categoryIDs = append(categoryIDs, id)
	}
	for _, label := range c.Tags {
		id, err := resolveTag(ctx, tx, tenantID, label.Name)
		if err != nil {
			return nil, nil, err
		}
		tagIDs = append(tagIDs, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("store: resolve labels: commit: %w", err)
	}

	if resourceID != "" {
		for i, label := range c.Categories {
			if err := s.AssignCategory(ctx, resourceID, categoryIDs[i], label.Confidence, domain.AssignedByAI); err != nil {
				return nil, nil, err
			}
		}
		for i, label := range c.Tags {
			if err := s.AssignTag(ctx, resourceID, tagIDs[i], label.Confidence, domain.AssignedByAI); err != nil {
				return nil, nil, err
			}
		}
	}

	return categoryIDs, tagIDs, nil
}

func resolveCategory(ctx context.Context, tx pgx.Tx, tenantID, name string) (string, error) {
	id := slugID(tenantID, name)
	_, err := tx.Exec(ctx, `
INSERT INTO categories (id, tenant_id, parent_id, name)
VALUES ($1, $2, '', $3)
ON CONFLICT (tenant_id, parent_id, name) DO NOTHING`, id, tenantID, name)
	if err != nil {
		return "", fmt.Errorf("store: resolve category %q: %w", name, err)
	}
	return id, nil
}

func resolveTag(ctx context.Context, tx pgx.Tx, tenantID, name string) (string, error) {
	id := slugID(tenantID, name)
	_, err := tx.Exec(ctx, `
INSERT INTO tags (id, tenant_id, name, usage_count)
VALUES ($1, $2, $3, 1)
ON CONFLICT (tenant_id, name) DO UPDATE SET usage_count = tags.usage_count + 1`, id, tenantID, name)
	if err != nil {
		return "", fmt.Errorf("store: resolve tag %q: %w", name, err)
	}
	return id, nil
}

// slugID derives a stable, deterministic ID for a tenant-scoped label
// name so repeated classifications of the same label resolve to the
// same row without a read-then-write race.
func slugID(tenantID, name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	return tenantID + ":" + slug
}

// AssignCategory and AssignTag record the provenance and confidence
// of one label assignment to a document or page.
func (s *RelationalStore) AssignCategory(ctx context.Context, documentID, categoryID string, confidence float64, by domain.AssignedBy) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO category_assignments (document_id, category_id, confidence_score, assigned_by)
VALUES ($1, $2, $3, $4)
ON CONFLICT (document_id, category_id) DO UPDATE SET confidence_score = $3, assigned_by = $4`,
		documentID, categoryID, confidence, by)
	if err != nil {
		return fmt.Errorf("store: assign category: %w", err)
	}
	return nil
}

func (s *RelationalStore) AssignTag(ctx context.Context, documentID, tagID string, confidence float64, by domain.AssignedBy) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO tag_assignments (document_id, tag_id, confidence_score, assigned_by)
VALUES ($1, $2, $3, $4)
ON CONFLICT (document_id, tag_id) DO UPDATE SET confidence_score = $3, assigned_by = $4`,
		documentID, tagID, confidence, by)
	if err != nil {
		return fmt.Errorf("store: assign tag: %w", err)
	}
	return nil
}

// ---- Document lifecycle ----
//
// Mirrors the ingestion lifecycle above, for the uploaded-file path
// that shares the Background Runner, Classifier, and Vector Ingestor
// with website ingestion.

// CreateDocument inserts a new pending document row.
func (s *RelationalStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	now := time.Now()
	_, err := s.pool.Exec(ctx, `
INSERT INTO documents (id, tenant_id, filename, original_filename, storage_path, mime_type, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		doc.ID, doc.TenantID, doc.Filename, doc.OriginalFilename, doc.StoragePath, doc.MimeType, domain.DocumentPending, now)
	if err != nil {
		return fmt.Errorf("store: create document: %w", err)
	}
	doc.Status = domain.DocumentPending
	doc.CreatedAt, doc.UpdatedAt = now, now
	return nil
}

// GetDocument loads one document row by ID.
func (s *RelationalStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, tenant_id, filename, original_filename, storage_path, mime_type, status, error_message, created_at, updated_at
FROM documents WHERE id = $1`, id)

	var doc domain.Document
	if err := row.Scan(&doc.ID, &doc.TenantID, &doc.Filename, &doc.OriginalFilename, &doc.StoragePath,
		&doc.MimeType, &doc.Status, &doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	return &doc, nil
}

// SetDocumentStatus flips a document's status column.
func (s *RelationalStore) SetDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE documents SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("store: set document status: %w", err)
	}
	return nil
}

// CompleteDocument flips a document to completed.
func (s *RelationalStore) CompleteDocument(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE documents SET status = $2, updated_at = NOW() WHERE id = $1`, id, domain.DocumentCompleted)
	if err != nil {
		return fmt.Errorf("store: complete document: %w", err)
	}
	return nil
}

// FailDocument flips a document to failed, recording the error.
func (s *RelationalStore) FailDocument(ctx context.Context, id string, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE documents SET status = $2, error_message = $3, updated_at = NOW() WHERE id = $1`,
		id, domain.DocumentFailed, errMsg)
	if err != nil {
		return fmt.Errorf("store: fail document: %w", err)
	}
	return nil
}

// DocumentSession backs a runner.DocumentSessionFactory the same way;
// the returned session satisfies runner.DocumentStore. Like Session, it
// wraps the shared pool rather than a dedicated connection.
func (s *RelationalStore) DocumentSession(ctx context.Context) (documentSession, error) {
	return documentSession{store: s}, nil
}

type documentSession struct {
	store *RelationalStore
}

func (d documentSession) Get(ctx context.Context, id string) (*domain.Document, error) {
	return d.store.GetDocument(ctx, id)
}

func (d documentSession) SetStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	return d.store.SetDocumentStatus(ctx, id, status)
}

func (d documentSession) Complete(ctx context.Context, id string) error {
	return d.store.CompleteDocument(ctx, id)
}

func (d documentSession) Fail(ctx context.Context, id string, errMsg string) error {
	return d.store.FailDocument(ctx, id, errMsg)
}

func (d documentSession) Close() error { return nil }
