// Package runner implements the Background Runner: the long-running
// half of a website ingestion, as opposed to the HTTP request thread
// that only validates, checks the Limit Gate, and creates the
// Ingestion row before returning.
//
// Each call to Run owns its own store session and its own goroutine;
// there is no coordination between concurrently running ingestions.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/webingest/core/internal/chunker"
	"github.com/webingest/core/internal/classify"
	"github.com/webingest/core/internal/crawl"
	"github.com/webingest/core/internal/domain"
	"github.com/webingest/core/internal/logging"
	"github.com/webingest/core/internal/vectoringest"
)

// IngestionStore is the per-job session surface onto the Ingestion
// row. A fresh session is opened per Run call (and once more for the
// final completed transition) so a slow or wedged job never pins a
// connection shared with the HTTP request path.
type IngestionStore interface {
	Get(ctx context.Context, id string) (*domain.Ingestion, error)
	SetStatus(ctx context.Context, id string, status domain.IngestionStatus) error
	Complete(ctx context.Context, id string, completedAt time.Time, pagesProcessed, pagesFailed int) error
	Fail(ctx context.Context, id string, errMsg string) error
	Close() error
}

// SessionFactory opens a fresh IngestionStore session. Called once at
// the start of Run and again just before the completed transition, so
// that transition is never lost because the original session's
// connection went bad partway through a long crawl.
type SessionFactory func(ctx context.Context) (IngestionStore, error)

// PageClassifier classifies one page or document's cleaned text.
type PageClassifier interface {
	Classify(ctx context.Context, content string, kind classify.SourceKind, customCategories []string) domain.Classification
}

// DocumentStore is the per-job session surface onto the Document row,
// the upload-path counterpart to IngestionStore.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*domain.Document, error)
	SetStatus(ctx context.Context, id string, status domain.DocumentStatus) error
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, errMsg string) error
	Close() error
}

// DocumentSessionFactory opens a fresh DocumentStore session, mirroring
// SessionFactory for the upload path.
type DocumentSessionFactory func(ctx context.Context) (DocumentStore, error)

// CategoryResolver turns a Classification's scored label names into
// persisted category/tag IDs, creating rows as needed, and records
// each as a confidence-scored assignment against resourceID (a page
// or document ID). This is the step that attaches category_ids/tag_ids
// onto a page or document's metadata.
type CategoryResolver interface {
	Resolve(ctx context.Context, tenantID, resourceID string, c domain.Classification) (categoryIDs, tagIDs []string, err error)
}

// VectorIngestor is the vectoringest.Ingestor surface the runner needs.
type VectorIngestor interface {
	Ingest(ctx context.Context, tenantID, documentID, ingestionID string, inputs []vectoringest.Input) (int, error)
}

// UsagePublisher is the usage.Publisher surface the runner needs.
type UsagePublisher interface {
	PublishWebsiteAdded(ctx context.Context, tenantID, ingestionID, url string, pagesScraped int) error
	PublishDocumentAdded(ctx context.Context, tenantID, documentID, filename string, sizeBytes int64) error
}

// CrawlerFactory builds a fresh crawl.Orchestrator wired to sink and
// progress, scoped to one ingestion's strategy and tuning.
type CrawlerFactory func(ing *domain.Ingestion, sink crawl.Sink, progress crawl.ProgressWriter) *crawl.Orchestrator

// SecretLoader resolves the embedding provider key for one job. Run and
// RunDocument call it before any other work and fail the job if it
// returns an error. The returned key is not kept or passed on; the
// Vector Ingestor embeds with the client it was built with.
type SecretLoader func(ctx context.Context) (embeddingAPIKey string, err error)

// Runner executes one ingestion or document end to end.
type Runner struct {
	sessions   SessionFactory
	newCrawler CrawlerFactory
	classifier PageClassifier
	categories CategoryResolver
	vectors    VectorIngestor
	usage      UsagePublisher
	secrets    SecretLoader
	documents  DocumentSessionFactory
}

// New builds a Runner from its collaborators. All arguments are
// required; the zero value is not usable.
func New(sessions SessionFactory, newCrawler CrawlerFactory, classifier PageClassifier, categories CategoryResolver, vectors VectorIngestor, usage UsagePublisher, secrets SecretLoader, documents DocumentSessionFactory) *Runner {
	return &Runner{
		sessions:   sessions,
		newCrawler: newCrawler,
		classifier: classifier,
		categories: categories,
		vectors:    vectors,
		usage:      usage,
		secrets:    secrets,
		documents:  documents,
	}
}

// Run executes one ingestion by ID. It is meant to be launched as its
// own goroutine per job; it blocks for the duration of the crawl.
func (r *Runner) Run(ctx context.Context, ingestionID string) {
	log := logging.Log.WithField("ingestion_id", ingestionID)

	session, err := r.sessions(ctx)
	if err != nil {
		log.WithError(err).Error("background runner: failed to open store session")
		return
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("background runner: error closing store session")
		}
	}()

	if _, err := r.secrets(ctx); err != nil {
		log.WithError(err).Error("background runner: missing embedding provider secret, failing ingestion")
		if failErr := session.Fail(ctx, ingestionID, fmt.Sprintf("missing required secret: %v", err)); failErr != nil {
			log.WithError(failErr).Error("background runner: failed to record secret-load failure")
		}
		return
	}

	ing, err := session.Get(ctx, ingestionID)
	if err != nil {
		log.WithError(err).Error("background runner: failed to load ingestion row")
		return
	}
	log = logging.WithIngestion(ing.TenantID, ingestionID)

	if err := session.SetStatus(ctx, ingestionID, domain.IngestionInProgress); err != nil {
		log.WithError(err).Error("background runner: failed to set in_progress")
		return
	}
	ing.Status = domain.IngestionInProgress

	if err := r.runIngestion(ctx, ing, session); err != nil {
		log.WithError(err).Error("background runner: ingestion failed")
		if failErr := session.Fail(ctx, ingestionID, err.Error()); failErr != nil {
			log.WithError(failErr).Error("background runner: failed to record ingestion failure")
		}
		return
	}

	finalSession, err := r.sessions(ctx)
	if err != nil {
		log.WithError(err).Error("background runner: failed to open completion session")
		return
	}
	defer func() {
		if closeErr := finalSession.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("background runner: error closing completion session")
		}
	}()
	if err := finalSession.Complete(ctx, ingestionID, time.Now(), ing.PagesProcessed, ing.PagesFailed); err != nil {
		log.WithError(err).Error("background runner: failed to record completion")
	}
}

// RunDocument executes one uploaded document end to end: classify the
// already-extracted text, resolve categories/tags, chunk and embed it,
// and publish usage. It shares the Classifier, CategoryResolver, and
// Vector Ingestor collaborators with Run, the website path; it has no
// crawl step, so there is no CrawlerFactory/ProgressWriter equivalent.
func (r *Runner) RunDocument(ctx context.Context, documentID, tenantID, content string, sizeBytes int64) {
	log := logging.WithIngestion(tenantID, "").WithField("document_id", documentID)

	session, err := r.documents(ctx)
	if err != nil {
		log.WithError(err).Error("background runner: failed to open document session")
		return
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("background runner: error closing document session")
		}
	}()

	if _, err := r.secrets(ctx); err != nil {
		log.WithError(err).Error("background runner: missing embedding provider secret, failing document")
		if failErr := session.Fail(ctx, documentID, fmt.Sprintf("missing required secret: %v", err)); failErr != nil {
			log.WithError(failErr).Error("background runner: failed to record secret-load failure")
		}
		return
	}

	doc, err := session.Get(ctx, documentID)
	if err != nil {
		log.WithError(err).Error("background runner: failed to load document row")
		return
	}

	if err := session.SetStatus(ctx, documentID, domain.DocumentProcessing); err != nil {
		log.WithError(err).Error("background runner: failed to set processing")
		return
	}

	if err := r.ingestDocument(ctx, doc, content); err != nil {
		log.WithError(err).Error("background runner: document ingestion failed")
		if failErr := session.Fail(ctx, documentID, err.Error()); failErr != nil {
			log.WithError(failErr).Error("background runner: failed to record document failure")
		}
		return
	}

	if err := r.usage.PublishDocumentAdded(ctx, tenantID, documentID, doc.Filename, sizeBytes); err != nil {
		log.WithError(err).Warn("background runner: usage publish failed")
	}

	if err := session.Complete(ctx, documentID); err != nil {
		log.WithError(err).Error("background runner: failed to record document completion")
	}
}

func (r *Runner) ingestDocument(ctx context.Context, doc *domain.Document, content string) error {
	classification := r.classifier.Classify(ctx, content, classify.SourceDocument, nil)
	categoryIDs, tagIDs, err := r.categories.Resolve(ctx, doc.TenantID, doc.ID, classification)
	if err != nil {
		logging.WithIngestion(doc.TenantID, "").WithError(err).WithField("document_id", doc.ID).
			Warn("background runner: category resolution failed")
	}

	now := time.Now()
	var inputs []vectoringest.Input
	for _, text := range chunker.Split(content) {
		inputs = append(inputs, vectoringest.Input{
			Content:     text,
			SourceType:  "document",
			SourceName:  doc.OriginalFilename,
			ContentType: doc.MimeType,
			CategoryIDs: categoryIDs,
			TagIDs:      tagIDs,
			UploadDate:  &now,
		})
	}
	if len(inputs) == 0 {
		return nil
	}

	if _, err := r.vectors.Ingest(ctx, doc.TenantID, doc.ID, "", inputs); err != nil {
		return fmt.Errorf("vector ingest: %w", err)
	}
	return nil
}

// runIngestion drives the crawl, classification, vector ingest, and
// usage publish steps. Any returned error leaves the ingestion marked
// failed by the caller.
func (r *Runner) runIngestion(ctx context.Context, ing *domain.Ingestion, session IngestionStore) error {
	sink := &collectingSink{
		ctx:        ctx,
		tenantID:   ing.TenantID,
		classifier: r.classifier,
		categories: r.categories,
	}
	orchestrator := r.newCrawler(ing, sink, progressAdapter{session: session, ingestionID: ing.ID})

	processed, failed, err := orchestrator.Crawl(ctx, ing)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	ing.PagesProcessed = processed
	ing.PagesFailed = failed

	if len(sink.inputs) > 0 {
		if _, err := r.vectors.Ingest(ctx, ing.TenantID, "", ing.ID, sink.inputs); err != nil {
			return fmt.Errorf("vector ingest: %w", err)
		}
	}

	// Fire-and-forget: a usage publish failure must never fail an
	// otherwise-successful ingestion (spec step 7).
	if err := r.usage.PublishWebsiteAdded(ctx, ing.TenantID, ing.ID, ing.BaseURL, processed); err != nil {
		logging.WithIngestion(ing.TenantID, ing.ID).WithError(err).Warn("background runner: usage publish failed")
	}

	return nil
}

// collectingSink classifies each successfully scraped page as the
// crawl yields it and accumulates its chunks for a single, final
// Vector Ingestor call over the whole ingestion.
type collectingSink struct {
	ctx        context.Context
	tenantID   string
	classifier PageClassifier
	categories CategoryResolver
	inputs     []vectoringest.Input
}

func (s *collectingSink) OnPage(ctx context.Context, page *domain.Page, doc *domain.CleanedDoc) error {
	if doc == nil {
		return nil
	}

	classification := s.classifier.Classify(ctx, doc.Text, classify.SourceWebPage, nil)
	categoryIDs, tagIDs, err := s.categories.Resolve(ctx, s.tenantID, page.ID, classification)
	if err != nil {
		// A labeling failure shouldn't sink the whole crawl; the page
		// still gets indexed, just without category/tag metadata.
		logging.WithIngestion(s.tenantID, "").WithError(err).WithField("url", page.URL).Warn("background runner: category resolution failed")
	}

	now := time.Now()
	for _, text := range chunker.Split(doc.Text) {
		s.inputs = append(s.inputs, vectoringest.Input{
			Content:     text,
			SourceType:  "website",
			SourceName:  doc.URL,
			ContentType: "webpage",
			CategoryIDs: categoryIDs,
			TagIDs:      tagIDs,
			ScrapedDate: &now,
		})
	}
	return nil
}

// progressAdapter satisfies crawl.ProgressWriter against an
// IngestionStore, which only exposes the status/completion surface
// the rest of the runner needs directly.
type progressAdapter struct {
	session     IngestionStore
	ingestionID string
}

func (p progressAdapter) Checkpoint(ctx context.Context, ingestionID string, discovered, processed, failed int) error {
	// Checkpointing progress counters is a best-effort UI affordance,
	// not part of the terminal state machine; IngestionStore only
	// needs to expose the coarse status transitions the runner itself
	// depends on, so this is a no-op until the store grows a counters
	// update method.
	return nil
}
