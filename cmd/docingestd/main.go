// Command docingestd runs one document upload end to end: it stores
// the file in the object store, extracts its text, and drives it
// through the same Background Runner, Classifier, and Vector Ingestor
// the website path (cmd/ingestord) uses. The upload HTTP surface that
// would normally receive the file and enqueue this is out of scope
// for this module; this binary is the operational entrypoint in its
// place.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"github.com/webingest/core/internal/billing"
	"github.com/webingest/core/internal/classify"
	"github.com/webingest/core/internal/config"
	"github.com/webingest/core/internal/docingest"
	"github.com/webingest/core/internal/domain"
	"github.com/webingest/core/internal/embedding"
	"github.com/webingest/core/internal/logging"
	"github.com/webingest/core/internal/objectstore"
	"github.com/webingest/core/internal/runner"
	"github.com/webingest/core/internal/store"
	"github.com/webingest/core/internal/usage"
	"github.com/webingest/core/internal/vectoringest"
)

const defaultEmbeddingDimension = 1536

func main() {
	log.SetFlags(0)

	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		tenantID   = flag.String("tenant", "", "tenant ID the document belongs to")
		filePath   = flag.String("file", "", "path to the file to upload and ingest")
		mimeType   = flag.String("mime", "", "mime type override; defaults to the file extension's type")
		authToken  = flag.String("token", "", "bearer token to present to the billing service")
	)
	flag.Parse()

	if *tenantID == "" || *filePath == "" {
		log.Fatal("usage: docingestd -tenant <id> -file <path> [-mime text/html] [-token ...]")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Configure(os.Getenv("LOG_FILE"), cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		logging.Log.Warn("docingestd: shutdown signal received, letting in-flight document finish")
		cancel()
	}()

	gate := billing.New(cfg.Billing.ServiceURL)
	decision, err := gate.Check(ctx, billing.ResourceDocuments, *tenantID, *authToken)
	if err != nil {
		log.Fatalf("limit gate: %v", err)
	}
	if !decision.Allowed {
		log.Fatalf("document rejected by limit gate: %s", decision.Reason)
	}
	if decision.Reason != "" {
		logging.Log.WithField("reason", decision.Reason).Warn("docingestd: limit gate degraded, proceeding")
	}

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("read file: %v", err)
	}

	kind := *mimeType
	if kind == "" {
		kind = mime.TypeByExtension(filepath.Ext(*filePath))
	}
	if kind == "" {
		kind = "text/plain"
	}

	relational, err := store.NewRelationalStore(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("connect relational store: %v", err)
	}
	defer relational.Close()
	if err := relational.InitSchema(ctx); err != nil {
		log.Fatalf("init relational schema: %v", err)
	}
	if err := relational.SeedSystemCategories(ctx, *tenantID); err != nil {
		log.Fatalf("seed system categories: %v", err)
	}

	objects, err := newObjectStore(ctx, cfg)
	if err != nil {
		log.Fatalf("connect object store: %v", err)
	}

	vectorStore, closeVectorStore, err := store.NewVectorStoreFromConfig(ctx, cfg, embeddingDimension())
	if err != nil {
		log.Fatalf("connect vector store: %v", err)
	}
	defer closeVectorStore()

	filename := filepath.Base(*filePath)
	doc := &domain.Document{
		ID:               uuid.NewString(),
		TenantID:         *tenantID,
		Filename:         filename,
		OriginalFilename: filename,
		StoragePath:      fmt.Sprintf("tenant_%s/documents/%s/%s", *tenantID, uuid.NewString(), filename),
		MimeType:         kind,
	}
	if err := relational.CreateDocument(ctx, doc); err != nil {
		log.Fatalf("create document: %v", err)
	}

	if _, err := objects.Put(ctx, doc.StoragePath, bytes.NewReader(raw), objectstore.PutOptions{ContentType: kind}); err != nil {
		log.Fatalf("store uploaded document: %v", err)
	}

	text, err := docingest.ExtractText(kind, raw)
	if err != nil {
		if failErr := relational.FailDocument(ctx, doc.ID, err.Error()); failErr != nil {
			logging.WithIngestion(*tenantID, "").WithError(failErr).Error("docingestd: failed to record extraction failure")
		}
		log.Fatalf("extract text: %v", err)
	}

	classifier := classify.New(cfg.Models.OpenAIAPIKey, cfg.Models.AnthropicAPIKey)
	embedClient := embedding.New(cfg.Embeddings, nil)
	vectorIngestor := vectoringest.New(embedClient, vectorStore, uuid.NewString)
	usagePublisher := usage.New(cfg.Broker.Brokers)
	defer usagePublisher.Close()

	sessions := func(ctx context.Context) (runner.IngestionStore, error) {
		return relational.Session(ctx)
	}
	documents := func(ctx context.Context) (runner.DocumentStore, error) {
		return relational.DocumentSession(ctx)
	}
	secrets := func(ctx context.Context) (string, error) {
		if cfg.Embeddings.APIKey == "" {
			return "", fmt.Errorf("EMBEDDINGS_API_KEY not configured")
		}
		return cfg.Embeddings.APIKey, nil
	}

	// This binary only ever calls RunDocument, never Run, so the crawl
	// path's CrawlerFactory collaborator is left nil rather than wired
	// to a fetcher/browser/strategy stack this command never uses.
	var newCrawler runner.CrawlerFactory

	r := runner.New(sessions, newCrawler, classifier, relational, vectorIngestor, usagePublisher, secrets, documents)

	logging.WithIngestion(*tenantID, "").WithField("document_id", doc.ID).Info("docingestd: starting document ingestion")
	r.RunDocument(ctx, doc.ID, *tenantID, text, int64(len(raw)))
	logging.WithIngestion(*tenantID, "").WithField("document_id", doc.ID).Info("docingestd: document ingestion finished")
}

// newObjectStore selects the S3/MinIO or in-memory backend. The
// in-memory backend only exists for the case cfg.ObjectStore.Bucket
// is left unset in a local/dry-run config.
func newObjectStore(ctx context.Context, cfg *config.Config) (objectstore.ObjectStore, error) {
	if cfg.ObjectStore.Bucket == "" {
		return objectstore.NewMemoryStore(), nil
	}
	return objectstore.NewS3Store(ctx, cfg.ObjectStore)
}

// embeddingDimension reads the EMBEDDING_DIMENSION override, falling
// back to defaultEmbeddingDimension.
func embeddingDimension() int {
	if v := os.Getenv("EMBEDDING_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultEmbeddingDimension
}
