// Command ingestord runs one website ingestion end to end: it wires
// the Limit Gate, Crawl Orchestrator, Classifier, Vector Ingestor, and
// Usage Publisher into a Background Runner and drives it for a single
// tenant/URL pair. The REST/WebSocket surface that would normally
// enqueue this is out of scope for this module; this binary is the
// operational entrypoint in its place.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/webingest/core/internal/billing"
	"github.com/webingest/core/internal/classify"
	"github.com/webingest/core/internal/config"
	"github.com/webingest/core/internal/crawl"
	"github.com/webingest/core/internal/domain"
	"github.com/webingest/core/internal/embedding"
	"github.com/webingest/core/internal/logging"
	"github.com/webingest/core/internal/runner"
	"github.com/webingest/core/internal/store"
	"github.com/webingest/core/internal/strategy"
	"github.com/webingest/core/internal/usage"
	"github.com/webingest/core/internal/vectoringest"
	"github.com/webingest/core/internal/web/browser"
	"github.com/webingest/core/internal/web/fetch"
)

// defaultEmbeddingDimension matches the default embeddings.model,
// text-embedding-3-small; override via EMBEDDING_DIMENSION if a
// different model is configured.
const defaultEmbeddingDimension = 1536

func main() {
	log.SetFlags(0)

	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		tenantID   = flag.String("tenant", "", "tenant ID to ingest for")
		baseURL    = flag.String("url", "", "website base URL to crawl")
		strat      = flag.String("strategy", "", "scraping strategy override: auto|requests_first|playwright_only|requests_only")
		authToken  = flag.String("token", "", "bearer token to present to the billing service")
		retryID    = flag.String("retry", "", "ingestion ID to reset and re-run instead of starting a new crawl")
		deleteID   = flag.String("delete", "", "ingestion ID to purge (vectors + row, cascading to its pages) instead of crawling")
	)
	flag.Parse()

	if *tenantID == "" {
		log.Fatal("usage: ingestord -tenant <id> -url <https://...> [-strategy auto] [-token ...] [-retry <ingestion-id>] [-delete <ingestion-id>]")
	}
	if *deleteID == "" && *retryID == "" && *baseURL == "" {
		log.Fatal("usage: ingestord -tenant <id> -url <https://...> [-strategy auto] [-token ...] [-retry <ingestion-id>] [-delete <ingestion-id>]")
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
		logging.Log.Warn("ingestord: shutdown signal received, letting in-flight ingestion finish")
		cancel()
	}()

	relational, err := store.NewRelationalStore(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("connect relational store: %v", err)
	}
	defer relational.Close()
	if err := relational.InitSchema(ctx); err != nil {
		log.Fatalf("init relational schema: %v", err)
	}

	vectorStore, closeVectorStore, err := store.NewVectorStoreFromConfig(ctx, cfg, embeddingDimension())
	if err != nil {
		log.Fatalf("connect vector store: %v", err)
	}
	defer closeVectorStore()

	if *deleteID != "" {
		purger, ok := vectorStore.(store.VectorPurger)
		if !ok {
			log.Fatalf("vector store backend does not support deletion")
		}
		if err := relational.DeleteIngestion(ctx, purger, *tenantID, *deleteID); err != nil {
			log.Fatalf("delete ingestion: %v", err)
		}
		logging.WithIngestion(*tenantID, *deleteID).Info("ingestord: ingestion deleted")
		return
	}

	gate := billing.New(cfg.Billing.ServiceURL)
	decision, err := gate.CanIngestWebsite(ctx, *tenantID, *authToken)
	if err != nil {
		log.Fatalf("limit gate: %v", err)
	}
	if !decision.Allowed {
		log.Fatalf("ingestion rejected by limit gate: %s", decision.Reason)
	}
	if decision.Reason != "" {
		logging.Log.WithField("reason", decision.Reason).Warn("ingestord: limit gate degraded, proceeding")
	}

	if err := relational.SeedSystemCategories(ctx, *tenantID); err != nil {
		log.Fatalf("seed system categories: %v", err)
	}

	var ing *domain.Ingestion
	if *retryID != "" {
		if err := relational.ResetIngestionForRetry(ctx, *retryID); err != nil {
			log.Fatalf("reset ingestion for retry: %v", err)
		}
		ing, err = relational.GetIngestion(ctx, *retryID)
		if err != nil {
			log.Fatalf("load ingestion to retry: %v", err)
		}
	} else {
		scrapingStrategy := domain.ScrapingStrategy(cfg.Scraping.Strategy)
		if *strat != "" {
			scrapingStrategy = domain.ScrapingStrategy(*strat)
		}
		ing = &domain.Ingestion{
			ID:               uuid.NewString(),
			TenantID:         *tenantID,
			BaseURL:          *baseURL,
			Status:           domain.IngestionPending,
			ScrapingStrategy: scrapingStrategy,
			StartedAt:        time.Now(),
		}
		if err := relational.CreateIngestion(ctx, ing); err != nil {
			log.Fatalf("create ingestion: %v", err)
		}
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
	newCrawler := func(ing *domain.Ingestion, sink crawl.Sink, progress crawl.ProgressWriter) *crawl.Orchestrator {
		fetcher := fetch.NewFetcher(fetch.WithTimeout(cfg.Scraping.RequestsTimeout))
		browserFetcher := browser.NewFetcher(cfg.Scraping.PlaywrightTimeout)
		selector := strategy.New(ing.ScrapingStrategy, cfg.Scraping.EnableFallback, fetcher, browserFetcher)
		return crawl.New(selector, sink, progress,
			crawl.WithMaxPages(cfg.Scraping.MaxPagesPerSite),
			crawl.WithDelay(cfg.Scraping.Delay))
	}
	secrets := func(ctx context.Context) (string, error) {
		if cfg.Embeddings.APIKey == "" {
			return "", fmt.Errorf("EMBEDDINGS_API_KEY not configured")
		}
		return cfg.Embeddings.APIKey, nil
	}

	r := runner.New(sessions, newCrawler, classifier, relational, vectorIngestor, usagePublisher, secrets, documents)

	logging.WithIngestion(*tenantID, ing.ID).Info("ingestord: starting ingestion")
	r.Run(ctx, ing.ID)
	logging.WithIngestion(*tenantID, ing.ID).Info("ingestord: ingestion finished")
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
