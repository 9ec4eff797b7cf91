// Package crawl implements the breadth-first crawl orchestrator: it
// walks same-domain links from a base URL, delegating the actual page
// fetch/clean decision to a strategy.Selector and streaming each
// successfully scraped page to a caller-supplied sink.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/webingest/core/internal/domain"
	"github.com/webingest/core/internal/web/links"
)

// DefaultMaxPagesPerSite is the crawl page cap when none is configured.
const DefaultMaxPagesPerSite = 100

// checkpointEvery is how often (in pages attempted) progress is
// persisted back to the ingestion row, matching the 5-page cadence the
// original UI polling relied on.
const checkpointEvery = 5

// PageFetcher resolves one URL to cleaned content, selecting between
// fetch strategies and maintaining its own domain preference cache.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*domain.CleanedDoc, error)
}

// Sink receives each page the crawl visits, successful or not. A
// non-nil error from OnPage aborts the crawl.
type Sink interface {
	OnPage(ctx context.Context, page *domain.Page, doc *domain.CleanedDoc) error
}

// ProgressWriter checkpoints ingestion counters; Checkpoint is called
// every checkpointEvery pages and once more at the end of the crawl.
type ProgressWriter interface {
	Checkpoint(ctx context.Context, ingestionID string, discovered, processed, failed int) error
}

// Orchestrator runs one crawl at a time; it is not safe for concurrent
// use by multiple goroutines against the same instance.
type Orchestrator struct {
	fetcher     PageFetcher
	sink        Sink
	progress    ProgressWriter
	maxPages    int
	delay       time.Duration
	limiter     *rate.Limiter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxPages overrides DefaultMaxPagesPerSite.
func WithMaxPages(n int) Option { return func(o *Orchestrator) { o.maxPages = n } }

// WithDelay sets the pacing delay applied between page fetches.
func WithDelay(d time.Duration) Option { return func(o *Orchestrator) { o.delay = d } }

// New builds an Orchestrator. fetcher resolves each URL, sink receives
// results, progress persists crawl checkpoints.
func New(fetcher PageFetcher, sink Sink, progress ProgressWriter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:  fetcher,
		sink:     sink,
		progress: progress,
		maxPages: DefaultMaxPagesPerSite,
		delay:    500 * time.Millisecond,
	}
	for _, fn := range opts {
		fn(o)
	}
	o.limiter = rate.NewLimiter(rate.Every(o.delay), 1)
	return o
}

// Crawl performs a BFS walk starting at ing.BaseURL, visiting at most
// maxPages pages, never leaving ing.BaseURL's host, and checkpointing
// progress every 5 pages. It returns the final page counts; the caller
// is responsible for flipping ing.Status to completed/failed.
func (o *Orchestrator) Crawl(ctx context.Context, ing *domain.Ingestion) (processed, failed int, err error) {
	if _, err := hostOf(ing.BaseURL); err != nil {
		return 0, 0, fmt.Errorf("crawl: invalid base url %s: %w", ing.BaseURL, err)
	}

	visited := make(map[string]bool)
	queue := []string{ing.BaseURL}
	pageNumber := 0

	for len(queue) > 0 && processed < o.maxPages {
		if err := ctx.Err(); err != nil {
			return processed, failed, err
		}

		current := queue[0]
		queue = queue[1:]
		pageNumber++

		if visited[current] {
			continue
		}
		visited[current] = true

		page := &domain.Page{
			TenantID:    ing.TenantID,
			IngestionID: ing.ID,
			URL:         current,
			Status:      domain.PageProcessing,
		}

		doc, fetchErr := o.fetcher.Fetch(ctx, current)
		if fetchErr != nil {
			page.Status = domain.PageFailed
			page.ErrorMessage = fetchErr.Error()
			failed++
			if sinkErr := o.sink.OnPage(ctx, page, nil); sinkErr != nil {
				return processed, failed, sinkErr
			}
		} else {
			now := time.Now()
			page.Title = doc.Title
			page.ContentHash = doc.ContentHash
			page.Status = domain.PageCompleted
			page.ScrapedAt = &now
			processed++

			if sinkErr := o.sink.OnPage(ctx, page, doc); sinkErr != nil {
				return processed, failed, sinkErr
			}

			newLinks, linkErr := links.Extract(doc.RawHTML, current)
			if linkErr == nil {
				for _, l := range newLinks {
					if !visited[l] && !queueContains(queue, l) {
						queue = append(queue, l)
					}
				}
			}
		}

		if pageNumber%checkpointEvery == 0 {
			discovered := len(visited) + len(queue)
			if err := o.progress.Checkpoint(ctx, ing.ID, discovered, processed, failed); err != nil {
				return processed, failed, err
			}
		}

		if err := o.limiter.Wait(ctx); err != nil {
			return processed, failed, err
		}
	}

	discovered := len(visited) + len(queue)
	if err := o.progress.Checkpoint(ctx, ing.ID, discovered, processed, failed); err != nil {
		return processed, failed, err
	}

	return processed, failed, nil
}

func queueContains(q []string, target string) bool {
	for _, u := range q {
		if u == target {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %s", rawURL)
	}
	return u.Host, nil
}
