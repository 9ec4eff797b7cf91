// Package strategy decides, for each URL, whether to use the fast HTTP
// fetcher or the headless browser, and remembers which one worked for a
// domain so later pages in the same crawl skip the losing attempt.
package strategy

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/webingest/core/internal/domain"
	"github.com/webingest/core/internal/web/browser"
	"github.com/webingest/core/internal/web/clean"
	"github.com/webingest/core/internal/web/fetch"
)

// contentLengthThreshold is the minimum cleaned-text length AUTO
// requires from the fast fetcher before it trusts it going forward.
const contentLengthThreshold = 500

const (
	methodRequests  = "requests"
	methodPlaywright = "playwright"
)

// Fetcher performs the fast HTTP fetch.
type Fetcher interface {
	FetchHTML(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// BrowserFetcher renders a page in a headless browser.
type BrowserFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*browser.Result, error)
}

// Selector picks a fetch method per URL according to a ScrapingStrategy
// and a per-run domain preference cache. A Selector is scoped to one
// crawl and must not be shared across concurrent ingestions.
type Selector struct {
	strategy       domain.ScrapingStrategy
	enableFallback bool
	fetcher        Fetcher
	browserFetcher BrowserFetcher

	mu    sync.Mutex
	prefs map[string]string // domain -> "requests" | "playwright"
}

// New builds a Selector. enableFallback only affects REQUESTS_FIRST;
// AUTO always falls back (it's how it builds its cache) and the *_ONLY
// strategies never do.
func New(s domain.ScrapingStrategy, enableFallback bool, f Fetcher, b BrowserFetcher) *Selector {
	return &Selector{
		strategy:       s,
		enableFallback: enableFallback,
		fetcher:        f,
		browserFetcher: b,
		prefs:          make(map[string]string),
	}
}

// Fetch resolves rawURL according to the selector's strategy and
// returns the cleaned document.
func (s *Selector) Fetch(ctx context.Context, rawURL string) (*domain.CleanedDoc, error) {
	switch s.strategy {
	case domain.StrategyRequestsFirst:
		return s.fetchRequestsFirst(ctx, rawURL)
	case domain.StrategyPlaywrightOnly:
		return s.fetchPlaywright(ctx, rawURL)
	case domain.StrategyRequestsOnly:
		return s.fetchRequests(ctx, rawURL)
	case domain.StrategyAuto:
		return s.fetchAuto(ctx, rawURL)
	default:
		return s.fetchPlaywright(ctx, rawURL)
	}
}

func (s *Selector) fetchAuto(ctx context.Context, rawURL string) (*domain.CleanedDoc, error) {
	dom := hostOf(rawURL)

	s.mu.Lock()
	cached, ok := s.prefs[dom]
	s.mu.Unlock()

	if ok {
		if cached == methodPlaywright {
			return s.fetchPlaywright(ctx, rawURL)
		}
		doc, err := s.fetchRequests(ctx, rawURL)
		if err == nil {
			return doc, nil
		}
		// Cached method failed for this page; fall through to playwright
		// without changing the cached preference.
		return s.fetchPlaywright(ctx, rawURL)
	}

	requestsDoc, requestsErr := s.fetchRequests(ctx, rawURL)
	if requestsErr == nil && len(requestsDoc.Text) >= contentLengthThreshold {
		s.mu.Lock()
		s.prefs[dom] = methodRequests
		s.mu.Unlock()
		return requestsDoc, nil
	}

	browserDoc, browserErr := s.fetchPlaywright(ctx, rawURL)
	if browserErr != nil {
		return nil, browserErr
	}
	if len(browserDoc.Text) < contentLengthThreshold {
		// Neither fetcher produced enough content to trust; record this
		// page as failed rather than caching either method for the
		// domain.
		return nil, fmt.Errorf("strategy: auto %s: both fetchers returned below %d chars", rawURL, contentLengthThreshold)
	}
	s.mu.Lock()
	s.prefs[dom] = methodPlaywright
	s.mu.Unlock()
	return browserDoc, nil
}

func (s *Selector) fetchRequestsFirst(ctx context.Context, rawURL string) (*domain.CleanedDoc, error) {
	doc, err := s.fetchRequests(ctx, rawURL)
	if err == nil {
		return doc, nil
	}
	if !s.enableFallback {
		return nil, err
	}
	return s.fetchPlaywright(ctx, rawURL)
}

func (s *Selector) fetchRequests(ctx context.Context, rawURL string) (*domain.CleanedDoc, error) {
	res, err := s.fetcher.FetchHTML(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("strategy: requests fetch %s: %w", rawURL, err)
	}
	cleaned, err := clean.HTML(res.Body)
	if err != nil {
		return nil, fmt.Errorf("strategy: requests clean %s: %w", rawURL, err)
	}
	return &domain.CleanedDoc{
		URL:         rawURL,
		Title:       cleaned.Title,
		Text:        cleaned.Text,
		ContentHash: cleaned.ContentHash,
		Method:      methodRequests,
		RawHTML:     res.Body,
	}, nil
}

func (s *Selector) fetchPlaywright(ctx context.Context, rawURL string) (*domain.CleanedDoc, error) {
	res, err := s.browserFetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("strategy: playwright fetch %s: %w", rawURL, err)
	}
	cleaned, err := clean.HTML([]byte(res.HTML))
	if err != nil {
		return nil, fmt.Errorf("strategy: playwright clean %s: %w", rawURL, err)
	}
	title := cleaned.Title
	if title == "" {
		title = res.Title
	}
	return &domain.CleanedDoc{
		URL:         rawURL,
		Title:       title,
		Text:        cleaned.Text,
		ContentHash: cleaned.ContentHash,
		Method:      methodPlaywright,
		RawHTML:     []byte(res.HTML),
	}, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
