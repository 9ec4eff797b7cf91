package strategy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/webingest/core/internal/domain"
	"github.com/webingest/core/internal/web/browser"
	"github.com/webingest/core/internal/web/fetch"
)

type fakeFetcher struct {
	html string
	err  error
}

func (f *fakeFetcher) FetchHTML(ctx context.Context, rawURL string) (*fetch.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fetch.Result{Body: []byte(f.html), Status: 200, ContentType: "text/html"}, nil
}

type fakeBrowser struct {
	html string
	err  error
}

func (b *fakeBrowser) Fetch(ctx context.Context, rawURL string) (*browser.Result, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &browser.Result{HTML: b.html, Status: 200}, nil
}

func longHTML(n int) string {
	return "<html><body><main>" + strings.Repeat("word ", n) + "</main></body></html>"
}

func TestAutoPrefersRequestsWhenContentIsLong(t *testing.T) {
	f := &fakeFetcher{html: longHTML(200)}
	b := &fakeBrowser{html: longHTML(200)}
	sel := New(domain.StrategyAuto, true, f, b)

	doc, err := sel.Fetch(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if doc.Method != methodRequests {
		t.Fatalf("Method = %s, want requests", doc.Method)
	}

	sel.mu.Lock()
	pref := sel.prefs["example.com"]
	sel.mu.Unlock()
	if pref != methodRequests {
		t.Fatalf("cached pref = %s, want requests", pref)
	}
}

func TestAutoFallsBackToPlaywrightWhenContentThin(t *testing.T) {
	f := &fakeFetcher{html: "<html><body><main>short</main></body></html>"}
	b := &fakeBrowser{html: longHTML(200)}
	sel := New(domain.StrategyAuto, true, f, b)

	doc, err := sel.Fetch(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if doc.Method != methodPlaywright {
		t.Fatalf("Method = %s, want playwright", doc.Method)
	}
}

func TestAutoFailsWhenBothFetchersReturnThinContent(t *testing.T) {
	f := &fakeFetcher{html: "<html><body><main>short</main></body></html>"}
	b := &fakeBrowser{html: "<html><body><main>also short</main></body></html>"}
	sel := New(domain.StrategyAuto, true, f, b)

	if _, err := sel.Fetch(context.Background(), "https://example.com/a"); err == nil {
		t.Fatalf("Fetch() error = nil, want error when both fetchers return thin content")
	}

	sel.mu.Lock()
	_, cached := sel.prefs["example.com"]
	sel.mu.Unlock()
	if cached {
		t.Fatalf("expected no cached preference when both fetchers are thin")
	}
}

func TestAutoReusesCachedPreference(t *testing.T) {
	f := &fakeFetcher{html: longHTML(200)}
	b := &fakeBrowser{html: longHTML(200)}
	sel := New(domain.StrategyAuto, true, f, b)

	if _, err := sel.Fetch(context.Background(), "https://example.com/a"); err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}

	// Make requests start failing; cached "requests" preference should
	// fall through to playwright for this page without evicting the cache.
	f.err = errors.New("boom")
	doc, err := sel.Fetch(context.Background(), "https://example.com/b")
	if err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if doc.Method != methodPlaywright {
		t.Fatalf("Method = %s, want playwright fallback", doc.Method)
	}

	sel.mu.Lock()
	pref := sel.prefs["example.com"]
	sel.mu.Unlock()
	if pref != methodRequests {
		t.Fatalf("cached pref changed to %s, want unchanged requests", pref)
	}
}

func TestRequestsFirstFallsBackOnFailure(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	b := &fakeBrowser{html: longHTML(50)}
	sel := New(domain.StrategyRequestsFirst, true, f, b)

	doc, err := sel.Fetch(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if doc.Method != methodPlaywright {
		t.Fatalf("Method = %s, want playwright", doc.Method)
	}
}

func TestRequestsFirstNoFallbackReturnsError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	b := &fakeBrowser{html: longHTML(50)}
	sel := New(domain.StrategyRequestsFirst, false, f, b)

	if _, err := sel.Fetch(context.Background(), "https://example.com/a"); err == nil {
		t.Fatalf("Fetch() error = nil, want error when fallback disabled")
	}
}

func TestPlaywrightOnlyNeverUsesRequests(t *testing.T) {
	f := &fakeFetcher{html: longHTML(200)}
	b := &fakeBrowser{html: longHTML(20)}
	sel := New(domain.StrategyPlaywrightOnly, true, f, b)

	doc, err := sel.Fetch(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if doc.Method != methodPlaywright {
		t.Fatalf("Method = %s, want playwright", doc.Method)
	}
}

func TestRequestsOnlyNeverUsesPlaywright(t *testing.T) {
	f := &fakeFetcher{html: longHTML(20)}
	b := &fakeBrowser{html: longHTML(200)}
	sel := New(domain.StrategyRequestsOnly, true, f, b)

	doc, err := sel.Fetch(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if doc.Method != methodRequests {
		t.Fatalf("Method = %s, want requests", doc.Method)
	}
}
