// Package browser is the headless-browser half of the fetcher pair. It
// renders a page with chromedp, waits for the body to be ready and then
// a fixed 2s settle delay, sweeps away common cookie/modal popups, and
// returns the rendered HTML for the content cleaner. It does not track
// network activity, so it does not wait for the network to go idle.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Result is the rendered-page outcome.
type Result struct {
	FinalURL string
	Status   int64
	HTML     string
	Title    string
}

// closeSelectors are tried in order against the live DOM; each match is
// clicked with a short per-click timeout so one bad selector cannot
// stall the sweep.
var closeSelectors = []string{
	`button[aria-label*="close" i]`,
	`button[aria-label*="dismiss" i]`,
	`button[class*="close" i]`,
	`button[class*="dismiss" i]`,
	`button[id*="close" i]`,
	`[class*="modal"] button`,
	`[class*="popup"] button`,
	`.modal-close`,
	`.popup-close`,
	`.close-button`,
	`[data-dismiss="modal"]`,
}

// Fetcher renders pages in a headless Chrome instance.
type Fetcher struct {
	timeout time.Duration
}

// NewFetcher returns a Fetcher with the given overall per-page timeout.
// 30s matches PLAYWRIGHT_TIMEOUT's default.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{timeout: timeout}
}

// Fetch renders rawURL and returns its HTML after a fixed 2s delay past
// body-ready and a popup sweep; it does not wait for network idle. It
// fails if the top-level navigation
// returns an HTTP status of 400 or greater.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-software-rasterizer", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(1920, 1080),
		)...,
	)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, f.timeout)
	defer cancelTimeout()

	var status int64
	var finalURL, title, html string

	listenCtx, cancelListen := context.WithCancel(browserCtx)
	defer cancelListen()
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Type == "Document" {
				status = resp.Response.Status
			}
		}
	})

	err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			headers := network.Headers{
				"Accept-Language": "en-US,en;q=0.9",
			}
			return network.SetExtraHTTPHeaders(headers).Do(ctx)
		}),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		closePopups(),
		chromedp.Title(&title),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", rawURL, err)
	}
	if status >= 400 {
		return nil, fmt.Errorf("browser: http status %d", status)
	}

	return &Result{FinalURL: finalURL, Status: status, HTML: html, Title: title}, nil
}

// closePopups clicks the first visible match for each known close-button
// selector, then presses Escape, tolerating selectors that match
// nothing or that fail to click.
func closePopups() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, sel := range closeSelectors {
			clickCtx, cancel := context.WithTimeout(ctx, time.Second)
			_ = chromedp.Run(clickCtx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
			cancel()
		}
		_ = chromedp.Run(ctx, chromedp.KeyEvent(kb.Escape))
		chromedp.Sleep(500 * time.Millisecond).Do(ctx)
		return nil
	})
}
