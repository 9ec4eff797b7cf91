// Package clean turns a raw HTML document into normalized plain text
// suitable for chunking and embedding, following the same conservative
// main-content-first strategy regardless of which fetcher produced the
// HTML.
package clean

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// MinContentLength is the floor below which cleaned content is treated
// as a scrape failure rather than a thin page.
const MinContentLength = 50

// contentSelectors is tried in order; the first selector that matches
// any node becomes the content root. "body" is the guaranteed fallback.
var contentSelectors = []string{
	"main", "article", `[role="main"]`, ".content", ".main-content", "#content", "#main", "body",
}

// unwantedSelectors are removed from the content root before text
// extraction. Structural containers (nav/header/footer/aside) are
// deliberately left alone since they can carry real content.
var unwantedSelectors = []string{
	"script", "style", "noscript", "iframe", "object", "embed",
	"img", "svg", "canvas", "video", "audio",
	"link", "meta", "base",
	`[class*="advertisement"]`, `[class*="banner"]`,
	`[class*="cookie-banner"]`, `[class*="cookie-consent"]`,
	`[class*="popup"]`, `[class*="modal"]`,
}

// skipLines are lines that consist entirely of a single punctuation
// character and carry no content.
var skipLines = map[string]bool{
	"|": true, "-": true, "_": true, "*": true, "=": true, "+": true,
}

// Result is the outcome of cleaning one HTML document.
type Result struct {
	Title       string
	Text        string
	ContentHash string
}

// ErrThinContent is returned when the cleaned text falls below
// MinContentLength.
type ErrThinContent struct{ Length int }

func (e *ErrThinContent) Error() string {
	return "clean: no meaningful content found"
}

// HTML extracts title and body text from raw HTML bytes, removing
// markup noise and collapsing whitespace into single-space-separated
// lines.
func HTML(raw []byte) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	var root *goquery.Selection
	for _, sel := range contentSelectors {
		found := doc.Find(sel).First()
		if found.Length() > 0 {
			root = found
			break
		}
	}
	if root == nil {
		root = doc.Selection
	}

	for _, sel := range unwantedSelectors {
		root.Find(sel).Remove()
	}

	text := root.Text()
	cleaned := cleanLines(text)

	if len(strings.TrimSpace(cleaned)) < MinContentLength {
		return nil, &ErrThinContent{Length: len(cleaned)}
	}

	sum := sha256.Sum256([]byte(cleaned))
	return &Result{
		Title:       title,
		Text:        cleaned,
		ContentHash: hex.EncodeToString(sum[:]),
	}, nil
}

// cleanLines drops blank lines, punctuation-only lines, and lines of
// two characters or fewer, then joins what remains with single spaces.
func cleanLines(content string) string {
	lines := strings.Split(content, "\n")
	meaningful := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || len(line) <= 2 || skipLines[line] {
			continue
		}
		if strings.IndexFunc(line, func(r rune) bool {
			return !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r)
		}) < 0 {
			continue
		}
		collapsed := strings.Join(strings.Fields(line), " ")
		if collapsed != "" {
			meaningful = append(meaningful, collapsed)
		}
	}
	return strings.Join(meaningful, " ")
}
