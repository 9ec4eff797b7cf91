// Package docingest extracts plain text from an uploaded document ahead
// of classification and vector ingestion, the non-web counterpart to the
// crawl orchestrator's HTML cleaning.
package docingest

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// ExtractText turns raw file bytes into plain text per mimeType. Only
// text/html gets real extraction (converted to markdown); every other
// mime type, text/markdown included, is treated as already-extracted
// plain text and only has surrounding whitespace trimmed, matching the
// pluggable-OCR-is-a-non-goal boundary this module draws around binary
// formats (PDF, DOCX, images).
func ExtractText(mimeType string, raw []byte) (string, error) {
	switch {
	case strings.HasPrefix(mimeType, "text/html"):
		md, err := htmltomarkdown.ConvertString(string(raw))
		if err != nil {
			return "", fmt.Errorf("docingest: html to markdown: %w", err)
		}
		return strings.TrimSpace(md), nil
	default:
		// text/markdown, text/plain, and anything unrecognized.
		return strings.TrimSpace(string(raw)), nil
	}
}
