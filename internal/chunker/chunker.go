// Package chunker splits cleaned document text into fixed-size,
// overlapping windows sized for embedding, mirroring a recursive
// character splitter: try to break on paragraph, then sentence, then
// word boundaries before falling back to a hard cut.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// WindowSize and Overlap define the chunk geometry. These are fixed,
// not configurable, matching the ingestion pipeline's embedding model
// context budget.
const (
	WindowSize = 500
	Overlap    = 50
)

var splitSeparators = []string{"\n\n", "\n", ". ", " "}

// Split divides text into overlapping windows of at most WindowSize
// runes, preferring to break at a separator near the window edge over
// a hard cut mid-word. Each chunk after the first repeats the last
// Overlap runes of its predecessor so embeddings retain cross-chunk
// context.
func Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= WindowSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + WindowSize
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		breakAt := bestBreak(runes, start, end)
		chunks = append(chunks, strings.TrimSpace(string(runes[start:breakAt])))

		next := breakAt - Overlap
		if next <= start {
			next = breakAt
		}
		start = next
	}
	return chunks
}

// bestBreak looks backward from end for the rightmost separator within
// the trailing quarter of the window, so breaks fall near a natural
// boundary without shrinking chunks excessively. Falls back to a hard
// cut at end when no separator qualifies.
func bestBreak(runes []rune, start, end int) int {
	window := string(runes[start:end])
	searchFloor := (end - start) * 3 / 4

	for _, sep := range splitSeparators {
		byteIdx := strings.LastIndex(window, sep)
		if byteIdx < 0 {
			continue
		}
		runeIdx := utf8.RuneCountInString(window[:byteIdx])
		if runeIdx >= searchFloor {
			return start + runeIdx + utf8.RuneCountInString(sep)
		}
	}
	return end
}
