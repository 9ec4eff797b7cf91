package chunker

import (
	"strings"
	"testing"
)

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	text := "a short document"
	chunks := Split(text)
	if len(chunks) != 1 || chunks[0] != text {
		t.Fatalf("Split() = %v, want single chunk %q", chunks, text)
	}
}

func TestSplitEmptyTextReturnsNil(t *testing.T) {
	if chunks := Split(""); chunks != nil {
		t.Fatalf("Split(\"\") = %v, want nil", chunks)
	}
}

func TestSplitLongTextProducesMultipleChunks(t *testing.T) {
	sentence := "This is one sentence of reasonable length for testing. "
	text := strings.Repeat(sentence, 30)

	chunks := Split(text)
	if len(chunks) < 2 {
		t.Fatalf("Split() produced %d chunks, want more than 1", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > WindowSize {
			t.Fatalf("chunk %d has %d runes, want <= %d", i, len([]rune(c)), WindowSize)
		}
	}
}

func TestSplitChunksOverlapOnHardCut(t *testing.T) {
	// No separators at all forces hard cuts at exactly WindowSize, so
	// the overlap window is exactly reproducible.
	text := strings.Repeat("x", WindowSize*3)

	chunks := Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if len(chunks[i]) == 0 || len(chunks[i-1]) == 0 {
			t.Fatalf("chunk %d or %d is empty", i-1, i)
		}
		prev := chunks[i-1]
		if !strings.HasPrefix(chunks[i], prev[len(prev)-Overlap:]) {
			t.Fatalf("chunk %d does not start with the last %d runes of chunk %d", i, Overlap, i-1)
		}
	}
}
