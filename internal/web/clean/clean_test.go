package clean

import (
	"strings"
	"testing"
)

func TestHTMLPrefersMainContent(t *testing.T) {
	raw := `<html><head><title> My Page </title></head><body>
<nav>Home About Contact</nav>
<main><p>This is the real article content that matters a great deal.</p></main>
<footer>Copyright 2026</footer>
</body></html>`

	res, err := HTML([]byte(raw))
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	if res.Title != "My Page" {
		t.Fatalf("Title = %q, want %q", res.Title, "My Page")
	}
	if !strings.Contains(res.Text, "real article content") {
		t.Fatalf("Text = %q, missing expected content", res.Text)
	}
	if strings.Contains(res.Text, "Copyright") {
		t.Fatalf("Text = %q, should not include footer outside <main>", res.Text)
	}
}

func TestHTMLRemovesScriptsAndStyles(t *testing.T) {
	raw := `<html><body><article>
<script>alert('x')</script>
<style>.a{color:red}</style>
<p>Actual paragraph text goes here for the test to find.</p>
</article></body></html>`

	res, err := HTML([]byte(raw))
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	if strings.Contains(res.Text, "alert") || strings.Contains(res.Text, "color:red") {
		t.Fatalf("Text = %q, script/style leaked through", res.Text)
	}
}

func TestHTMLThinContentFails(t *testing.T) {
	raw := `<html><body><main>hi</main></body></html>`
	_, err := HTML([]byte(raw))
	if err == nil {
		t.Fatalf("HTML() error = nil, want ErrThinContent")
	}
	if _, ok := err.(*ErrThinContent); !ok {
		t.Fatalf("HTML() error type = %T, want *ErrThinContent", err)
	}
}

func TestHTMLDropsPunctuationOnlyLines(t *testing.T) {
	raw := "<html><body><main>\n---\n|\nThis is a meaningful line of real content, long enough to pass the floor.\n===\n</main></body></html>"
	res, err := HTML([]byte(raw))
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	if strings.Contains(res.Text, "---") || strings.Contains(res.Text, "===") {
		t.Fatalf("Text = %q, punctuation-only lines leaked through", res.Text)
	}
}

func TestHTMLContentHashIsDeterministic(t *testing.T) {
	raw := `<html><body><main><p>Stable content used to verify hashing is deterministic across calls.</p></main></body></html>`
	a, err := HTML([]byte(raw))
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	b, err := HTML([]byte(raw))
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	if a.ContentHash != b.ContentHash {
		t.Fatalf("ContentHash mismatch: %s != %s", a.ContentHash, b.ContentHash)
	}
	if len(a.ContentHash) != 64 {
		t.Fatalf("ContentHash length = %d, want 64 (sha256 hex)", len(a.ContentHash))
	}
}
