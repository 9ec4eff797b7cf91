package links

import (
	"reflect"
	"testing"
)

func TestExtractSameDomainOnly(t *testing.T) {
	raw := `<html><body>
<a href="/about">About</a>
<a href="https://other.example.com/page">External</a>
<a href="/contact">Contact</a>
</body></html>`

	got, err := Extract([]byte(raw), "https://example.com/")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []string{"https://example.com/about", "https://example.com/contact"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractExcludesAssetExtensions(t *testing.T) {
	raw := `<html><body>
<a href="/image.png">Image</a>
<a href="/doc.pdf">Doc</a>
<a href="/page.html">Page</a>
</body></html>`

	got, err := Extract([]byte(raw), "https://example.com/")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []string{"https://example.com/page.html"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractExcludesPathPatterns(t *testing.T) {
	raw := `<html><body>
<a href="/download/report">Report</a>
<a href="/static/thing">Static</a>
<a href="/blog/post-1">Post</a>
</body></html>`

	got, err := Extract([]byte(raw), "https://example.com/")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []string{"https://example.com/blog/post-1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractStripsFragmentsAndDedups(t *testing.T) {
	raw := `<html><body>
<a href="/page#section1">One</a>
<a href="/page#section2">Two</a>
<a href="/page">Three</a>
</body></html>`

	got, err := Extract([]byte(raw), "https://example.com/")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []string{"https://example.com/page"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractKeepsQueryString(t *testing.T) {
	raw := `<html><body><a href="/search?q=test">Search</a></body></html>`
	got, err := Extract([]byte(raw), "https://example.com/")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []string{"https://example.com/search?q=test"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract() = %v, want %v", got, want)
	}
}
