package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseContentTypeAndHelpers(t *testing.T) {
	ct, cs := parseContentType("text/html; charset=utf-8")
	if ct != "text/html" || cs != "utf-8" {
		t.Fatalf("parseContentType failed: %v %v", ct, cs)
	}
	if !isHTML("text/html") || !isHTML("application/xhtml+xml") {
		t.Fatalf("isHTML failed")
	}
}

func TestToUTF8(t *testing.T) {
	b, err := toUTF8([]byte("hello"), "utf-8")
	if err != nil || string(b) != "hello" {
		t.Fatalf("toUTF8 utf8 failed: %v", err)
	}
}

func TestFetchHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(200)
			_, _ = w.Write([]byte("<html><head><title>X</title></head><body><h1>Hi</h1></body></html>"))
		case "/notfound":
			w.WriteHeader(404)
		case "/binary":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.WriteHeader(200)
			_, _ = w.Write([]byte{0x00, 0x01})
		}
	}))
	defer srv.Close()

	f := NewFetcher(WithTimeout(5 * time.Second))

	res, err := f.FetchHTML(context.Background(), srv.URL+"/html")
	if err != nil {
		t.Fatalf("FetchHTML html: %v", err)
	}
	if res.Status != 200 || !res.IsHTML() {
		t.Fatalf("unexpected result: %+v", res)
	}

	if _, err := f.FetchHTML(context.Background(), srv.URL+"/notfound"); err == nil {
		t.Fatalf("FetchHTML notfound: expected error")
	}

	if _, err := f.FetchHTML(context.Background(), srv.URL+"/binary"); err == nil {
		t.Fatalf("FetchHTML binary: expected ErrNonHTML")
	}
}
