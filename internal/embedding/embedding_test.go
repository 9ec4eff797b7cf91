package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/webingest/core/internal/config"
)

func TestEmbedBatchSplitsIntoConfiguredBatchSize(t *testing.T) {
	var gotBatchSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotBatchSizes = append(gotBatchSizes, len(req.Input))

		resp := embedResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i)}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(config.EmbeddingConfig{Host: srv.URL, Model: "m", BatchSize: 2}, srv.Client())
	texts := []string{"a", "b", "c", "d", "e"}
	vectors, err := c.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(texts))
	}
	if !equalInts(gotBatchSizes, []int{2, 2, 1}) {
		t.Fatalf("batch sizes = %v, want [2 2 1]", gotBatchSizes)
	}
}

func TestEmbedBatchReturnsErrorOnMismatchedCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1],"index":0}]}`))
	}))
	defer srv.Close()

	c := New(config.EmbeddingConfig{Host: srv.URL, Model: "m", BatchSize: 10}, srv.Client())
	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatalf("expected error on mismatched embedding count")
	}
}

func TestEmbedBatchEmptyInputReturnsNil(t *testing.T) {
	c := New(config.EmbeddingConfig{Host: "http://unused", Model: "m"}, nil)
	vectors, err := c.EmbedBatch(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("EmbedBatch(nil) = %v, %v, want nil, nil", vectors, err)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
