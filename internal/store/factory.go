package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/webingest/core/internal/config"
	"github.com/webingest/core/internal/vectoringest"
)

// NewVectorStoreFromConfig selects the pgvector or qdrant backend per
// cfg.VectorStore.Backend and returns it alongside its Close func.
// Shared by every cmd/* entrypoint that needs a vector store so the
// backend-selection and Qdrant DSN parsing logic lives in one place.
func NewVectorStoreFromConfig(ctx context.Context, cfg *config.Config, dim int) (vectoringest.Store, func(), error) {
	switch cfg.VectorStore.Backend {
	case "qdrant":
		qcfg, err := ParseQdrantDSN(cfg.VectorStore.URL, uint64(dim))
		if err != nil {
			return nil, nil, err
		}
		s, err := NewQdrantStore(ctx, qcfg)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "pgvector", "":
		s, err := NewPgVectorStore(ctx, cfg.VectorStore.URL, dim)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector store backend %q", cfg.VectorStore.Backend)
	}
}

// ParseQdrantDSN accepts a URL like qdrant://host:6334/collection_name
// or qdrant://host:6334/collection_name?api_key=... with an optional
// TLS scheme of qdrants://.
func ParseQdrantDSN(dsn string, dim uint64) (*QdrantConfig, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant DSN: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := 6334
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	collection := u.Path
	for len(collection) > 0 && collection[0] == '/' {
		collection = collection[1:]
	}
	if collection == "" {
		collection = "webingest"
	}
	return &QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: dim,
		APIKey:     u.Query().Get("api_key"),
		UseTLS:     u.Scheme == "qdrants",
	}, nil
}
