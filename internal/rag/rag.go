// Package rag keeps a semantic index of the catalog so free-text needs
// ("something for bedsores") can find products keyword matching misses.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rbpanchal/medi-match/internal/embedding"
	"github.com/rbpanchal/medi-match/internal/shop"
	"github.com/rbpanchal/medi-match/internal/vectorstore"
	"go.uber.org/zap"
)

// CollProducts is the Qdrant collection holding one point per product.
const CollProducts = "products"

const (
	defaultDimension = 768
	reindexLimit     = 1000
	embedBatchSize   = 32
)

// VectorIndex is the subset of the Qdrant client the index needs.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, name string, dimension uint64) error
	Upsert(ctx context.Context, collection string, points []vectorstore.Point) error
	Search(ctx context.Context, collection string, vector []float32, topK uint64, minScore float32) ([]vectorstore.SearchResult, error)
}

// CatalogSource lists the products to index.
type CatalogSource interface {
	FetchActive(ctx context.Context, limit int) ([]shop.Product, error)
}

// ProductIndex coordinates embedding generation and vector search over the
// catalog.
type ProductIndex struct {
	embedder embedding.Provider
	vectors  VectorIndex
	catalog  CatalogSource
	minScore float32
	logger   *zap.Logger
}

// NewProductIndex creates an index. Hits scoring below minScore are dropped.
func NewProductIndex(embedder embedding.Provider, vectors VectorIndex, catalog CatalogSource, minScore float32, logger *zap.Logger) *ProductIndex {
	return &ProductIndex{embedder: embedder, vectors: vectors, catalog: catalog, minScore: minScore, logger: logger}
}

// Init ensures the products collection exists.
func (x *ProductIndex) Init(ctx context.Context) error {
	dim := uint64(x.embedder.Dimension())
	if dim == 0 {
		dim = defaultDimension
	}
	if err := x.vectors.EnsureCollection(ctx, CollProducts, dim); err != nil {
		return fmt.Errorf("init collection %s: %w", CollProducts, err)
	}
	return nil
}

// Document renders the text embedded for a product.
func Document(p shop.Product) string {
	desc := strings.TrimSpace(p.Description)
	if desc == "" {
		return p.Name
	}
	return p.Name + ". " + desc
}

// Reindex embeds every active product and upserts it, returning the number of
// products indexed.
func (x *ProductIndex) Reindex(ctx context.Context) (int, error) {
	products, err := x.catalog.FetchActive(ctx, reindexLimit)
	if err != nil {
		return 0, fmt.Errorf("load catalog: %w", err)
	}

	indexedAt := time.Now().UTC().Format(time.RFC3339)
	indexed := 0
	for start := 0; start < len(products); start += embedBatchSize {
		batch := products[start:min(start+embedBatchSize, len(products))]
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = Document(p)
		}
		vectors, err := x.embedder.Embed(ctx, texts)
		if err != nil {
			return indexed, fmt.Errorf("embed products: %w", err)
		}
		if len(vectors) != len(batch) {
			return indexed, fmt.Errorf("embed products: got %d vectors for %d products", len(vectors), len(batch))
		}

		points := make([]vectorstore.Point, len(batch))
		for i, p := range batch {
			points[i] = vectorstore.Point{
				ID:     p.ID,
				Vector: vectors[i],
				Payload: map[string]string{
					"name":       p.Name,
					"content":    texts[i],
					"indexed_at": indexedAt,
				},
			}
		}
		if err := x.vectors.Upsert(ctx, CollProducts, points); err != nil {
			return indexed, err
		}
		indexed += len(batch)
	}
	x.logger.Info("product index rebuilt", zap.Int("products", indexed))
	return indexed, nil
}

// SimilarProducts returns the ids of the products nearest to query, best first.
func (x *ProductIndex) SimilarProducts(ctx context.Context, query string, topK int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" || topK <= 0 {
		return nil, nil
	}
	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	hits, err := x.vectors.Search(ctx, CollProducts, vectors[0], uint64(topK), x.minScore)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.ID != "" {
			ids = append(ids, h.ID)
		}
	}
	x.logger.Debug("semantic product search", zap.String("query", query), zap.Int("hits", len(ids)))
	return ids, nil
}
