// Package tools exposes the catalog and order queries the assistant runs.
package tools

import (
	"context"

	"github.com/rbpanchal/medi-match/internal/shop"
	"go.uber.org/zap"
)

const semanticTopK = 12

// ProductStore is the persistence the tools read from.
type ProductStore interface {
	FetchActive(ctx context.Context, limit int) ([]shop.Product, error)
	SearchByName(ctx context.Context, term string) ([]shop.Product, error)
	SuggestByKeyword(ctx context.Context, keyword string) ([]shop.Product, error)
	FetchVariants(ctx context.Context, productID string) ([]shop.Variant, error)
	ProductsByIDs(ctx context.Context, ids []string) ([]shop.Product, error)
	OrdersForUser(ctx context.Context, userID string) ([]shop.OrderSummary, error)
}

// SemanticSearcher finds products by meaning rather than keywords.
type SemanticSearcher interface {
	SimilarProducts(ctx context.Context, query string, topK int) ([]string, error)
}

// Toolbox implements the assistant's catalog and order tools.
type Toolbox struct {
	store    ProductStore
	semantic SemanticSearcher
	logger   *zap.Logger
}

// Option customizes a Toolbox.
type Option func(*Toolbox)

// WithSemanticSearch enables the nearest-neighbour fallback for keyword
// suggestions.
func WithSemanticSearch(s SemanticSearcher) Option {
	return func(t *Toolbox) { t.semantic = s }
}

// New creates a Toolbox over store.
func New(store ProductStore, logger *zap.Logger, opts ...Option) *Toolbox {
	t := &Toolbox{store: store, logger: logger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Toolbox) FetchActive(ctx context.Context, limit int) ([]shop.Product, error) {
	return t.store.FetchActive(ctx, limit)
}

func (t *Toolbox) SearchByName(ctx context.Context, term string) ([]shop.Product, error) {
	return t.store.SearchByName(ctx, term)
}

func (t *Toolbox) FetchVariants(ctx context.Context, productID string) ([]shop.Variant, error) {
	return t.store.FetchVariants(ctx, productID)
}

func (t *Toolbox) OrdersForUser(ctx context.Context, userID string) ([]shop.OrderSummary, error) {
	return t.store.OrdersForUser(ctx, userID)
}

// SuggestByKeyword runs the keyword match and, when it finds nothing and a
// semantic index is configured, the semantic search. Semantic failures are
// logged and yield the empty keyword result.
func (t *Toolbox) SuggestByKeyword(ctx context.Context, keyword string) ([]shop.Product, error) {
	products, err := t.store.SuggestByKeyword(ctx, keyword)
	if err != nil || len(products) > 0 || t.semantic == nil {
		return products, err
	}

	ids, err := t.semantic.SimilarProducts(ctx, keyword, semanticTopK)
	if err != nil {
		t.logger.Warn("semantic product search failed", zap.String("keyword", keyword), zap.Error(err))
		return products, nil
	}
	if len(ids) == 0 {
		return products, nil
	}
	return t.store.ProductsByIDs(ctx, ids)
}
