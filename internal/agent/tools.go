package agent

import (
	"context"

	"github.com/rbpanchal/medi-match/internal/shop"
)

// Catalog is the product lookup surface the agent dispatches to.
type Catalog interface {
	SearchByName(ctx context.Context, term string) ([]shop.Product, error)
	FetchActive(ctx context.Context, limit int) ([]shop.Product, error)
	FetchVariants(ctx context.Context, productID string) ([]shop.Variant, error)
	SuggestByKeyword(ctx context.Context, keyword string) ([]shop.Product, error)
}

// Orders reads a user's order history.
type Orders interface {
	OrdersForUser(ctx context.Context, userID string) ([]shop.OrderSummary, error)
}

// Recorder stores conversation turns. Implementations must not fail the
// caller; see memory.Sink.
type Recorder interface {
	Save(ctx context.Context, userID, role, content string)
}
