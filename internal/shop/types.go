// Package shop holds the catalog, cart and order records shared by the store,
// the agent tools and the HTTP API.
package shop

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a product, variant, cart item, quotation
	// or order does not exist for the caller.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock is returned when a requested quantity exceeds stock.
	ErrInsufficientStock = errors.New("requested quantity exceeds stock")
	// ErrEmptyCart is returned when a quotation or order needs at least one line.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrQuotationClosed is returned when checking out a quotation twice.
	ErrQuotationClosed = errors.New("quotation already ordered")
)

// Quotation and order statuses.
const (
	QuotationGenerated = "generated"
	QuotationOrdered   = "ordered"
	OrderPending       = "pending"
)

// Product is an active catalog entry. Image is the primary image URL, or the
// first image when none is flagged primary.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	BasePrice   *float64  `json:"base_price"`
	IsActive    bool      `json:"is_active"`
	Image       *string   `json:"image"`
	Variants    []Variant `json:"product_variants,omitempty"`
}

// Variant is a purchasable SKU of a product.
type Variant struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	VariantName string  `json:"variant_name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

// InStock reports whether at least one unit can be ordered.
func (v Variant) InStock() bool { return v.Stock > 0 }

// Cart is the single open cart of a user.
type Cart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CartItem is one variant line in a cart, joined with its product.
type CartItem struct {
	ID          string  `json:"id"`
	VariantID   string  `json:"variant_id"`
	VariantName string  `json:"variant_name"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Image       *string `json:"image"`
}

// QuoteLine is a priced cart line frozen into a quotation.
type QuoteLine struct {
	VariantID   string  `json:"variant_id"`
	VariantName string  `json:"variant_name"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	LineTotal   float64 `json:"line_total"`
}

// Snapshot is an immutable copy of cart contents taken when a quotation is
// created. Later cart edits do not change it.
type Snapshot struct {
	Items       []QuoteLine `json:"items"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Quotation is a priced snapshot a user can check out.
type Quotation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	QuoteNumber string    `json:"quote_number"`
	Snapshot    Snapshot  `json:"cart_snapshot"`
	Total       float64   `json:"total"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderSummary is the row shown in order history.
type OrderSummary struct {
	ID          string    `json:"id"`
	OrderNumber string    `json:"order_number"`
	Total       float64   `json:"total"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderItem is a line of a placed order.
type OrderItem struct {
	ID          string  `json:"id"`
	ProductName string  `json:"product_name"`
	VariantName string  `json:"variant_name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	LineTotal   float64 `json:"line_total"`
}

// Order is a placed order with its lines.
type Order struct {
	OrderSummary
	QuotationID string      `json:"quotation_id,omitempty"`
	Items       []OrderItem `json:"items"`
}
