package agent

import "github.com/rbpanchal/medi-match/internal/shop"

// Action types understood by the storefront UI.
const (
	ActionSuggestChips = "SUGGEST_CHIPS"
	ActionShowProducts = "SHOW_PRODUCTS"
	ActionCompare      = "COMPARE"
	ActionAddToCart    = "ADD_TO_CART"
	ActionClearCart    = "CLEAR_CART"
	ActionShowOrders   = "SHOW_ORDERS"
)

// Action is a UI directive returned with the reply. Type selects which of the
// other fields are set; constructors below build each variant.
type Action struct {
	Type     string              `json:"type"`
	Chips    []string            `json:"chips,omitempty"`
	Products []ProductSummary    `json:"products,omitempty"`
	Data     *CompareData        `json:"data,omitempty"`
	Variants []VariantQty        `json:"variants,omitempty"`
	Orders   []shop.OrderSummary `json:"orders,omitempty"`
	// Confirm tells the UI whether to ask the user before carrying the
	// action out. Only cart actions carry it.
	Confirm *bool `json:"confirm,omitempty"`
}

// ProductSummary is the card shown for a product.
type ProductSummary struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Price *float64 `json:"price"`
	Image *string  `json:"image"`
}

// CompareEntry is one side of a comparison.
type CompareEntry struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Price *float64 `json:"price"`
}

// CompareData holds exactly two entries and the attributes to compare.
type CompareData struct {
	Products []CompareEntry `json:"products"`
	Features []string       `json:"features"`
}

// VariantQty is a variant and the quantity to put in the cart.
type VariantQty struct {
	VariantID string `json:"variant_id"`
	Qty       int    `json:"qty"`
}

func summarize(p shop.Product) ProductSummary {
	return ProductSummary{ID: p.ID, Title: p.Name, Price: p.BasePrice, Image: p.Image}
}

func suggestChips(chips ...string) Action {
	return Action{Type: ActionSuggestChips, Chips: chips}
}

func showProducts(products []shop.Product) Action {
	summaries := make([]ProductSummary, len(products))
	for i, p := range products {
		summaries[i] = summarize(p)
	}
	return Action{Type: ActionShowProducts, Products: summaries}
}

func compare(a, b shop.Product) Action {
	return Action{Type: ActionCompare, Data: &CompareData{
		Products: []CompareEntry{
			{ID: a.ID, Name: a.Name, Price: a.BasePrice},
			{ID: b.ID, Name: b.Name, Price: b.BasePrice},
		},
		Features: []string{"description"},
	}}
}

func addToCart(variantID string, qty int) Action {
	confirm := false
	return Action{Type: ActionAddToCart, Variants: []VariantQty{{VariantID: variantID, Qty: qty}}, Confirm: &confirm}
}

func clearCart() Action {
	confirm := true
	return Action{Type: ActionClearCart, Confirm: &confirm}
}

func showOrders(orders []shop.OrderSummary) Action {
	return Action{Type: ActionShowOrders, Orders: orders}
}
