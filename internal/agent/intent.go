package agent

import "strings"

// Intent is the action a chat message asks for. The zero value means the
// intent is undetermined.
type Intent string

const (
	IntentShowProducts    Intent = "SHOW_PRODUCTS"
	IntentSearchProduct   Intent = "SEARCH_PRODUCT"
	IntentAddToCart       Intent = "ADD_TO_CART"
	IntentSuggestHospital Intent = "SUGGEST_HOSPITAL_EQUIPMENT"
	IntentCompare         Intent = "COMPARE"
	IntentBundle          Intent = "BUNDLE"
	IntentClearCart       Intent = "CLEAR_CART"
	IntentShowOrders      Intent = "SHOW_ORDERS"
	IntentChat            Intent = "CHAT"
)

var knownIntents = map[Intent]bool{
	IntentShowProducts:    true,
	IntentSearchProduct:   true,
	IntentAddToCart:       true,
	IntentSuggestHospital: true,
	IntentCompare:         true,
	IntentBundle:          true,
	IntentClearCart:       true,
	IntentShowOrders:      true,
	IntentChat:            true,
}

// ParseIntent normalizes s and reports whether it names a known intent.
func ParseIntent(s string) (Intent, bool) {
	i := Intent(strings.ToUpper(strings.TrimSpace(s)))
	if !knownIntents[i] {
		return "", false
	}
	return i, true
}

// needsExtraction reports whether the generative service should refine the
// rule result: parameter-heavy intents and undetermined messages.
func (i Intent) needsExtraction() bool {
	switch i {
	case "", IntentAddToCart, IntentSearchProduct, IntentSuggestHospital, IntentCompare, IntentBundle:
		return true
	}
	return false
}
