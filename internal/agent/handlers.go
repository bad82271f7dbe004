package agent

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"github.com/rbpanchal/medi-match/internal/shop"
)

const (
	showProductsLimit   = 40
	suggestLimit        = 12
	suggestFallbackSize = 15
	compareMinWordLen   = 5
)

var (
	bundleDefault = []string{"bed", "monitor", "furniture", "surgical"}
	bundleICU     = []string{"icu bed", "monitor", "ventilator", "infusion"}
	bundlePhysio  = []string{"traction", "ultrasound", "tms", "wax bath"}
)

// facilityCategory maps context terms to the equipment keywords a facility
// of that kind needs.
type facilityCategory struct {
	terms    []string
	keywords []string
}

// facilityCategories are checked in order; the first with a matching term wins.
var facilityCategories = []facilityCategory{
	{[]string{"physio", "rehab", "therapy"}, []string{"table", "traction", "ultrasound", "tms", "exercise", "physio", "gym"}},
	{[]string{"clinic", "opd"}, []string{"examination", "stethoscope", "bp monitor", "furniture", "weighing"}},
	{[]string{"icu", "critical"}, []string{"ventilator", "monitor", "icu bed", "infusion", "defibrillator"}},
	{[]string{"maternity", "gynec"}, []string{"delivery", "incubator", "warmer", "foetal", "maternity"}},
	{[]string{"surgical", "ot", "theatre"}, []string{"operating", "anesthesia", "surgical", "light", "autoclave"}},
	{[]string{"eye", "ophthal", "vision"}, []string{"slit lamp", "ophthalmoscope", "vision", "eye", "lens", "trial", "chair"}},
}

// containsTerm matches short terms as whole words ("ot" must not match
// "both") and longer ones as substrings ("physio" matches "physiotherapy").
func containsTerm(text, term string) bool {
	if len(term) > 3 {
		return strings.Contains(text, term)
	}
	for _, w := range wordRe.FindAllString(text, -1) {
		if w == term {
			return true
		}
	}
	return false
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

func facilityKeywords(text string) []string {
	c := strings.ToLower(text)
	for _, cat := range facilityCategories {
		for _, term := range cat.terms {
			if containsTerm(c, term) {
				return cat.keywords
			}
		}
	}
	var words []string
	for _, w := range strings.Fields(c) {
		if len(w) > 3 {
			words = append(words, w)
		}
	}
	return words
}

func (e *Engine) handleCompare(ctx context.Context, t *turn) (*Response, error) {
	names := t.params.ProductNames
	if len(names) == 0 {
		names = longestWords(t.msg, 2)
	}
	if len(names) > 2 {
		names = names[:2]
	}

	var picked []shop.Product
	for _, n := range names {
		results, err := e.catalog.SearchByName(ctx, cleanTerm(n))
		if err != nil {
			return nil, err
		}
		for _, p := range results {
			if !slices.ContainsFunc(picked, func(q shop.Product) bool { return q.ID == p.ID }) {
				picked = append(picked, p)
				break
			}
		}
	}
	if len(picked) < 2 {
		return &Response{Response: replyCompareNeedsTwo}, nil
	}
	return &Response{
		Response: replyCompare(picked[0].Name, picked[1].Name),
		Actions:  []Action{compare(picked[0], picked[1])},
	}, nil
}

// longestWords returns up to n words longer than four characters, longest
// first; equal lengths keep message order.
func longestWords(msg string, n int) []string {
	var words []string
	for _, w := range strings.Fields(msg) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) >= compareMinWordLen {
			words = append(words, w)
		}
	}
	slices.SortStableFunc(words, func(a, b string) int { return len(b) - len(a) })
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func (e *Engine) handleBundle(ctx context.Context, t *turn) (*Response, error) {
	dept := t.params.Department
	if dept == "" {
		dept = t.msg
	}
	d := strings.ToLower(dept)

	keywords, label := bundleDefault, "Hospital"
	switch {
	case strings.Contains(d, "icu"):
		keywords, label = bundleICU, "ICU"
	case strings.Contains(d, "physio"):
		keywords, label = bundlePhysio, "Physiotherapy"
	}
	if t.params.Department != "" {
		label = t.params.Department
	}

	var items []shop.Product
	seen := make(map[string]bool)
	for _, kw := range keywords {
		results, err := e.catalog.SearchByName(ctx, kw)
		if err != nil {
			return nil, err
		}
		if len(results) > 0 && !seen[results[0].ID] {
			seen[results[0].ID] = true
			items = append(items, results[0])
		}
	}
	if len(items) == 0 {
		return &Response{Response: replyBundleEmpty(label)}, nil
	}
	return &Response{Response: replyBundle(label), Actions: []Action{showProducts(items)}}, nil
}

func (e *Engine) handleShowProducts(ctx context.Context) (*Response, error) {
	products, err := e.catalog.FetchActive(ctx, showProductsLimit)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return &Response{Response: replyCatalogEmpty}, nil
	}
	return &Response{Response: replyCatalog, Actions: []Action{showProducts(products)}}, nil
}

var searchTriggers = []string{"show me", "search for", "find", "search", "where is", "look for"}

// searchTerm takes the text after the last occurrence of the first trigger
// phrase found in msg.
func searchTerm(msg string) string {
	for _, trigger := range searchTriggers {
		if i := strings.LastIndex(msg, trigger); i >= 0 {
			if term := cleanTerm(msg[i+len(trigger):]); term != "" {
				return term
			}
			break
		}
	}
	return msg
}

func (e *Engine) handleSearch(ctx context.Context, t *turn) (*Response, error) {
	term := t.params.ProductName
	if term == "" {
		term = searchTerm(t.msg)
	}
	results, err := e.catalog.SearchByName(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Response{Response: replySearchMissing(term)}, nil
	}
	return &Response{Response: replySearchFound(len(results), term), Actions: []Action{showProducts(results)}}, nil
}

var addTargetRe = regexp.MustCompile(`add (.+?) to`)

// findProduct searches for term, retrying with the singular form.
func (e *Engine) findProduct(ctx context.Context, term string) (*shop.Product, error) {
	term = cleanTerm(term)
	if term == "" {
		return nil, nil
	}
	candidates := []string{term}
	if s := singular(term); s != term {
		candidates = append(candidates, s)
	}
	for _, c := range candidates {
		results, err := e.catalog.SearchByName(ctx, c)
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			return &results[0], nil
		}
	}
	return nil, nil
}

func (e *Engine) handleAddToCart(ctx context.Context, t *turn) (*Response, error) {
	term := t.params.ProductName
	if term == "" {
		if m := addTargetRe.FindStringSubmatch(t.msg); m != nil {
			term = m[1]
		}
	}

	product, err := e.findProduct(ctx, term)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return &Response{Response: replyAddWhich}, nil
	}

	variants, err := e.catalog.FetchVariants(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(variants, shop.Variant.InStock)
	if idx < 0 {
		return &Response{Response: replyBackOrder(product.Name)}, nil
	}

	qty := t.params.Quantity
	return &Response{
		Response: replyAddReady(qty, product.Name),
		Actions:  []Action{addToCart(variants[idx].ID, qty)},
	}, nil
}

func (e *Engine) handleSuggest(ctx context.Context, t *turn) (*Response, error) {
	facility := t.params.HospitalType
	if facility == "" {
		facility = t.msg
	}

	var suggestions []shop.Product
	seen := make(map[string]bool)
	for _, kw := range facilityKeywords(facility) {
		products, err := e.lookupKeyword(ctx, kw)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			if !seen[p.ID] {
				seen[p.ID] = true
				suggestions = append(suggestions, p)
			}
		}
	}

	if len(suggestions) == 0 {
		general, err := e.catalog.FetchActive(ctx, suggestFallbackSize)
		if err != nil {
			return nil, err
		}
		suggestions = general
	}
	if len(suggestions) == 0 {
		return &Response{Response: replySuggestEmpty(facility)}, nil
	}
	if len(suggestions) > suggestLimit {
		suggestions = suggestions[:suggestLimit]
	}
	return &Response{Response: replySuggest(facility), Actions: []Action{showProducts(suggestions)}}, nil
}

// lookupKeyword finds products for one equipment keyword. Keywords made only
// of short words ("tms", "icu bed") carry nothing the keyword matcher keeps,
// so they are matched as a name phrase instead.
func (e *Engine) lookupKeyword(ctx context.Context, kw string) ([]shop.Product, error) {
	for _, w := range strings.Fields(kw) {
		if len(w) > 3 {
			return e.catalog.SuggestByKeyword(ctx, kw)
		}
	}
	return e.catalog.SearchByName(ctx, kw)
}

func (e *Engine) handleShowOrders(ctx context.Context, t *turn) (*Response, error) {
	if e.orders == nil {
		return &Response{Response: replyNoOrders}, nil
	}
	orders, err := e.orders.OrdersForUser(ctx, t.userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return &Response{Response: replyNoOrders}, nil
	}
	return &Response{Response: replyOrders, Actions: []Action{showOrders(orders)}}, nil
}
