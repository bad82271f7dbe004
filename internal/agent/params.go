package agent

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Params are the values the handlers work from, filled by rules and
// optionally refined by generative extraction.
type Params struct {
	ProductName  string
	ProductNames []string
	Department   string
	HospitalType string
	// Quantity is always >= 1.
	Quantity int
	// quantityExtracted is set when Quantity came from extraction.
	quantityExtracted bool
}

func defaultParams() Params {
	return Params{Quantity: 1}
}

// merge applies an extraction result. The extracted intent is adopted only
// when the rules left the intent undetermined or CHAT.
func (p *Params) merge(intent Intent, ext map[string]any) Intent {
	if intent == "" || intent == IntentChat {
		if s, ok := ext["intent"].(string); ok {
			if parsed, ok := ParseIntent(s); ok {
				intent = parsed
			}
		}
	}
	if s := stringField(ext, "product_name"); s != "" {
		p.ProductName = s
	}
	if names := stringList(ext["product_names"]); len(names) > 0 {
		p.ProductNames = names
	}
	if s := stringField(ext, "department"); s != "" {
		p.Department = s
	} else if s := stringField(ext, "hospital_type"); s != "" {
		p.Department = s
	}
	if s := stringField(ext, "hospital_type"); s != "" {
		p.HospitalType = s
	}
	if v, ok := ext["quantity"]; ok && v != nil {
		p.Quantity = toQuantity(v)
		p.quantityExtracted = true
	}
	return intent
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// toQuantity converts an extracted value to a positive integer, or 1.
func toQuantity(v any) int {
	var n int
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t > math.MaxInt32 {
			return 1
		}
		n = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 1
		}
		n = parsed
	case int:
		n = t
	}
	if n < 1 {
		return 1
	}
	return n
}

var quantityRe = regexp.MustCompile(`\b(\d{1,4})\b`)

// messageQuantity finds the first standalone number in msg.
func messageQuantity(msg string) (int, bool) {
	m := quantityRe.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

var leadingFillerRe = regexp.MustCompile(`^(?:\d+|a|an|the|some|me|my)\s+`)

// cleanTerm strips a leading count or article and surrounding punctuation
// from a product phrase: "3 fowler beds" -> "fowler beds".
func cleanTerm(term string) string {
	term = strings.Trim(strings.TrimSpace(term), " ?.!,")
	for {
		stripped := leadingFillerRe.ReplaceAllString(term, "")
		if stripped == term {
			return term
		}
		term = stripped
	}
}

// singular drops a plural "s" from each word: "fowler beds" -> "fowler bed".
func singular(term string) string {
	words := strings.Fields(term)
	for i, w := range words {
		if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			words[i] = w[:len(w)-1]
		}
	}
	return strings.Join(words, " ")
}
