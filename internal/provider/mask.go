package provider

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

const digestLimit = 1000

var keyParamRe = regexp.MustCompile(`([?&]key=)[^&]+`)

// MaskURL replaces the value of a "key" query parameter so URLs can be logged.
func MaskURL(u string) string {
	return keyParamRe.ReplaceAllString(u, "${1}***")
}

// digest truncates s to the diagnostic limit.
func digest(s string) string {
	if len(s) <= digestLimit {
		return s
	}
	return s[:digestLimit]
}

func bodyDigest(body map[string]any) string {
	b, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return digest(string(b))
}

func bodyKeys(body map[string]any) []string {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cannedLabel answers without a credential. The labels are an internal
// signal for callers that parse completions, never shown to users.
func cannedLabel(prompt string) string {
	p := strings.ToLower(prompt)
	switch {
	case strings.Contains(p, "show") && strings.Contains(p, "product"):
		return "INTENT:SHOW_PRODUCTS"
	case strings.Contains(p, "variant"):
		return "INTENT:SHOW_VARIANTS"
	case strings.Contains(p, "add") && strings.Contains(p, "cart"):
		return "INTENT:ADD_TO_CART"
	case strings.Contains(p, "suggest") || strings.Contains(p, "hospital"):
		return "INTENT:SUGGEST_BULK"
	default:
		return "INTENT:CHAT"
	}
}
