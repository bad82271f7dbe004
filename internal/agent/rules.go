package agent

import (
	"regexp"
	"strings"
)

var (
	greetingRe = regexp.MustCompile(`\b(hi|hello|hey|hii|hola|greetings)\b`)
	supportRe  = regexp.MustCompile(`\b(damage|broken|return|refund|not working|complain|support|help|issue|contact|phone)\b`)
)

// intentRule maps a pattern to an intent. Rules are evaluated in order and
// the first match wins.
type intentRule struct {
	intent  Intent
	pattern *regexp.Regexp
}

var intentRules = []intentRule{
	{IntentShowProducts, regexp.MustCompile(`(?s)\b(show|list|all|browse|view|get|see)\b.*\b(products?|items?|supply|supplies|medical|medic|catalog|equipment)\b`)},
	{IntentCompare, regexp.MustCompile(`\b(compare|versus|vs|difference|between)\b`)},
	{IntentBundle, regexp.MustCompile(`\b(bundle|package|set|deal|startup|complete)\b`)},
	{IntentSearchProduct, regexp.MustCompile(`\b(search|find|where is|look for)\b`)},
	{IntentAddToCart, regexp.MustCompile(`(?s)\b(add|put|buy|order)\b.*\b(cart|basket)\b`)},
	{IntentSuggestHospital, regexp.MustCompile(`\b(hospital|clinic|opening|setup|suggest|recommend|physio|therapy|specialty|ward)\b`)},
	{IntentClearCart, regexp.MustCompile(`(?s)\b(clear|empty|delete|remove)\b.*\b(cart|basket)\b`)},
	{IntentShowOrders, regexp.MustCompile(`\b(order|past|history|my orders)\b`)},
}

// normalize lowercases and trims a message for matching.
func normalize(message string) string {
	return strings.ToLower(strings.TrimSpace(message))
}

func isGreeting(msg string) bool { return greetingRe.MatchString(msg) }
func isSupport(msg string) bool  { return supportRe.MatchString(msg) }
func isThanks(msg string) bool   { return strings.Contains(msg, "thank") }

// classify returns the first rule intent matching msg, or "".
func classify(msg string) Intent {
	if msg == "products" || msg == "items" {
		return IntentShowProducts
	}
	for _, r := range intentRules {
		if r.pattern.MatchString(msg) {
			return r.intent
		}
	}
	return ""
}
