package agent

import (
	"fmt"
	"strings"
)

const (
	salesPhone   = "+91-9876543210"
	supportEmail = "support@rbpanchal.com"
)

var (
	greetingChips = []string{"Show All Products", "Suggest for Clinic", "Physiotherapy Setup", "Contact Support"}
	supportChips  = []string{"My Orders", "Return Policy", "Speak to Agent"}
)

const (
	replyGreeting = "Hi there! I'm your Medi-Match assistant, powered by RB Panchal. " +
		"I can help you set up a new clinic, find specialized equipment, or manage your orders. What's on your mind?"
	replyThanks          = "You're very welcome! Let me know if you need anything else to get your facility running smoothly."
	replyCapabilities    = "I'm here to help! I can show products, search for equipment, or manage your cart. What's on your mind?"
	replyCatalogEmpty    = "I couldn't find any products in our catalog right now. Contact support for the offline catalog."
	replyCatalog         = "Here are our latest medical supplies and equipment. Tap any to see details!"
	replyCompareNeedsTwo = "I need two specific products to compare. Try 'Compare Semi-Fowler vs Full-Fowler'."
	replyAddWhich        = "Which specific product would you like to add? (e.g., 'Add a Fowler Bed')"
	replyClearCart       = "Ready to clear your cart. Are you sure?"
	replyNoOrders        = "We don't see any orders associated with your account yet. Let's place your first one!"
	replyOrders          = "Here are your recent procurement records with RB Panchal:"
)

var replySupport = "I'm sorry to hear you're having an issue. Our priority is to help you get back to serving your patients.\n\n" +
	"Please contact our Support Team directly:\n" +
	"**Call/WhatsApp: " + salesPhone + "**\n" +
	"**Email: " + supportEmail + "**\n" +
	"(Mon-Sat, 9 AM - 7 PM)"

func replyCompare(a, b string) string {
	return fmt.Sprintf("Here is a side-by-side comparison of the **%s** and **%s**.", a, b)
}

func replyBundle(label string) string {
	return fmt.Sprintf("I've designed a professional **%s Startup Bundle** for you. It covers the essentials at wholesale pricing.", strings.ToUpper(label))
}

func replyBundleEmpty(label string) string {
	return fmt.Sprintf("I couldn't assemble a %s bundle from the current catalog. Our sales team at %s can put one together for you.",
		strings.ToUpper(label), salesPhone)
}

func replySearchFound(n int, term string) string {
	return fmt.Sprintf("I found %d matches for '%s'. These are verified medical-grade items.", n, term)
}

func replySearchMissing(term string) string {
	return fmt.Sprintf("I couldn't find '%s' in our online list. Please contact our sales team at %s for bespoke sourcing.", term, salesPhone)
}

func replyAddReady(qty int, name string) string {
	return fmt.Sprintf("Adding %d x %s to your cart.", qty, name)
}

func replyBackOrder(name string) string {
	return fmt.Sprintf("I found '%s', but it's currently on back-order.", name)
}

func replySuggest(facility string) string {
	return fmt.Sprintf("Setting up a **%s** facility is a big step! Based on medical standards, here are the essential items you will need:",
		strings.ToUpper(facility))
}

func replySuggestEmpty(facility string) string {
	return fmt.Sprintf("I couldn't find equipment for a %s setup right now. Our sales team at %s can help you plan it.", facility, salesPhone)
}
