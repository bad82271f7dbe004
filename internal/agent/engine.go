// Package agent resolves a chat message into a reply and UI actions. Cheap
// rules run first; the generative service is consulted only to fill in
// parameters or classify messages the rules cannot.
package agent

import (
	"context"
	"fmt"

	"github.com/rbpanchal/medi-match/internal/memory"
	"github.com/rbpanchal/medi-match/internal/provider"
	"go.uber.org/zap"
)

const (
	extractionMaxTokens = 512
	extractionRetries   = 1
)

const systemPrompt = "You are Medi-Match AI, the intelligent procurement brain of RB Panchal Medical Supplies. " +
	"Intents: SHOW_PRODUCTS, SEARCH_PRODUCT, ADD_TO_CART, SUGGEST_HOSPITAL_EQUIPMENT, COMPARE, BUNDLE, CLEAR_CART, SHOW_ORDERS, CHAT. " +
	"For COMPARE: product_names = [A, B]. For BUNDLE: department = 'ICU'. " +
	`Return ONLY JSON: {"intent": "...", "product_names": [], "department": "...", "product_name": "...", "quantity": 1, "hospital_type": "..."}`

// Response is the reply to one chat message.
type Response struct {
	Response string   `json:"response"`
	Actions  []Action `json:"actions"`
}

// Engine resolves chat messages. It holds no per-request state and is safe
// for concurrent use.
type Engine struct {
	catalog   Catalog
	orders    Orders
	completer provider.Completer
	memory    Recorder
	logger    *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRecorder records every user message and reply.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.memory = r }
}

// NewEngine creates an engine. completer may be nil, which disables
// generative extraction.
func NewEngine(catalog Catalog, orders Orders, completer provider.Completer, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		catalog:   catalog,
		orders:    orders,
		completer: completer,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// turn carries one message through resolution.
type turn struct {
	userID  string
	message string // as sent
	msg     string // normalized for matching
	intent  Intent
	params  Params
}

// Resolve turns one message into a reply. Catalog and order errors are
// returned unchanged; the caller replaces them with a safe reply.
func (e *Engine) Resolve(ctx context.Context, userID, message string) (*Response, error) {
	e.record(ctx, userID, memory.RoleUser, message)

	resp, err := e.resolve(ctx, userID, message)
	if err != nil {
		return nil, err
	}
	if resp.Actions == nil {
		resp.Actions = []Action{}
	}

	e.record(ctx, userID, memory.RoleAssistant, resp.Response)
	return resp, nil
}

func (e *Engine) resolve(ctx context.Context, userID, message string) (*Response, error) {
	msg := normalize(message)

	switch {
	case isGreeting(msg):
		return &Response{Response: replyGreeting, Actions: []Action{suggestChips(greetingChips...)}}, nil
	case isSupport(msg):
		return &Response{Response: replySupport, Actions: []Action{suggestChips(supportChips...)}}, nil
	case isThanks(msg):
		return &Response{Response: replyThanks}, nil
	}

	t := &turn{userID: userID, message: message, msg: msg, params: defaultParams()}
	t.intent = classify(msg)
	ruleIntent := t.intent

	if t.intent.needsExtraction() {
		e.extract(ctx, t)
	}
	if t.intent == IntentAddToCart && !t.params.quantityExtracted {
		if n, ok := messageQuantity(msg); ok {
			t.params.Quantity = n
		}
	}

	e.logger.Debug("intent resolved",
		zap.String("user", userID),
		zap.String("rule_intent", string(ruleIntent)),
		zap.String("intent", string(t.intent)))

	resp, err := e.dispatch(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("handle %s: %w", intentLabel(t.intent), err)
	}
	return resp, nil
}

// extract refines t with the generative service. Any failure leaves the rule
// result untouched.
func (e *Engine) extract(ctx context.Context, t *turn) {
	if e.completer == nil {
		return
	}
	ext := provider.ExtractJSON(ctx, e.completer, systemPrompt+"\nUser: "+t.message, extractionMaxTokens, extractionRetries)
	if ext == nil {
		e.logger.Debug("extraction unavailable, keeping rule result", zap.String("intent", string(t.intent)))
		return
	}
	t.intent = t.params.merge(t.intent, ext)
}

func (e *Engine) dispatch(ctx context.Context, t *turn) (*Response, error) {
	switch t.intent {
	case IntentCompare:
		return e.handleCompare(ctx, t)
	case IntentBundle:
		return e.handleBundle(ctx, t)
	case IntentShowProducts:
		return e.handleShowProducts(ctx)
	case IntentSearchProduct:
		return e.handleSearch(ctx, t)
	case IntentAddToCart:
		return e.handleAddToCart(ctx, t)
	case IntentSuggestHospital:
		return e.handleSuggest(ctx, t)
	case IntentShowOrders:
		return e.handleShowOrders(ctx, t)
	case IntentClearCart:
		return &Response{Response: replyClearCart, Actions: []Action{clearCart()}}, nil
	default:
		return &Response{Response: replyCapabilities}, nil
	}
}

func (e *Engine) record(ctx context.Context, userID, role, content string) {
	if e.memory == nil {
		return
	}
	e.memory.Save(ctx, userID, role, content)
}

func intentLabel(i Intent) string {
	if i == "" {
		return "CHAT"
	}
	return string(i)
}
