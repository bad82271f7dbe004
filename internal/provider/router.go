package provider

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Router manages multiple providers and completes through the default one,
// walking the fallback chain when it returns a soft error.
type Router struct {
	providers map[string]Provider
	fallbacks []string
	defaults  string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates a new provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register adds a provider to the router. The first one becomes the default.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault sets the default provider.
func (r *Router) SetDefault(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = providerID
}

// DefaultID returns the current default provider ID.
func (r *Router) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults
}

// SetFallbacks configures the providers tried after the default fails.
func (r *Router) SetFallbacks(providerIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append([]string(nil), providerIDs...)
}

// GetProvider returns a provider by ID.
func (r *Router) GetProvider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Complete implements Completer. The last soft error is returned when every
// provider fails.
func (r *Router) Complete(ctx context.Context, prompt string, maxTokens int) string {
	r.mu.RLock()
	chain := make([]Provider, 0, 1+len(r.fallbacks))
	if p, ok := r.providers[r.defaults]; ok {
		chain = append(chain, p)
	}
	for _, id := range r.fallbacks {
		if p, ok := r.providers[id]; ok && id != r.defaults {
			chain = append(chain, p)
		}
	}
	r.mu.RUnlock()

	if len(chain) == 0 {
		return ErrorPrefix + " no generative provider configured"
	}
	chain = credentialed(chain)

	var text string
	for i, p := range chain {
		text = p.Complete(ctx, prompt, maxTokens)
		if !IsSoftError(text) {
			return text
		}
		if i+1 < len(chain) {
			r.logger.Warn("provider failed, trying fallback",
				zap.String("provider", p.ID()),
				zap.String("next", chain[i+1].ID()))
		}
	}
	return text
}

// credentialed drops providers without a credential, whose canned labels
// would otherwise end the chain. With nothing configured the chain is kept.
func credentialed(chain []Provider) []Provider {
	out := make([]Provider, 0, len(chain))
	for _, p := range chain {
		if c, ok := p.(interface{ Configured() bool }); ok && !c.Configured() {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return chain
	}
	return out
}
