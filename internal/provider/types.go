package provider

import (
	"context"
	"strings"
	"time"
)

// ErrorPrefix marks a soft failure returned as text by Complete.
const ErrorPrefix = "Error:"

// Completer produces a text completion for a prompt. Implementations never
// return errors: failures come back as text starting with ErrorPrefix.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) string
}

// Provider is a named Completer that can be registered with a Router.
type Provider interface {
	Completer
	ID() string
	Name() string
}

// IsSoftError reports whether a completion is a diagnostic rather than text.
func IsSoftError(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), ErrorPrefix)
}

// Model describes a model returned by the discovery endpoint.
type Model struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName,omitempty"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods,omitempty"`
}

// ShortName strips the "models/" style prefix from the model name.
func (m Model) ShortName() string {
	if i := strings.LastIndex(m.Name, "/"); i >= 0 {
		return m.Name[i+1:]
	}
	return m.Name
}

// Supports reports whether the model advertises the given operation.
func (m Model) Supports(op string) bool {
	for _, s := range m.SupportedGenerationMethods {
		if s == op {
			return true
		}
	}
	return false
}

// Attempt records one upstream call made while negotiating an endpoint.
// URLs are masked; request and response bodies are truncated digests.
type Attempt struct {
	URL      string `json:"url"`
	Status   string `json:"status"`
	Request  string `json:"request"`
	Response string `json:"body"`
	Op       string `json:"op"`
}

// ProviderConfig holds configuration for a provider instance.
type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Model    string            `json:"model"`
	Extra    map[string]string `json:"extra,omitempty"`

	// AttemptTimeout bounds a single upstream call.
	AttemptTimeout time.Duration `json:"attempt_timeout,omitempty"`
	// Budget bounds a whole Complete call, discovery included.
	Budget time.Duration `json:"budget,omitempty"`
	// MaxAttempts caps the number of (operation, url, body) calls per Complete.
	MaxAttempts int `json:"max_attempts,omitempty"`
	// ModelCacheTTL controls how long discovery results are reused.
	ModelCacheTTL time.Duration `json:"model_cache_ttl,omitempty"`
}

func (c ProviderConfig) withDefaults(endpoint, model string) ProviderConfig {
	if c.Endpoint == "" {
		c.Endpoint = endpoint
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.Model == "" {
		c.Model = model
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 15 * time.Second
	}
	if c.Budget <= 0 {
		c.Budget = 45 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 24
	}
	if c.ModelCacheTTL <= 0 {
		c.ModelCacheTTL = 10 * time.Minute
	}
	return c
}
