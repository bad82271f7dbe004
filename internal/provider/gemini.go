package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com"
	defaultGeminiModel    = "text-bison-001"
	defaultMaxTokens      = 512
	discoveryTimeout      = 6 * time.Second
	maxResponseBytes      = 4 << 20
)

// modelPreferences picks a substitute when the configured model is not listed.
var modelPreferences = []string{"gemini-2.0", "gemini-1.5", "gemini-2.5", "text-bison-001", "chat-bison-001"}

// GeminiProvider talks to the Google generative language API. The API's
// operation names, version paths and request envelopes differ between models
// and key types, so each completion probes a table of strategies until one
// returns text.
type GeminiProvider struct {
	config       ProviderConfig
	client       *http.Client
	cache        ModelCache
	operations   []Operation
	urlTemplates []URLTemplate
	logger       *zap.Logger
}

// GeminiOption customizes a GeminiProvider.
type GeminiOption func(*GeminiProvider)

// WithModelCache shares discovery results through the given cache.
func WithModelCache(c ModelCache) GeminiOption {
	return func(p *GeminiProvider) { p.cache = c }
}

// WithStrategies replaces the operation and URL tables.
func WithStrategies(ops []Operation, urls []URLTemplate) GeminiOption {
	return func(p *GeminiProvider) {
		p.operations = ops
		p.urlTemplates = urls
	}
}

// WithHTTPClient sets the client used for every upstream call.
func WithHTTPClient(c *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.client = c }
}

// NewGeminiProvider creates a provider. An empty APIKey is valid: Complete
// then answers with canned labels and makes no network calls.
func NewGeminiProvider(cfg ProviderConfig, logger *zap.Logger, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		config:       cfg.withDefaults(defaultGeminiEndpoint, defaultGeminiModel),
		client:       &http.Client{},
		operations:   DefaultOperations,
		urlTemplates: DefaultURLTemplates,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cache == nil {
		p.cache = NewMemoryCache()
	}
	return p
}

func (p *GeminiProvider) ID() string   { return p.config.ID }
func (p *GeminiProvider) Name() string { return p.config.Name }

// Configured reports whether a credential is set.
func (p *GeminiProvider) Configured() bool { return strings.TrimSpace(p.config.APIKey) != "" }

// keyInQuery reports whether the credential is an API key (sent as ?key=)
// rather than an access token (sent as a bearer header).
func (p *GeminiProvider) keyInQuery() bool {
	return strings.HasPrefix(p.config.APIKey, "AIza")
}

func (p *GeminiProvider) authorize(req *http.Request) {
	if p.config.APIKey != "" && !p.keyInQuery() {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
}

// Complete returns completion text, or a diagnostic string starting with
// ErrorPrefix when every strategy failed.
func (p *GeminiProvider) Complete(ctx context.Context, prompt string, maxTokens int) string {
	if !p.Configured() {
		return cannedLabel(prompt)
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Budget)
	defer cancel()

	model, info := p.resolveModel(ctx)

	var (
		attempts []Attempt
		lastErr  string
	)
	for s := range p.plan(model, info, prompt, maxTokens) {
		if len(attempts) >= p.config.MaxAttempts {
			lastErr = fmt.Sprintf("%s attempt limit of %d reached", ErrorPrefix, p.config.MaxAttempts)
			break
		}
		if err := ctx.Err(); err != nil {
			lastErr = fmt.Sprintf("%s request budget exhausted (%v)", ErrorPrefix, err)
			break
		}
		text, attempt, err := p.try(ctx, model, s)
		attempts = append(attempts, attempt)
		if err == nil {
			return text
		}
		lastErr = ErrorPrefix + " " + err.Error()
	}
	return diagnostics(lastErr, attempts)
}

type attemptError struct {
	status string
	err    error
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

// try performs one strategy and always returns an Attempt for diagnostics.
func (p *GeminiProvider) try(ctx context.Context, model string, s Strategy) (string, Attempt, error) {
	masked := MaskURL(s.URL)
	attempt := Attempt{URL: masked, Op: s.Op, Request: bodyDigest(s.Body)}

	text, status, respBody, err := p.call(ctx, s)
	attempt.Response = digest(respBody)
	if err != nil {
		var ae *attemptError
		if errors.As(err, &ae) {
			attempt.Status = ae.status
		} else {
			attempt.Status = "exception"
		}
		p.logger.Warn("generative call failed",
			zap.String("url", masked),
			zap.String("op", s.Op),
			zap.String("model", model),
			zap.Strings("body_keys", bodyKeys(s.Body)),
			zap.String("status", attempt.Status),
			zap.Error(err))
		return "", attempt, err
	}
	attempt.Status = status
	return text, attempt, nil
}

func (p *GeminiProvider) call(ctx context.Context, s Strategy) (text, status, respBody string, err error) {
	payload, err := json.Marshal(s.Body)
	if err != nil {
		return "", "", "", &attemptError{status: "exception", err: fmt.Errorf("marshal request: %w", err)}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.config.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return "", "", "", &attemptError{status: "exception", err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	p.authorize(req)

	p.logger.Info("generative call",
		zap.String("url", MaskURL(s.URL)),
		zap.String("op", s.Op),
		zap.Strings("body_keys", bodyKeys(s.Body)))

	resp, err := p.client.Do(req)
	if err != nil {
		// Transport errors can echo the request URL.
		msg := MaskURL(err.Error())
		return "", "", msg, &attemptError{status: "request-failed", err: fmt.Errorf("failed to connect to generative API (%s)", msg)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", "", "", &attemptError{status: "request-failed", err: fmt.Errorf("read response: %w", err)}
	}
	code := fmt.Sprintf("%d", resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", string(raw), &attemptError{
			status: code,
			err:    fmt.Errorf("generative API HTTP %d: %s", resp.StatusCode, digest(string(raw))),
		}
	}

	text, ok := ExtractText(raw)
	if !ok {
		return "", "", string(raw), &attemptError{
			status: "invalid-response",
			err:    errors.New("generative API returned an empty or unrecognized response"),
		}
	}
	return text, code, string(raw), nil
}

// resolveModel returns the model to call and its metadata when discovery
// succeeded. Discovery is best-effort; failures fall back to the configured
// model with no capability hints.
func (p *GeminiProvider) resolveModel(ctx context.Context) (string, *Model) {
	key := cacheKey(p.config.Endpoint, p.config.APIKey)
	models, ok := p.cache.Get(ctx, key)
	if !ok {
		var err error
		models, err = p.listModels(ctx)
		if err != nil {
			p.logger.Debug("model discovery failed", zap.Error(err))
			return p.config.Model, nil
		}
		p.cache.Set(ctx, key, models, p.config.ModelCacheTTL)
	}
	return selectModel(p.config.Model, models)
}

// ListModels returns the models visible to the configured credential.
func (p *GeminiProvider) ListModels(ctx context.Context) ([]Model, error) {
	return p.listModels(ctx)
}

func (p *GeminiProvider) listModels(ctx context.Context) ([]Model, error) {
	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	u := p.config.Endpoint + "/v1/models"
	if p.keyInQuery() {
		u += "?key=" + url.QueryEscape(p.config.APIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %s", MaskURL(err.Error()))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list models: HTTP %d", resp.StatusCode)
	}

	var result struct {
		Models []Model `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	return result.Models, nil
}

// selectModel keeps the configured model when listed, otherwise substitutes
// the first listed model matching a preference, otherwise the first listed.
func selectModel(configured string, models []Model) (string, *Model) {
	if len(models) == 0 {
		return configured, nil
	}
	byShort := make(map[string]*Model, len(models))
	for i := range models {
		byShort[models[i].ShortName()] = &models[i]
	}
	if m, ok := byShort[configured]; ok {
		return configured, m
	}
	for _, pref := range modelPreferences {
		for i := range models {
			if strings.Contains(models[i].ShortName(), pref) {
				return models[i].ShortName(), &models[i]
			}
		}
	}
	return models[0].ShortName(), &models[0]
}

// diagnostics renders the soft-failure string returned after exhaustion.
func diagnostics(lastErr string, attempts []Attempt) string {
	if lastErr == "" {
		lastErr = ErrorPrefix + " generative API call failed (no endpoints succeeded)"
	}
	if attempts == nil {
		attempts = []Attempt{}
	}
	detail, err := json.Marshal(struct {
		Message  string    `json:"message"`
		Attempts []Attempt `json:"attempts"`
	}{Message: lastErr, Attempts: attempts})
	if err != nil {
		return lastErr
	}
	return ErrorPrefix + " generative API call failed; diagnostics: " + string(detail)
}
