package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// OpenAIProvider implements Provider for OpenAI-compatible chat APIs.
type OpenAIProvider struct {
	config ProviderConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(cfg ProviderConfig, logger *zap.Logger) *OpenAIProvider {
	cfg = cfg.withDefaults("https://api.openai.com/v1", "gpt-4o-mini")
	return &OpenAIProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.AttemptTimeout},
		logger: logger,
	}
}

func (p *OpenAIProvider) ID() string   { return p.config.ID }
func (p *OpenAIProvider) Name() string { return p.config.Name }

// Configured reports whether a credential is set.
func (p *OpenAIProvider) Configured() bool { return strings.TrimSpace(p.config.APIKey) != "" }

// chatURL builds the chat completions URL. If Extra["path_model"] is "true",
// the model name is inserted into the URL path.
func (p *OpenAIProvider) chatURL() string {
	if p.config.Extra["path_model"] == "true" {
		return p.config.Endpoint + "/" + p.config.Model + "/chat/completions"
	}
	return p.config.Endpoint + "/chat/completions"
}

// Complete sends a single-message chat request and returns the reply text.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string, maxTokens int) string {
	if !p.Configured() {
		return cannedLabel(prompt)
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Budget)
	defer cancel()

	body := map[string]any{
		"model":       p.config.Model,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": 0.2,
		"max_tokens":  maxTokens,
	}
	text, err := p.chat(ctx, body)
	if err != nil {
		p.logger.Warn("chat completion failed",
			zap.String("provider", p.config.ID),
			zap.String("model", p.config.Model),
			zap.Error(err))
		return ErrorPrefix + " " + err.Error()
	}
	return text
}

func (p *OpenAIProvider) chat(ctx context.Context, body map[string]any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatURL(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, digest(string(raw)))
	}

	text, ok := ExtractText(raw)
	if !ok {
		return "", fmt.Errorf("empty response from provider")
	}
	return text, nil
}
