package provider

import (
	"fmt"
	"iter"
	"net/url"
)

// Generation operations exposed by the generative language API. Different
// models and API versions accept different subsets.
const (
	OpGenerateText    = "generateText"
	OpGenerateMessage = "generateMessage"
	OpGenerateContent = "generateContent"
)

// BodyBuilder renders one request envelope for a prompt.
type BodyBuilder func(prompt string, maxTokens int) map[string]any

// Operation pairs an operation name with the envelopes to try for it, in order.
type Operation struct {
	Name   string
	Bodies []BodyBuilder
}

// URLTemplate describes one endpoint candidate. An empty Op means "the
// operation being tried"; a fixed Op is always appended regardless.
type URLTemplate struct {
	Version string
	Op      string
}

// Strategy is a single concrete call: operation, full URL and request body.
type Strategy struct {
	Op   string
	URL  string
	Body map[string]any
}

// DefaultOperations lists operations in preference order with every envelope
// seen across API versions.
var DefaultOperations = []Operation{
	{
		Name: OpGenerateText,
		Bodies: []BodyBuilder{
			func(prompt string, maxTokens int) map[string]any {
				return map[string]any{
					"prompt":          map[string]any{"text": prompt},
					"temperature":     0.2,
					"maxOutputTokens": maxTokens,
				}
			},
		},
	},
	{
		Name: OpGenerateMessage,
		Bodies: []BodyBuilder{
			func(prompt string, _ int) map[string]any {
				return map[string]any{
					"messages": []any{map[string]any{
						"author":  "user",
						"content": []any{map[string]any{"type": "text", "text": prompt}},
					}},
					"temperature":    0.2,
					"candidateCount": 1,
				}
			},
		},
	},
	{
		Name: OpGenerateContent,
		Bodies: []BodyBuilder{
			func(prompt string, _ int) map[string]any {
				return map[string]any{
					"contents": []any{map[string]any{"parts": []any{map[string]any{"text": prompt}}}},
				}
			},
			func(prompt string, maxTokens int) map[string]any {
				return map[string]any{
					"contents": []any{map[string]any{"parts": []any{map[string]any{"text": prompt}}}},
					"generationConfig": map[string]any{
						"temperature":     0.2,
						"maxOutputTokens": maxTokens,
					},
				}
			},
			func(prompt string, _ int) map[string]any {
				return map[string]any{
					"content":        []any{map[string]any{"type": "text", "text": prompt}},
					"candidateCount": 1,
				}
			},
		},
	},
}

// DefaultURLTemplates tries the stable and beta paths for the operation, then
// the message endpoint that some models expose exclusively.
var DefaultURLTemplates = []URLTemplate{
	{Version: "v1"},
	{Version: "v1beta2"},
	{Version: "v1", Op: OpGenerateMessage},
}

// orderOperations puts operations the model advertises first, keeping the
// table order within each group.
func orderOperations(ops []Operation, model *Model) []Operation {
	if model == nil || len(model.SupportedGenerationMethods) == 0 {
		return ops
	}
	ordered := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if model.Supports(op.Name) {
			ordered = append(ordered, op)
		}
	}
	for _, op := range ops {
		if !model.Supports(op.Name) {
			ordered = append(ordered, op)
		}
	}
	return ordered
}

// plan yields strategies lazily in (operation, url, body) order so the caller
// can stop at the first success without building the whole product.
func (p *GeminiProvider) plan(model string, info *Model, prompt string, maxTokens int) iter.Seq[Strategy] {
	ops := orderOperations(p.operations, info)
	return func(yield func(Strategy) bool) {
		for _, op := range ops {
			for _, tmpl := range p.urlTemplates {
				target := op.Name
				if tmpl.Op != "" {
					target = tmpl.Op
				}
				u := p.modelURL(tmpl.Version, model, target)
				for _, build := range op.Bodies {
					if !yield(Strategy{Op: op.Name, URL: u, Body: build(prompt, maxTokens)}) {
						return
					}
				}
			}
		}
	}
}

func (p *GeminiProvider) modelURL(version, model, op string) string {
	u := fmt.Sprintf("%s/%s/models/%s:%s", p.config.Endpoint, version, url.PathEscape(model), op)
	if p.keyInQuery() {
		u += "?key=" + url.QueryEscape(p.config.APIKey)
	}
	return u
}
