package provider

import (
	"context"
	"encoding/json"
	"strings"
)

const jsonDirective = "Please respond with ONLY a valid JSON object (no surrounding markdown or text). "

// ExtractJSON asks the completer for a JSON object and parses it leniently.
// Each round tries the whole completion, then the span from the first "{" to
// the last "}". Soft errors count as failed rounds. It returns nil when every
// round fails.
func ExtractJSON(ctx context.Context, c Completer, prompt string, maxTokens, retries int) map[string]any {
	if retries < 1 {
		retries = 1
	}
	full := jsonDirective + prompt
	for range retries {
		if ctx.Err() != nil {
			return nil
		}
		text := c.Complete(ctx, full, maxTokens)
		if IsSoftError(text) {
			continue
		}
		if obj := parseObject(text); obj != nil {
			return obj
		}
	}
	return nil
}

func parseObject(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj != nil {
		return obj
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}
	obj = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err == nil && obj != nil {
		return obj
	}
	return nil
}
