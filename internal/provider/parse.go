package provider

import (
	"strings"

	"github.com/tidwall/gjson"
)

// responseParser extracts completion text from one known response shape.
type responseParser struct {
	name  string
	parse func(resp gjson.Result) (string, bool)
}

// responseParsers are tried in order; the first to produce text wins.
var responseParsers = []responseParser{
	{name: "candidates", parse: parseCandidates},
	{name: "output-wrapper", parse: parseOutputWrapper},
	{name: "top-level", parse: parseTopLevel},
	{name: "choices", parse: parseChoices},
}

// ExtractText normalizes a generative API response body into plain text.
// It returns false when the body is not JSON or no parser recognizes it.
func ExtractText(body []byte) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	resp := gjson.ParseBytes(body)
	if !resp.IsObject() {
		return "", false
	}
	for _, p := range responseParsers {
		if text, ok := p.parse(resp); ok {
			return text, true
		}
	}
	return "", false
}

// parseCandidates handles {"candidates":[...]} where each candidate is a
// string, carries "text", or wraps its text in content/output/response as a
// string, a {"parts":[...]} object, or a list of blocks.
func parseCandidates(resp gjson.Result) (string, bool) {
	candidates := resp.Get("candidates")
	if !candidates.IsArray() {
		return "", false
	}
	var parts []string
	for _, c := range candidates.Array() {
		if c.Type == gjson.String {
			parts = append(parts, c.String())
			continue
		}
		if !c.IsObject() {
			continue
		}
		if t := c.Get("text"); t.Type == gjson.String {
			parts = append(parts, t.String())
			continue
		}
		content := firstExisting(c, "content", "output", "response")
		switch {
		case !content.Exists():
		case content.Type == gjson.String:
			parts = append(parts, content.String())
		case content.IsObject():
			parts = append(parts, contentObjectText(content)...)
		case content.IsArray():
			for _, item := range content.Array() {
				parts = append(parts, blockText(item)...)
			}
		default:
			parts = append(parts, content.String())
		}
	}
	return joinNonEmpty(parts)
}

// parseOutputWrapper handles {"output"|"response"|"result": {"text": ...}}
// and the same wrappers holding a list of content blocks.
func parseOutputWrapper(resp gjson.Result) (string, bool) {
	out := firstExisting(resp, "output", "response", "result")
	if !out.IsObject() {
		return "", false
	}
	if t := out.Get("text"); t.Type == gjson.String {
		return joinNonEmpty([]string{t.String()})
	}
	blocks := out.Get("content")
	if !blocks.IsArray() {
		return "", false
	}
	var texts []string
	for _, b := range blocks.Array() {
		if t := b.Get("text"); t.Type == gjson.String {
			texts = append(texts, t.String())
		}
	}
	return joinNonEmpty(texts)
}

// parseTopLevel handles flat responses with the text at the root.
func parseTopLevel(resp gjson.Result) (string, bool) {
	for _, key := range []string{"content", "outputText", "response"} {
		if v := resp.Get(key); v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			return strings.TrimSpace(v.String()), true
		}
	}
	return "", false
}

// parseChoices handles OpenAI-compatible chat and completion responses.
func parseChoices(resp gjson.Result) (string, bool) {
	choices := resp.Get("choices")
	if !choices.IsArray() {
		return "", false
	}
	var texts []string
	for _, c := range choices.Array() {
		if t := c.Get("message.content"); t.Type == gjson.String {
			texts = append(texts, t.String())
		} else if t := c.Get("text"); t.Type == gjson.String {
			texts = append(texts, t.String())
		}
	}
	return joinNonEmpty(texts)
}

func contentObjectText(content gjson.Result) []string {
	if ps := content.Get("parts"); ps.IsArray() {
		var texts []string
		for _, p := range ps.Array() {
			if t := p.Get("text"); t.Exists() && t.String() != "" {
				texts = append(texts, t.String())
			}
		}
		return texts
	}
	if t := content.Get("text"); t.Type == gjson.String {
		return []string{t.String()}
	}
	return []string{content.Raw}
}

func blockText(item gjson.Result) []string {
	if item.Type == gjson.String {
		return []string{item.String()}
	}
	if !item.IsObject() {
		return nil
	}
	if t := item.Get("text"); t.Type == gjson.String {
		return []string{t.String()}
	}
	if t := item.Get("output_text"); t.Type == gjson.String {
		return []string{t.String()}
	}
	if ps := item.Get("parts"); ps.IsArray() {
		var texts []string
		for _, p := range ps.Array() {
			if t := p.Get("text"); t.Exists() && t.String() != "" {
				texts = append(texts, t.String())
			}
		}
		return texts
	}
	return []string{item.Raw}
}

func firstExisting(obj gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := obj.Get(k); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func joinNonEmpty(parts []string) (string, bool) {
	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	text := strings.TrimSpace(strings.Join(kept, "\n"))
	return text, text != ""
}
