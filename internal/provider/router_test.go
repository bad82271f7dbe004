package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func TestRouterUsesDefault(t *testing.T) {
	r := NewRouter(zap.NewNop())
	a := &scriptedCompleter{id: "a", replies: []string{"from a"}}
	b := &scriptedCompleter{id: "b", replies: []string{"from b"}}
	r.Register(a)
	r.Register(b)

	if r.DefaultID() != "a" {
		t.Fatalf("default = %q, want first registered", r.DefaultID())
	}
	if got := r.Complete(t.Context(), "x", 10); got != "from a" {
		t.Errorf("Complete = %q", got)
	}
	r.SetDefault("b")
	if got := r.Complete(t.Context(), "x", 10); got != "from b" {
		t.Errorf("Complete after SetDefault = %q", got)
	}
}

func TestRouterFallsBackOnSoftError(t *testing.T) {
	r := NewRouter(zap.NewNop())
	primary := &scriptedCompleter{id: "primary", replies: []string{"Error: down"}}
	backup := &scriptedCompleter{id: "backup", replies: []string{"rescued"}}
	r.Register(primary)
	r.Register(backup)
	r.SetFallbacks([]string{"missing", "backup"})

	if got := r.Complete(t.Context(), "x", 10); got != "rescued" {
		t.Fatalf("Complete = %q", got)
	}
	if len(primary.prompts) != 1 || len(backup.prompts) != 1 {
		t.Errorf("calls: primary %d backup %d", len(primary.prompts), len(backup.prompts))
	}
}

func TestRouterReturnsLastSoftError(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&scriptedCompleter{id: "a", replies: []string{"Error: a"}})
	r.Register(&scriptedCompleter{id: "b", replies: []string{"Error: b"}})
	r.SetFallbacks([]string{"b"})

	if got := r.Complete(t.Context(), "x", 10); got != "Error: b" {
		t.Errorf("Complete = %q", got)
	}
}

func TestRouterEmpty(t *testing.T) {
	r := NewRouter(zap.NewNop())
	if got := r.Complete(t.Context(), "x", 10); !IsSoftError(got) {
		t.Errorf("Complete on empty router = %q", got)
	}
}

func TestRouterSkipsKeylessDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"intent":"SHOW_ORDERS"}`}}},
		})
	}))
	defer srv.Close()

	r := NewRouter(zap.NewNop())
	r.Register(NewGeminiProvider(ProviderConfig{ID: "gemini"}, zap.NewNop()))
	r.Register(NewOpenAIProvider(ProviderConfig{ID: "openai", Endpoint: srv.URL, APIKey: "sk-test"}, zap.NewNop()))
	r.SetDefault("gemini")
	r.SetFallbacks([]string{"openai"})

	got := ExtractJSON(t.Context(), r, "classify: show my orders", 64, 1)
	if got["intent"] != "SHOW_ORDERS" {
		t.Fatalf("ExtractJSON = %v", got)
	}
	if calls.Load() != 1 {
		t.Errorf("openai calls = %d, want 1", calls.Load())
	}
}

func TestRouterKeepsKeylessChainWhenNothingConfigured(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(NewGeminiProvider(ProviderConfig{ID: "gemini"}, zap.NewNop()))
	r.Register(NewOpenAIProvider(ProviderConfig{ID: "openai"}, zap.NewNop()))
	r.SetFallbacks([]string{"openai"})

	if got := r.Complete(t.Context(), "show my orders", 16); IsSoftError(got) || got == "" {
		t.Errorf("Complete = %q, want a canned label", got)
	}
}
