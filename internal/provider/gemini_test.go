package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// recorder captures the calls a fake upstream receives.
type recorder struct {
	mu    sync.Mutex
	calls []*http.Request
}

func (r *recorder) add(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req.Clone(req.Context()))
}

func (r *recorder) posts() []*http.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*http.Request
	for _, c := range r.calls {
		if c.Method == http.MethodPost {
			out = append(out, c)
		}
	}
	return out
}

func parseDiagnostics(t *testing.T, text string) []Attempt {
	t.Helper()
	_, raw, ok := strings.Cut(text, "diagnostics: ")
	if !ok {
		t.Fatalf("no diagnostics in %q", text)
	}
	var d struct {
		Message  string    `json:"message"`
		Attempts []Attempt `json:"attempts"`
	}
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	return d.Attempts
}

func TestGeminiCannedLabelsWithoutKey(t *testing.T) {
	p := NewGeminiProvider(ProviderConfig{ID: "gemini"}, zap.NewNop())

	tests := []struct {
		prompt string
		want   string
	}{
		{"Show me every product", "INTENT:SHOW_PRODUCTS"},
		{"list the variants", "INTENT:SHOW_VARIANTS"},
		{"add this to my cart", "INTENT:ADD_TO_CART"},
		{"what would a hospital need", "INTENT:SUGGEST_BULK"},
		{"hello there", "INTENT:CHAT"},
	}
	for _, tt := range tests {
		if got := p.Complete(t.Context(), tt.prompt, 64); got != tt.want {
			t.Errorf("Complete(%q) = %q, want %q", tt.prompt, got, tt.want)
		}
	}
}

func TestGeminiDiscoveryPrefersAdvertisedOperation(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/models":
			json.NewEncoder(w).Encode(map[string]any{"models": []any{
				map[string]any{"name": "models/embedding-001", "supportedGenerationMethods": []string{"embedContent"}},
				map[string]any{"name": "models/gemini-1.5-flash", "supportedGenerationMethods": []string{"generateContent"}},
			}})
		case r.URL.Path == "/v1/models/gemini-1.5-flash:generateContent":
			json.NewEncoder(w).Encode(map[string]any{"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": "hello from gemini"}}}},
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{ID: "gemini", Endpoint: srv.URL, APIKey: "AIzaTESTKEY"}, zap.NewNop())
	got := p.Complete(t.Context(), "say hello", 64)
	if got != "hello from gemini" {
		t.Fatalf("Complete = %q", got)
	}

	posts := rec.posts()
	if len(posts) != 1 {
		t.Fatalf("expected a single POST, got %d", len(posts))
	}
	if posts[0].URL.Query().Get("key") != "AIzaTESTKEY" {
		t.Errorf("API key not sent as query param: %s", posts[0].URL.String())
	}
	if posts[0].Header.Get("Authorization") != "" {
		t.Error("API key must not be sent as a bearer token")
	}
}

func TestGeminiNegotiatesPastFailures(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		if r.URL.Path == "/v1beta2/models/text-bison-001:generateText" {
			json.NewEncoder(w).Encode(map[string]any{"candidates": []any{map[string]any{"output": "beta answer"}}})
			return
		}
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{ID: "gemini", Endpoint: srv.URL, APIKey: "ya29.token"}, zap.NewNop())
	got := p.Complete(t.Context(), "anything", 64)
	if got != "beta answer" {
		t.Fatalf("Complete = %q", got)
	}

	posts := rec.posts()
	if len(posts) != 2 {
		t.Fatalf("expected 2 POSTs (v1 then v1beta2), got %d", len(posts))
	}
	for _, req := range posts {
		if req.Header.Get("Authorization") != "Bearer ya29.token" {
			t.Errorf("missing bearer header on %s", req.URL.Path)
		}
		if req.URL.Query().Has("key") {
			t.Errorf("token leaked into query: %s", req.URL.String())
		}
	}
}

func TestGeminiExhaustionReturnsMaskedDiagnostics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"unexpected":true}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{ID: "gemini", Endpoint: srv.URL, APIKey: "AIzaSECRET"}, zap.NewNop())
	got := p.Complete(t.Context(), "anything", 64)

	if !IsSoftError(got) {
		t.Fatalf("expected soft error, got %q", got)
	}
	if strings.Contains(got, "AIzaSECRET") {
		t.Fatal("diagnostics leak the API key")
	}
	attempts := parseDiagnostics(t, got)
	// 3 urls x (1 + 1 + 3) bodies
	if len(attempts) != 15 {
		t.Fatalf("expected 15 attempts, got %d", len(attempts))
	}
	for _, a := range attempts {
		if !strings.Contains(a.URL, "key=***") {
			t.Errorf("unmasked url %q", a.URL)
		}
		if a.Status != "invalid-response" {
			t.Errorf("status = %q, want invalid-response", a.Status)
		}
	}
	if attempts[0].Op != OpGenerateText || attempts[len(attempts)-1].Op != OpGenerateContent {
		t.Errorf("unexpected operation order: first %s last %s", attempts[0].Op, attempts[len(attempts)-1].Op)
	}
}

func TestGeminiAttemptCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{ID: "gemini", Endpoint: srv.URL, APIKey: "AIzaX", MaxAttempts: 2}, zap.NewNop())
	got := p.Complete(t.Context(), "anything", 64)
	attempts := parseDiagnostics(t, got)
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	if attempts[0].Status != "503" {
		t.Errorf("status = %q, want 503", attempts[0].Status)
	}
}

func TestGeminiBudgetBoundsNegotiation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{
		ID:             "gemini",
		Endpoint:       srv.URL,
		APIKey:         "AIzaX",
		AttemptTimeout: 40 * time.Millisecond,
		Budget:         150 * time.Millisecond,
	}, zap.NewNop())

	start := time.Now()
	got := p.Complete(t.Context(), "anything", 64)
	if !IsSoftError(got) {
		t.Fatalf("expected soft error, got %q", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("negotiation took %v", elapsed)
	}
}

func TestGeminiDiscoveryIsCached(t *testing.T) {
	var listCalls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			mu.Lock()
			listCalls++
			mu.Unlock()
			json.NewEncoder(w).Encode(map[string]any{"models": []any{map[string]any{"name": "models/text-bison-001"}}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{map[string]any{"output": "ok"}}})
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{ID: "gemini", Endpoint: srv.URL, APIKey: "AIzaX"}, zap.NewNop())
	for range 3 {
		if got := p.Complete(t.Context(), "x", 16); got != "ok" {
			t.Fatalf("Complete = %q", got)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if listCalls != 1 {
		t.Errorf("models listed %d times, want 1", listCalls)
	}
}

func TestGeminiListModelsEscapesKey(t *testing.T) {
	const key = "AIza+a/b&c=d"
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		json.NewEncoder(w).Encode(map[string]any{"models": []any{map[string]any{"name": "models/gemini-1.5-flash"}}})
	}))
	defer srv.Close()

	p := NewGeminiProvider(ProviderConfig{ID: "gemini", Endpoint: srv.URL, APIKey: key}, zap.NewNop())
	models, err := p.ListModels(t.Context())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("models = %+v", models)
	}
	if gotKey != key {
		t.Errorf("key = %q, want %q", gotKey, key)
	}
}

func TestSelectModel(t *testing.T) {
	models := []Model{
		{Name: "models/chat-bison-001"},
		{Name: "models/gemini-1.5-pro"},
		{Name: "models/gemini-2.0-flash"},
	}
	tests := []struct {
		name       string
		configured string
		models     []Model
		want       string
	}{
		{"configured listed", "gemini-1.5-pro", models, "gemini-1.5-pro"},
		{"preference order", "text-bison-001", models, "gemini-2.0-flash"},
		{"first listed", "text-bison-001", []Model{{Name: "models/other"}}, "other"},
		{"nothing listed", "text-bison-001", nil, "text-bison-001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := selectModel(tt.configured, tt.models)
			if got != tt.want {
				t.Errorf("selectModel = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMaskURL(t *testing.T) {
	got := MaskURL("https://x/v1/models/m:generateText?key=AIzaSECRET&alt=json")
	want := "https://x/v1/models/m:generateText?key=***&alt=json"
	if got != want {
		t.Errorf("MaskURL = %q, want %q", got, want)
	}
}
