package provider

import (
	"testing"
	"time"
)

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	models := []Model{{Name: "models/gemini-1.5-flash"}}
	c.Set(t.Context(), "k", models, time.Minute)

	got, ok := c.Get(t.Context(), "k")
	if !ok || len(got) != 1 || got[0].ShortName() != "gemini-1.5-flash" {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(t.Context(), "k"); ok {
		t.Error("entry should have expired")
	}
	if _, ok := c.Get(t.Context(), "missing"); ok {
		t.Error("missing key reported present")
	}
}

func TestCacheKeyHidesCredential(t *testing.T) {
	k1 := cacheKey("https://x", "AIzaSECRET")
	k2 := cacheKey("https://x", "AIzaOTHER")
	if k1 == k2 {
		t.Error("distinct credentials share a cache key")
	}
	if len(k1) != 16 {
		t.Errorf("key length = %d", len(k1))
	}
}
