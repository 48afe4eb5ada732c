package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Expected v, got %q (%v)", got, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryCacheNoTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	c.Set(ctx, "k", []byte("v"), 0)
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Errorf("Expected entry without ttl to persist, got %v", err)
	}

	c.Delete(ctx, "k")
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := SetJSON(ctx, c, "p", payload{Name: "tiers", Count: 3}, time.Minute); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	var got payload
	if err := GetJSON(ctx, c, "p", &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if got.Name != "tiers" || got.Count != 3 {
		t.Errorf("Expected {tiers 3}, got %+v", got)
	}

	if err := GetJSON(ctx, c, "missing", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
