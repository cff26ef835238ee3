package cache

import (
	"testing"
	"time"
)

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New[[]string](time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", []string{"a"})

	if v, ok := c.Get("k"); !ok || len(v) != 1 {
		t.Fatalf("expected cached value")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestCache_Delete(t *testing.T) {
	c := New[int](0)
	c.Set("k", 7)
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry removed")
	}
}
