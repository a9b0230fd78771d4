package cache

import (
	"testing"
	"time"
)

func TestTTLCache_Expiry(t *testing.T) {
	c := NewTTLCache[string, int]()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v, want 1, true", v, ok)
	}

	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to expire")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("Get(b) = %v, %v, want 2, true", v, ok)
	}

	c.Delete("b")
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be deleted")
	}
}

func TestTTLCache_NilSafe(t *testing.T) {
	var c *TTLCache[string, int]
	c.Set("a", 1, time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("nil cache must always miss")
	}
}
