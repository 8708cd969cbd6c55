package cache

import (
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	c := New[int](2, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Error("Get() on empty cache = hit, want miss")
	}

	c.Set("a", 1)
	c.Set("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	// "a" was just touched, so adding "c" evicts "b"
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) = hit after eviction, want miss")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) after eviction = %d, %v; want 1, true", v, ok)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New[string](10, 10*time.Millisecond)
	c.Set("k", "v")
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("Get() = hit past TTL, want miss")
	}
	if n := c.PurgeExpired(); n != 0 {
		// Get already removed it
		t.Errorf("PurgeExpired() = %d, want 0", n)
	}
}

func TestCacheInvalidatePrefix(t *testing.T) {
	c := New[int](10, time.Minute)
	c.Set("u1:recommend:dining", 1)
	c.Set("u1:portfolio", 2)
	c.Set("u2:portfolio", 3)

	if n := c.InvalidatePrefix("u1:"); n != 2 {
		t.Errorf("InvalidatePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("u1:portfolio"); ok {
		t.Error("u1 entry survived prefix invalidation")
	}
	if _, ok := c.Get("u2:portfolio"); !ok {
		t.Error("u2 entry was wrongly invalidated")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}
