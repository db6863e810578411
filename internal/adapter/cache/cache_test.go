package cache

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New(8, time.Minute, slog.Default())
	ctx := context.Background()

	if _, ok := c.Get(ctx, "key"); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	c.Set(ctx, "key", "response", 0)
	v, ok := c.Get(ctx, "key")
	if !ok || v != "response" {
		t.Errorf("Get = %q, %v", v, ok)
	}
}

func TestEntriesExpire(t *testing.T) {
	c := New(8, 20*time.Millisecond, slog.Default())
	ctx := context.Background()

	c.Set(ctx, "k", "v", 0)
	time.Sleep(50 * time.Millisecond)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("entry should have expired")
	}
}

func TestEvictionAtCapacity(t *testing.T) {
	c := New(2, time.Minute, slog.Default())
	ctx := context.Background()

	c.Set(ctx, "a", "1", 0)
	c.Set(ctx, "b", "2", 0)
	c.Set(ctx, "c", "3", 0)

	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("oldest entry should be evicted")
	}
}
