package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemory_RoundTrip(t *testing.T) {
	c := NewMemory(4, time.Minute)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	c.Set(ctx, "k", []byte(`{"status":"SUCCESS"}`))
	v, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if string(v) != `{"status":"SUCCESS"}` {
		t.Fatalf("got %q", v)
	}
}

func TestMemory_EvictsBeyondCapacity(t *testing.T) {
	c := NewMemory(2, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))
	c.Set(ctx, "c", []byte("3"))

	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	if _, ok := c.Get(ctx, "c"); !ok {
		t.Fatal("newest entry must survive")
	}
}
