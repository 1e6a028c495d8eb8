package bigcache

import (
	"context"
	"testing"
	"time"
)

func newTestBigCache(t *testing.T) *BigCache {
	t.Helper()
	b, err := New(Config{
		LifeWindow:         time.Minute,
		Shards:             16,
		MaxEntriesInWindow: 1000,
		MaxEntrySize:       256,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	b := newTestBigCache(t)

	if _, ok, err := b.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	// the ttl argument is ignored in favour of LifeWindow
	if ok, err := b.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	if v, ok, _ := b.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("Get: %q ok=%v", v, ok)
	}
	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatalf("deleting an absent key must not fail: %v", err)
	}
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	b := newTestBigCache(t)

	_, _ = b.Set(ctx, "a", []byte("1"), 0)
	_, _ = b.Set(ctx, "b", []byte("2"), 0)
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 {
		t.Fatalf("Flush left %d entries", b.Len())
	}
}
