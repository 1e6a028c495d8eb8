package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/cachekit/backend"
)

func newTestSQLite(t *testing.T, cfg Config) *SQLite {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s
}

func TestRejectsBadTableName(t *testing.T) {
	if _, err := New(Config{Table: "x; DROP TABLE y"}); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestSetGetDeleteFlush(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, Config{})

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if _, err := s.Set(ctx, "k", []byte("v1"), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set(ctx, "k", []byte("v2"), 0); err != nil {
		t.Fatal(err)
	}
	if b, ok, _ := s.Get(ctx, "k"); !ok || string(b) != "v2" {
		t.Fatalf("Get: %q ok=%v", b, ok)
	}
	if _, err := s.Set(ctx, "empty", nil, 0); err != nil {
		t.Fatal(err)
	}
	if b, ok, _ := s.Get(ctx, "empty"); !ok || len(b) != 0 {
		t.Fatalf("empty value: %q ok=%v", b, ok)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("deleting an absent key must not fail: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "empty"); ok {
		t.Fatalf("Flush should drop every row")
	}
}

func TestExpiryAndCleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	s := newTestSQLite(t, Config{Clock: clock, CleanupInterval: -1})

	_, _ = s.Set(ctx, "a", []byte("1"), time.Second)
	_, _ = s.Set(ctx, "b", []byte("2"), time.Hour)
	mu.Lock()
	now = now.Add(time.Second)
	mu.Unlock()

	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatalf("a should be expired")
	}
	if err := s.Cleanup(ctx); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM cachekit_entries`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("rows after cleanup = %d want 1", n)
	}
}

func TestAdd(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := newTestSQLite(t, Config{Clock: func() time.Time { return now }, CleanupInterval: -1})

	if stored, err := s.Add(ctx, "k", []byte("a"), time.Second); err != nil || !stored {
		t.Fatalf("first Add: stored=%v err=%v", stored, err)
	}
	if stored, _ := s.Add(ctx, "k", []byte("b"), 0); stored {
		t.Fatalf("Add over a live row must not store")
	}
	now = now.Add(time.Second)
	if stored, _ := s.Add(ctx, "k", []byte("c"), 0); !stored {
		t.Fatalf("Add over an expired row should store")
	}
	if b, _, _ := s.Get(ctx, "k"); string(b) != "c" {
		t.Fatalf("got %q", b)
	}
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, Config{Path: filepath.Join(t.TempDir(), "cache.db")})

	if _, found, err := s.Increment(ctx, "n", 1); err != nil || found {
		t.Fatalf("absent: found=%v err=%v", found, err)
	}
	_, _ = s.Set(ctx, "n", []byte("10"), 0)
	if n, found, err := s.Increment(ctx, "n", 5); err != nil || !found || n != 15 {
		t.Fatalf("Increment: n=%d found=%v err=%v", n, found, err)
	}
	if n, _, err := s.Decrement(ctx, "n", 20); err != nil || n != -5 {
		t.Fatalf("Decrement: n=%d err=%v", n, err)
	}
	if b, _, _ := s.Get(ctx, "n"); string(b) != "-5" {
		t.Fatalf("stored counter = %q", b)
	}

	_, _ = s.Set(ctx, "s", []byte("text"), 0)
	if _, found, err := s.Increment(ctx, "s", 1); !errors.Is(err, backend.ErrNotInteger) || !found {
		t.Fatalf("expected ErrNotInteger, found=%v err=%v", found, err)
	}
	// the failed increment must not leave a transaction open
	if _, err := s.Set(ctx, "after", []byte("x"), 0); err != nil {
		t.Fatalf("Set after failed increment: %v", err)
	}
}

func TestCounterOverflow(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, Config{})

	_, _ = s.Set(ctx, "n", []byte("9223372036854775807"), 0)
	if _, found, err := s.Increment(ctx, "n", 1); !errors.Is(err, backend.ErrCounterOverflow) || !found {
		t.Fatalf("expected ErrCounterOverflow, found=%v err=%v", found, err)
	}
	if b, _, _ := s.Get(ctx, "n"); string(b) != "9223372036854775807" {
		t.Fatalf("overflowing increment changed the value to %q", b)
	}
	// the rolled back transaction must not block later writes
	if _, err := s.Set(ctx, "after", []byte("x"), 0); err != nil {
		t.Fatalf("Set after overflow: %v", err)
	}
}
