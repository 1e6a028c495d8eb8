package memcache

import (
	"context"
	"errors"
	"math"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/unkn0wn-root/cachekit/backend"
)

func TestExpiration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cases := []struct {
		ttl  time.Duration
		want int32
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{maxRelative, int32(maxRelative / time.Second)},
		{maxRelative + time.Second, int32(now.Unix()) + int32(maxRelative/time.Second) + 1},
		{12 * 365 * 24 * time.Hour, int32(now.Unix() + 12*365*24*3600)},
		{15 * 365 * 24 * time.Hour, math.MaxInt32},
		{20 * 365 * 24 * time.Hour, math.MaxInt32},
		{time.Duration(math.MaxInt64), math.MaxInt32},
	}
	for _, tc := range cases {
		if got := expiration(tc.ttl, now); got != tc.want {
			t.Fatalf("expiration(%v) = %d want %d", tc.ttl, got, tc.want)
		}
	}

	later := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	if got := expiration(12*365*24*time.Hour, later); got != math.MaxInt32 {
		t.Fatalf("expiration past 2038 = %d want %d", got, int32(math.MaxInt32))
	}
}

func TestParseCounterTrimsPadding(t *testing.T) {
	n, err := ParseCounter([]byte("9  "))
	if err != nil || n != 9 {
		t.Fatalf("got %d err=%v", n, err)
	}
}

func TestNewRejectsBadServer(t *testing.T) {
	_, err := New(Config{Options: backend.Options{Ports: []int{70000}}})
	if err == nil {
		t.Fatalf("expected an address error")
	}
}

// newLiveMemcache connects to MEMCACHE_ADDR (host:port) or skips.
func newLiveMemcache(t *testing.T) *Memcache {
	t.Helper()
	addr := os.Getenv("MEMCACHE_ADDR")
	if addr == "" {
		t.Skip("MEMCACHE_ADDR not set")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := strconv.Atoi(port)
	m, err := New(Config{Options: backend.Options{Hosts: []string{host}, Ports: []int{p}, Timeout: time.Second}})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestLiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newLiveMemcache(t)

	if _, ok, err := m.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if _, err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if b, ok, _ := m.Get(ctx, "k"); !ok || string(b) != "v" {
		t.Fatalf("Get: %q ok=%v", b, ok)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("deleting an absent key must not fail: %v", err)
	}
}

func TestLiveCountersAndAdd(t *testing.T) {
	ctx := context.Background()
	m := newLiveMemcache(t)

	if _, found, err := m.Increment(ctx, "n", 1); err != nil || found {
		t.Fatalf("absent: found=%v err=%v", found, err)
	}
	if stored, err := m.Add(ctx, "n", []byte("4"), 0); err != nil || !stored {
		t.Fatalf("Add: stored=%v err=%v", stored, err)
	}
	if stored, _ := m.Add(ctx, "n", []byte("9"), 0); stored {
		t.Fatalf("Add must not overwrite")
	}
	if n, _, err := m.Increment(ctx, "n", 6); err != nil || n != 10 {
		t.Fatalf("Increment: n=%d err=%v", n, err)
	}

	_, _ = m.Set(ctx, "s", []byte("text"), 0)
	if _, _, err := m.Increment(ctx, "s", 1); !errors.Is(err, backend.ErrNotInteger) {
		t.Fatalf("expected ErrNotInteger, got %v", err)
	}
}
