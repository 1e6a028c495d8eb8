package redis

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/cachekit/backend"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	r, err := New(Config{Client: client, CloseClient: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	if err := r.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return mr, r
}

func optionsFor(t *testing.T, mrs ...*miniredis.Miniredis) backend.Options {
	t.Helper()
	var o backend.Options
	for _, mr := range mrs {
		port, err := strconv.Atoi(mr.Port())
		if err != nil {
			t.Fatal(err)
		}
		o.Hosts = append(o.Hosts, mr.Host())
		o.Ports = append(o.Ports, port)
	}
	return o
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	_, r := newTestRedis(t)

	if _, ok, err := r.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if ok, err := r.Set(ctx, "k", []byte("v"), 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	b, ok, err := r.Get(ctx, "k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("Get: %q ok=%v err=%v", b, ok, err)
	}
	if err := r.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(ctx, "k"); err != nil {
		t.Fatalf("deleting an absent key must not fail: %v", err)
	}
}

func TestTTL(t *testing.T) {
	ctx := context.Background()
	mr, r := newTestRedis(t)

	_, _ = r.Set(ctx, "short", []byte("v"), 2*time.Second)
	_, _ = r.Set(ctx, "forever", []byte("v"), 0)
	if mr.TTL("forever") != 0 {
		t.Fatalf("ttl=0 must not set an expiry, got %v", mr.TTL("forever"))
	}

	mr.FastForward(3 * time.Second)
	if _, ok, _ := r.Get(ctx, "short"); ok {
		t.Fatalf("entry should be expired")
	}
	if _, ok, _ := r.Get(ctx, "forever"); !ok {
		t.Fatalf("entry without ttl disappeared")
	}
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	mr, r := newTestRedis(t)

	if _, found, err := r.Increment(ctx, "n", 1); err != nil || found {
		t.Fatalf("absent counter: found=%v err=%v", found, err)
	}
	if mr.Exists("n") {
		t.Fatalf("Increment on an absent key must not create it")
	}

	_ = mr.Set("n", "10")
	if n, found, err := r.Increment(ctx, "n", 5); err != nil || !found || n != 15 {
		t.Fatalf("Increment: n=%d found=%v err=%v", n, found, err)
	}
	if n, _, err := r.Decrement(ctx, "n", 20); err != nil || n != -5 {
		t.Fatalf("Decrement: n=%d err=%v", n, err)
	}

	_ = mr.Set("s", "text")
	if _, _, err := r.Increment(ctx, "s", 1); !errors.Is(err, backend.ErrNotInteger) {
		t.Fatalf("expected ErrNotInteger, got %v", err)
	}
}

func TestAdd(t *testing.T) {
	ctx := context.Background()
	mr, r := newTestRedis(t)

	if stored, err := r.Add(ctx, "k", []byte("a"), time.Minute); err != nil || !stored {
		t.Fatalf("first Add: stored=%v err=%v", stored, err)
	}
	if stored, _ := r.Add(ctx, "k", []byte("b"), 0); stored {
		t.Fatalf("second Add should not overwrite")
	}
	if got, _ := mr.Get("k"); got != "a" {
		t.Fatalf("got %q", got)
	}
	if mr.TTL("k") != time.Minute {
		t.Fatalf("Add should apply the ttl, got %v", mr.TTL("k"))
	}
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	mr, r := newTestRedis(t)

	_, _ = r.Set(ctx, "a", []byte("1"), 0)
	_, _ = r.Set(ctx, "b", []byte("2"), 0)
	if err := r.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("Flush left keys: %v", mr.Keys())
	}
}

func TestBuildsClientFromOptions(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	r, err := New(Config{Options: optionsFor(t, mr)})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close(ctx)
	if _, ok := r.Client().(*goredis.Client); !ok {
		t.Fatalf("single host should build a plain client, got %T", r.Client())
	}
	if err := r.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	_, _ = r.Set(ctx, "k", []byte("v"), 0)
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("got %q", got)
	}
}

func TestRingFlushesEveryShard(t *testing.T) {
	ctx := context.Background()
	a, b := miniredis.RunT(t), miniredis.RunT(t)

	r, err := New(Config{Options: optionsFor(t, a, b)})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close(ctx)
	if _, ok := r.Client().(*goredis.Ring); !ok {
		t.Fatalf("several hosts should build a ring, got %T", r.Client())
	}

	for i := 0; i < 50; i++ {
		if _, err := r.Set(ctx, "key:"+strconv.Itoa(i), []byte("v"), 0); err != nil {
			t.Fatal(err)
		}
	}
	if len(a.Keys()) == 0 || len(b.Keys()) == 0 {
		t.Fatalf("keys were not spread over shards: a=%d b=%d", len(a.Keys()), len(b.Keys()))
	}

	// the counter script is routed to the shard owning the key
	if _, _, err := r.Increment(ctx, "key:7", 1); !errors.Is(err, backend.ErrNotInteger) {
		t.Fatalf("expected ErrNotInteger, got %v", err)
	}

	if err := r.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if len(a.Keys())+len(b.Keys()) != 0 {
		t.Fatalf("Flush left keys: a=%v b=%v", a.Keys(), b.Keys())
	}
}

func TestConnectFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := optionsFor(t, mr)
	opts.Timeout = 200 * time.Millisecond
	mr.Close()

	r, err := New(Config{Options: opts})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close(context.Background())
	if err := r.Connect(context.Background()); err == nil {
		t.Fatalf("Connect to a stopped server should fail")
	}
}
