package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/cachekit"
)

type countHooks struct {
	cachekit.NopHooks
	mu      sync.Mutex
	lookups int
	block   chan struct{}
}

func (c *countHooks) Lookup(string, bool) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.lookups++
	c.mu.Unlock()
}

func TestEventsAreDelivered(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 16)
	for i := 0; i < 10; i++ {
		h.Lookup("k", true)
	}
	h.Close()
	if inner.lookups != 10 {
		t.Fatalf("delivered %d events, want 10", inner.lookups)
	}
}

func TestFullQueueDrops(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// one event is held by the worker, one fills the queue, the rest drop
	for i := 0; i < 10; i++ {
		h.Lookup("k", true)
	}
	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a full queue")
	}
	close(inner.block)
	h.Close()
	if uint64(inner.lookups)+h.Dropped() != 10 {
		t.Fatalf("delivered %d + dropped %d != 10", inner.lookups, h.Dropped())
	}
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	h := New(&countHooks{}, 1, 4)
	h.Close()
	h.Close()
	h.Flushed("memory")
	if h.Dropped() != 1 {
		t.Fatalf("dropped = %d", h.Dropped())
	}
}
