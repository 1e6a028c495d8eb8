// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/cachekit"
//	"github.com/unkn0wn-root/cachekit/backend/redis"
//	"github.com/unkn0wn-root/cachekit/hooks/async"
//	"github.com/unkn0wn-root/cachekit/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    LookupEvery:    100, // sample logs: ~every 100th lookup
//	    NonAtomicEvery: 1,   // log every read-modify-write counter update
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	store, _ := cachekit.New(cachekit.Options{
//	    Backend: rb,
//	    Prefix:  "app:prod:",
//	    Hooks:   hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/cachekit"
)

type Hooks struct {
	inner   cachekit.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
	closed  atomic.Bool
}

var _ cachekit.Hooks = (*Hooks)(nil)

func New(inner cachekit.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the queue was full
// or the hooks were closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// send on a channel closed between the check and the send
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) Lookup(k string, hit bool)        { h.try(func() { h.inner.Lookup(k, hit) }) }
func (h *Hooks) BackendSetRejected(k string)      { h.try(func() { h.inner.BackendSetRejected(k) }) }
func (h *Hooks) NonAtomicIncrement(k string)      { h.try(func() { h.inner.NonAtomicIncrement(k) }) }
func (h *Hooks) Flushed(b string)                 { h.try(func() { h.inner.Flushed(b) }) }
func (h *Hooks) CodecFailure(k string, err error) { h.try(func() { h.inner.CodecFailure(k, err) }) }
func (h *Hooks) ConnectFailed(b string, err error) {
	h.try(func() { h.inner.ConnectFailed(b, err) })
}
