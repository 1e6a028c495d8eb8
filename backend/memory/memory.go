// Package memory is an in-process backend: a sharded map with per-entry
// expiry and an optional background sweep. Counter operations are atomic
// within the process.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/cachekit/backend"
	"github.com/unkn0wn-root/cachekit/internal/wire"
)

const defaultShards = 16

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type shard struct {
	mu sync.RWMutex
	m  map[string]entry
}

type Config struct {
	Shards          int              // 0 => 16
	CleanupInterval time.Duration    // 0 => expired entries are only dropped on access
	Clock           func() time.Time // nil => time.Now
}

type Memory struct {
	shards []*shard
	now    func() time.Time

	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var (
	_ backend.Backend     = (*Memory)(nil)
	_ backend.Incrementer = (*Memory)(nil)
	_ backend.Decrementer = (*Memory)(nil)
	_ backend.Adder       = (*Memory)(nil)
)

func New(cfg Config) *Memory {
	n := cfg.Shards
	if n <= 0 {
		n = defaultShards
	}
	m := &Memory{shards: make([]*shard, n), now: cfg.Clock}
	if m.now == nil {
		m.now = time.Now
	}
	for i := range m.shards {
		m.shards[i] = &shard{m: make(map[string]entry)}
	}
	if cfg.CleanupInterval > 0 {
		m.ticker = time.NewTicker(cfg.CleanupInterval)
		m.stopCh = make(chan struct{})
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case <-m.ticker.C:
					m.Cleanup()
				case <-m.stopCh:
					return
				}
			}
		}()
	}
	return m
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) shard(key string) *shard {
	return m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

func (e entry) expired(now time.Time) bool {
	return !e.exp.IsZero() && !now.Before(e.exp)
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *Memory) Connect(context.Context) error { return nil }

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s := m.shard(key)
	now := m.now()
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.expired(now) {
		s.mu.Lock()
		if cur, ok := s.m[key]; ok && cur.expired(now) {
			delete(s.m, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), e.v...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s := m.shard(key)
	e := entry{v: append([]byte(nil), value...), exp: m.expiry(ttl)}
	s.mu.Lock()
	s.m[key] = e
	s.mu.Unlock()
	return true, nil
}

func (m *Memory) Add(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s := m.shard(key)
	now := m.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.m[key]; ok && !cur.expired(now) {
		return false, nil
	}
	s.m[key] = entry{v: append([]byte(nil), value...), exp: m.expiry(ttl)}
	return true, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	s := m.shard(key)
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

func (m *Memory) Flush(context.Context) error {
	for _, s := range m.shards {
		s.mu.Lock()
		s.m = make(map[string]entry)
		s.mu.Unlock()
	}
	return nil
}

func (m *Memory) Increment(_ context.Context, key string, delta int64) (int64, bool, error) {
	return m.add(key, delta)
}

func (m *Memory) Decrement(_ context.Context, key string, delta int64) (int64, bool, error) {
	return m.add(key, -delta)
}

// add rewrites the counter in place; the entry keeps its expiry.
func (m *Memory) add(key string, delta int64) (int64, bool, error) {
	s := m.shard(key)
	now := m.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok || e.expired(now) {
		return 0, false, nil
	}
	n, err := wire.ParseInt(e.v)
	if err != nil {
		return 0, true, backend.ErrNotInteger
	}
	if n, err = backend.AddInt(n, delta); err != nil {
		return 0, true, err
	}
	e.v = wire.EncodeInt(n)
	s.m[key] = e
	return n, true, nil
}

// Cleanup drops expired entries. Called by the background sweep when
// CleanupInterval > 0.
func (m *Memory) Cleanup() {
	now := m.now()
	for _, s := range m.shards {
		s.mu.Lock()
		for k, e := range s.m {
			if e.expired(now) {
				delete(s.m, k)
			}
		}
		s.mu.Unlock()
	}
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

func (m *Memory) Close(context.Context) error {
	m.closeOnce.Do(func() {
		if m.stopCh != nil {
			close(m.stopCh)
			m.ticker.Stop() // stop ticker before waiting
			m.wg.Wait()
		}
	})
	return nil
}
