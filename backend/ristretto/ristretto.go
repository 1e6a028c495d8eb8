// Package ristretto is an in-process backend on top of dgraph-io/ristretto.
// The cache admits entries by cost (the value length), so Set may report a
// rejected write under memory pressure.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/cachekit/backend"
)

type Config struct {
	NumCounters int64 // 0 => 1e5
	MaxCost     int64 // total bytes; 0 => 64 MiB
	BufferItems int64 // 0 => 64
	Metrics     bool
}

type Ristretto struct {
	c *rc.Cache
}

var _ backend.Backend = (*Ristretto)(nil)

func New(cfg Config) (*Ristretto, error) {
	if cfg.NumCounters < 0 || cfg.MaxCost < 0 || cfg.BufferItems < 0 {
		return nil, errors.New("ristretto backend: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: coalesce(cfg.NumCounters, 1e5),
		MaxCost:     coalesce(cfg.MaxCost, 64<<20),
		BufferItems: coalesce(cfg.BufferItems, 64),
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{c: c}, nil
}

func coalesce(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}

func (p *Ristretto) Name() string { return "ristretto" }

func (p *Ristretto) Connect(context.Context) error { return nil }

func (p *Ristretto) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

// Set waits for the write buffer to drain so the entry is visible to the
// next Get.
func (p *Ristretto) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	v := append([]byte(nil), value...)
	ok := p.c.SetWithTTL(key, v, int64(len(v))+1, ttl)
	p.c.Wait()
	if !ok {
		return false, nil
	}
	// admission is decided asynchronously; a dropped entry shows up as a miss
	if _, found := p.c.Get(key); !found {
		return false, nil
	}
	return true, nil
}

func (p *Ristretto) Delete(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Ristretto) Flush(context.Context) error {
	p.c.Clear()
	return nil
}

func (p *Ristretto) Close(context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's counters when Config.Metrics is set.
func (p *Ristretto) Metrics() *rc.Metrics { return p.c.Metrics }
