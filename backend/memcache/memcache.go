// Package memcache is a backend on top of gomemcache. Keys are distributed
// over the configured servers by the client's CRC32 server selector.
//
// memcached counters are unsigned and clamp at zero on decrement, so this
// backend offers Increment but not Decrement; the store falls back to a
// read-modify-write for decrements.
package memcache

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	mc "github.com/bradfitz/gomemcache/memcache"

	"github.com/unkn0wn-root/cachekit/backend"
	"github.com/unkn0wn-root/cachekit/internal/wire"
)

const DefaultPort = 11211

// maxRelative is the largest expiration memcached reads as a relative number
// of seconds. Anything longer must be sent as an absolute unix time.
const maxRelative = 30 * 24 * time.Hour

type Config struct {
	Options backend.Options
	Clock   func() time.Time // nil => time.Now; used for absolute expirations
}

type Memcache struct {
	client *mc.Client
	now    func() time.Time
}

var (
	_ backend.Backend     = (*Memcache)(nil)
	_ backend.Incrementer = (*Memcache)(nil)
	_ backend.Adder       = (*Memcache)(nil)
)

func New(cfg Config) (*Memcache, error) {
	var ss mc.ServerList
	if err := ss.SetServers(cfg.Options.Endpoints(DefaultPort)...); err != nil {
		return nil, err
	}
	c := mc.NewFromSelector(&ss)
	if cfg.Options.Timeout > 0 {
		c.Timeout = cfg.Options.Timeout
	}
	if cfg.Options.NonPersistent {
		c.MaxIdleConns = 1
	}
	m := &Memcache{client: c, now: cfg.Clock}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

func (m *Memcache) Name() string { return "memcache" }

// Connect checks that every server answers.
func (m *Memcache) Connect(context.Context) error {
	return m.client.Ping()
}

func (m *Memcache) Get(_ context.Context, key string) ([]byte, bool, error) {
	it, err := m.client.Get(key)
	if errors.Is(err, mc.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return it.Value, true, nil
}

func (m *Memcache) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	err := m.client.Set(&mc.Item{Key: key, Value: value, Expiration: expiration(ttl, m.now())})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memcache) Add(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	err := m.client.Add(&mc.Item{Key: key, Value: value, Expiration: expiration(ttl, m.now())})
	if errors.Is(err, mc.ErrNotStored) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memcache) Delete(_ context.Context, key string) error {
	if err := m.client.Delete(key); err != nil && !errors.Is(err, mc.ErrCacheMiss) {
		return err
	}
	return nil
}

// Flush invalidates every item on every server.
func (m *Memcache) Flush(context.Context) error {
	return m.client.FlushAll()
}

func (m *Memcache) Increment(_ context.Context, key string, delta int64) (int64, bool, error) {
	if delta < 0 {
		return 0, false, errors.New("memcache backend: negative delta")
	}
	n, err := m.client.Increment(key, uint64(delta))
	if errors.Is(err, mc.ErrCacheMiss) {
		return 0, false, nil
	}
	if err != nil {
		if strings.Contains(err.Error(), "non-numeric") {
			return 0, true, backend.ErrNotInteger
		}
		return 0, false, err
	}
	return int64(n), true, nil
}

// Close is a no-op; idle connections are dropped by the client pool.
func (m *Memcache) Close(context.Context) error { return nil }

// expiration converts a ttl into memcached's expiration field: 0 never
// expires, up to 30 days is relative seconds, longer is a unix timestamp.
// Timestamps past 2038 are clamped to the largest one the field can hold.
func expiration(ttl time.Duration, now time.Time) int32 {
	if ttl <= 0 {
		return 0
	}
	secs := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	if ttl <= maxRelative {
		return int32(secs)
	}
	if at := now.Unix(); secs > math.MaxInt32-at {
		return math.MaxInt32
	}
	return int32(now.Unix() + secs)
}

// ParseCounter reads a value written by memcached's incr/decr, which may be
// padded with trailing spaces.
func ParseCounter(b []byte) (int64, error) {
	return wire.ParseInt(b)
}
