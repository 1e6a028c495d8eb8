// Package redis is a backend on top of go-redis. It accepts either a caller
// owned UniversalClient or a host list, in which case a single host gets a
// plain client and several hosts get a consistent-hash Ring.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/cachekit/backend"
)

const DefaultPort = 6379

// incrIfExists adds ARGV[1] to an existing counter. A missing key yields a
// nil reply so the caller can tell "absent" from "zero".
var incrIfExists = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.call('INCRBY', KEYS[1], ARGV[1])
end
return false
`)

type Config struct {
	// Client takes precedence over Options when set.
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this backend exclusively owns Client

	Options  backend.Options
	Password string
	DB       int
}

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var (
	_ backend.Backend     = (*Redis)(nil)
	_ backend.Incrementer = (*Redis)(nil)
	_ backend.Decrementer = (*Redis)(nil)
	_ backend.Adder       = (*Redis)(nil)
)

func New(cfg Config) (*Redis, error) {
	if cfg.Client != nil {
		return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
	}
	return &Redis{rdb: newClient(cfg), closeClient: true}, nil
}

func newClient(cfg Config) goredis.UniversalClient {
	addrs := cfg.Options.Endpoints(DefaultPort)
	var idle time.Duration
	if cfg.Options.NonPersistent {
		idle = time.Second
	}
	t := cfg.Options.Timeout

	if len(addrs) == 1 {
		return goredis.NewClient(&goredis.Options{
			Addr:            addrs[0],
			Password:        cfg.Password,
			DB:              cfg.DB,
			DialTimeout:     t,
			ReadTimeout:     t,
			WriteTimeout:    t,
			ConnMaxIdleTime: idle,
		})
	}

	shards := make(map[string]string, len(addrs))
	for i, a := range addrs {
		shards[fmt.Sprintf("shard%d", i)] = a
	}
	return goredis.NewRing(&goredis.RingOptions{
		Addrs:           shards,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     t,
		ReadTimeout:     t,
		WriteTimeout:    t,
		ConnMaxIdleTime: idle,
	})
}

func (p *Redis) Name() string { return "redis" }

// Client exposes the underlying client for callers that need raw commands.
func (p *Redis) Client() goredis.UniversalClient { return p.rdb }

func (p *Redis) Connect(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	if err := p.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return p.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (p *Redis) Delete(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

// Flush runs FLUSHDB on the selected database of every shard.
func (p *Redis) Flush(ctx context.Context) error {
	switch c := p.rdb.(type) {
	case *goredis.Ring:
		return c.ForEachShard(ctx, func(ctx context.Context, sh *goredis.Client) error {
			return sh.FlushDB(ctx).Err()
		})
	case *goredis.ClusterClient:
		return c.ForEachMaster(ctx, func(ctx context.Context, sh *goredis.Client) error {
			return sh.FlushDB(ctx).Err()
		})
	default:
		return p.rdb.FlushDB(ctx).Err()
	}
}

func (p *Redis) Increment(ctx context.Context, key string, delta int64) (int64, bool, error) {
	return p.incr(ctx, key, delta)
}

func (p *Redis) Decrement(ctx context.Context, key string, delta int64) (int64, bool, error) {
	return p.incr(ctx, key, -delta)
}

func (p *Redis) incr(ctx context.Context, key string, delta int64) (int64, bool, error) {
	n, err := incrIfExists.Run(ctx, p.rdb, []string{key}, delta).Int64()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		if isNotInteger(err) {
			return 0, true, backend.ErrNotInteger
		}
		if strings.Contains(err.Error(), "would overflow") {
			return 0, true, backend.ErrCounterOverflow
		}
		return 0, false, err
	}
	return n, true, nil
}

func isNotInteger(err error) bool {
	return strings.Contains(err.Error(), "not an integer")
}

// Close releases the underlying redis client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
