package cachekit

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/cachekit/backend"
	"github.com/unkn0wn-root/cachekit/codec"
)

// Store is the backend-agnostic cache API. Names are logical; the store
// prefixes them before they reach the backend. A miss is never an error.
type Store interface {
	// Get returns the stored value, or def when name is absent.
	Get(ctx context.Context, name string, def any) (any, error)
	// Lookup is Get with an explicit presence flag.
	Lookup(ctx context.Context, name string) (v any, found bool, err error)
	// Scan decodes the stored value into dest (a non-nil pointer).
	Scan(ctx context.Context, name string, dest any) (found bool, err error)
	Set(ctx context.Context, name string, value any, ttl TTL) error
	// Has reports presence. Stored zero values (0, "", false, nil) are present.
	Has(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
	// Clear flushes the whole backend, including entries under other prefixes.
	Clear(ctx context.Context) error

	// Increment adds step. An absent counter starts at step with the default TTL.
	Increment(ctx context.Context, name string, step int64) (int64, error)
	// Decrement subtracts step; an absent counter counts as 0. The result may
	// be negative.
	Decrement(ctx context.Context, name string, step int64) (int64, error)

	// Remember returns the stored value, or stores value and returns it.
	Remember(ctx context.Context, name string, value any, ttl TTL) (any, error)
	// RememberFunc is Remember with a lazily computed value. Concurrent
	// callers in this process share one call of fn.
	RememberFunc(ctx context.Context, name string, ttl TTL, fn func(context.Context) (any, error)) (any, error)
	// Pull returns the stored value and deletes it, or returns def.
	Pull(ctx context.Context, name string, def any) (any, error)

	// Bulk (per-key loops; errors are joined)
	GetMany(ctx context.Context, names []string, def any) (map[string]any, error)
	SetMany(ctx context.Context, values map[string]any, ttl TTL) error
	DeleteMany(ctx context.Context, names []string) error

	Close(ctx context.Context) error
}

// Options configure a Store. Only Backend is required; others have sensible defaults.
type Options struct {
	// Required
	Backend backend.Backend

	Prefix     string        // prepended to every name, e.g. "app:prod:"
	DefaultTTL time.Duration // applied when a write passes the zero TTL; 0 => never expire
	Packer     *codec.Packer // nil => codec.Default() (msgpack for structured values)
	Logger     Logger        // if nil, NopLogger is used
	Hooks      Hooks         // if nil, NopHooks is used

	// AtomicDecrement uses the backend's native decrement when it has one.
	// Off by default: Decrement is a read-modify-write that refreshes the TTL.
	AtomicDecrement bool

	Clock func() time.Time // nil => time.Now; used to resolve Until TTLs
}

func New(opts Options) (Store, error) {
	return newStore(opts)
}

var errRequired = errors.New("required")
