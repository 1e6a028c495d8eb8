// Package backend defines the storage primitives a cachekit store is built on.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation). The one exception is the counter
// capabilities below, which rewrite a stored base-10 integer in place.
//
// Keys arrive already prefixed by the store. Backends never add a namespace of
// their own, and Flush clears everything the backend instance can reach.
package backend

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrNotInteger is returned by counter operations when the stored value is
// not a base-10 integer.
var ErrNotInteger = errors.New("cachekit: value is not an integer")

// ErrCounterOverflow is returned by counter operations whose result does not
// fit in an int64. The stored value is left unchanged.
var ErrCounterOverflow = errors.New("cachekit: counter would overflow")

// AddInt returns n+delta, or ErrCounterOverflow when the sum leaves the int64
// range.
func AddInt(n, delta int64) (int64, error) {
	if (delta > 0 && n > math.MaxInt64-delta) || (delta < 0 && n < math.MinInt64-delta) {
		return 0, ErrCounterOverflow
	}
	return n + delta, nil
}

// Backend is the minimal primitive set every storage engine provides.
// Must be safe for concurrent use.
type Backend interface {
	// Connect establishes the connection/session. It must be idempotent: the
	// store calls it before the first operation and whenever an earlier
	// attempt failed.
	Connect(ctx context.Context) error

	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set overwrites key unconditionally. ttl is whole seconds; 0 means the
	// entry never expires. Returns ok=false when the store dropped the write
	// under pressure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Flush removes every entry reachable by this backend instance, including
	// entries written by other stores or prefixes sharing it.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Incrementer is implemented by backends with an atomic add. delta is never
// negative. When key is absent nothing is written and found is false.
type Incrementer interface {
	Increment(ctx context.Context, key string, delta int64) (n int64, found bool, err error)
}

// Decrementer is implemented by backends that can atomically subtract and let
// the result go below zero. Same absent-key contract as Incrementer.
type Decrementer interface {
	Decrement(ctx context.Context, key string, delta int64) (n int64, found bool, err error)
}

// Adder is implemented by backends with an atomic set-if-absent.
type Adder interface {
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (stored bool, err error)
}

// Namer lets a backend report a short name for logs and errors.
type Namer interface {
	Name() string
}
