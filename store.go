package cachekit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/cachekit/backend"
	"github.com/unkn0wn-root/cachekit/codec"
	"github.com/unkn0wn-root/cachekit/internal/util"
	"github.com/unkn0wn-root/cachekit/internal/wire"
)

var errStepRange = errors.New("cachekit: step out of range")

type store struct {
	b          backend.Backend
	name       string
	prefix     string
	defaultTTL time.Duration
	packer     *codec.Packer
	log        Logger
	hooks      Hooks
	atomicDecr bool
	now        func() time.Time

	connected atomic.Bool
	connMu    sync.Mutex
	sf        singleflight.Group
}

func newStore(opts Options) (*store, error) {
	if opts.Backend == nil {
		return nil, &ConfigError{Field: "Backend", Err: errRequired}
	}
	if opts.DefaultTTL < 0 {
		return nil, &ConfigError{Field: "DefaultTTL", Err: fmt.Errorf("negative duration %s", opts.DefaultTTL)}
	}

	s := &store{
		b:          opts.Backend,
		prefix:     opts.Prefix,
		defaultTTL: roundUp(opts.DefaultTTL),
		atomicDecr: opts.AtomicDecrement,
	}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.packer = opts.Packer
	if s.packer == nil {
		s.packer = codec.Default()
	}
	s.now = opts.Clock
	if s.now == nil {
		s.now = time.Now
	}
	if n, ok := opts.Backend.(backend.Namer); ok {
		s.name = n.Name()
	} else {
		s.name = fmt.Sprintf("%T", opts.Backend)
	}
	return s, nil
}

func (s *store) key(name string) string { return util.Key(s.prefix, name) }

// connect runs Backend.Connect once per store. A failed attempt is not
// remembered, so the next operation tries again.
func (s *store) connect(ctx context.Context) error {
	if s.connected.Load() {
		return nil
	}
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.connected.Load() {
		return nil
	}
	if err := s.b.Connect(ctx); err != nil {
		s.hooks.ConnectFailed(s.name, err)
		s.log.Warn("backend connect failed", Fields{"backend": s.name, "err": err})
		return &ConnectionError{Backend: s.name, Err: err}
	}
	s.connected.Store(true)
	s.log.Debug("backend connected", Fields{"backend": s.name})
	return nil
}

func (s *store) Get(ctx context.Context, name string, def any) (any, error) {
	v, found, err := s.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return def, nil
	}
	return v, nil
}

// read fetches the raw bytes for name and reports the lookup to hooks.
func (s *store) read(ctx context.Context, name string) (string, []byte, bool, error) {
	if err := s.connect(ctx); err != nil {
		return "", nil, false, err
	}
	k := s.key(name)
	b, found, err := s.b.Get(ctx, k)
	if err != nil {
		return k, nil, false, fmt.Errorf("cachekit: get %q: %w", name, err)
	}
	s.hooks.Lookup(k, found)
	return k, b, found, nil
}

func (s *store) Lookup(ctx context.Context, name string) (any, bool, error) {
	k, b, found, err := s.read(ctx, name)
	if err != nil || !found {
		return nil, false, err
	}
	v, err := s.packer.Unpack(b)
	if err != nil {
		return nil, false, s.codecErr(k, name, err)
	}
	return v, true, nil
}

func (s *store) Scan(ctx context.Context, name string, dest any) (bool, error) {
	k, b, found, err := s.read(ctx, name)
	if err != nil || !found {
		return false, err
	}
	if err := s.packer.UnpackInto(b, dest); err != nil {
		return false, s.codecErr(k, name, err)
	}
	return true, nil
}

func (s *store) codecErr(storageKey, name string, err error) error {
	s.hooks.CodecFailure(storageKey, err)
	s.log.Warn("codec failure", Fields{"key": name, "err": err})
	return &CodecError{Key: name, Err: err}
}

func (s *store) Set(ctx context.Context, name string, value any, ttl TTL) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	k := s.key(name)
	d, expired := ResolveTTL(ttl, s.defaultTTL, s.now())
	if expired {
		// the entry would be invisible anyway; drop whatever is there
		s.log.Debug("set with expired ttl; deleting", Fields{"key": name, "ttl": ttl.String()})
		return s.del(ctx, name, k)
	}
	b, err := s.packer.Pack(value)
	if err != nil {
		return s.codecErr(k, name, err)
	}
	return s.write(ctx, name, k, b, d)
}

func (s *store) write(ctx context.Context, name, k string, b []byte, d time.Duration) error {
	ok, err := s.b.Set(ctx, k, b, d)
	if err != nil {
		return fmt.Errorf("cachekit: set %q: %w", name, err)
	}
	if !ok {
		s.hooks.BackendSetRejected(k)
		s.log.Debug("set rejected by backend (pressure)", Fields{"key": name})
	}
	return nil
}

func (s *store) Has(ctx context.Context, name string) (bool, error) {
	_, _, found, err := s.read(ctx, name)
	return found, err
}

func (s *store) Delete(ctx context.Context, name string) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	return s.del(ctx, name, s.key(name))
}

func (s *store) del(ctx context.Context, name, k string) error {
	if err := s.b.Delete(ctx, k); err != nil {
		return fmt.Errorf("cachekit: delete %q: %w", name, err)
	}
	return nil
}

func (s *store) Clear(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	if err := s.b.Flush(ctx); err != nil {
		return fmt.Errorf("cachekit: flush %s: %w", s.name, err)
	}
	s.hooks.Flushed(s.name)
	s.log.Info("backend flushed", Fields{"backend": s.name})
	return nil
}

func (s *store) Increment(ctx context.Context, name string, step int64) (int64, error) {
	if step < 0 {
		if step == math.MinInt64 {
			return 0, errStepRange
		}
		return s.Decrement(ctx, name, -step)
	}
	if err := s.connect(ctx); err != nil {
		return 0, err
	}
	k := s.key(name)
	inc, ok := s.b.(backend.Incrementer)
	if !ok {
		return s.readModifyWrite(ctx, name, k, step)
	}
	return s.atomicAdd(ctx, name, k, step, inc.Increment)
}

func (s *store) Decrement(ctx context.Context, name string, step int64) (int64, error) {
	if step < 0 {
		if step == math.MinInt64 {
			return 0, errStepRange
		}
		return s.Increment(ctx, name, -step)
	}
	if err := s.connect(ctx); err != nil {
		return 0, err
	}
	k := s.key(name)
	if dec, ok := s.b.(backend.Decrementer); ok && s.atomicDecr {
		return s.atomicAdd(ctx, name, k, -step, func(ctx context.Context, key string, _ int64) (int64, bool, error) {
			return dec.Decrement(ctx, key, step)
		})
	}
	return s.readModifyWrite(ctx, name, k, -step)
}

type addFunc func(ctx context.Context, key string, delta int64) (int64, bool, error)

// atomicAdd applies delta with the backend's counter operation. An absent
// counter is created holding delta; when another writer creates it first the
// operation is applied again.
func (s *store) atomicAdd(ctx context.Context, name, k string, delta int64, add addFunc) (int64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		n, found, err := add(ctx, k, delta)
		if errors.Is(err, backend.ErrNotInteger) {
			// memcached refuses to increment a negative counter written by a
			// read-modify-write; anything that still parses goes that way
			if b, ok, gerr := s.b.Get(ctx, k); gerr == nil && ok {
				if _, perr := wire.ParseInt(b); perr == nil {
					return s.readModifyWrite(ctx, name, k, delta)
				}
			}
			return 0, fmt.Errorf("cachekit: counter %q: %w", name, ErrNotInteger)
		}
		if err != nil {
			return 0, fmt.Errorf("cachekit: counter %q: %w", name, err)
		}
		if found {
			return n, nil
		}
		stored, err := s.initCounter(ctx, k, delta)
		if err != nil {
			return 0, fmt.Errorf("cachekit: counter %q: %w", name, err)
		}
		if stored {
			return delta, nil
		}
		s.log.Debug("counter created concurrently; retrying", Fields{"key": name})
	}
	// the counter keeps vanishing between add and create; fall back to a plain write
	return s.readModifyWrite(ctx, name, k, delta)
}

func (s *store) initCounter(ctx context.Context, k string, n int64) (bool, error) {
	b := wire.EncodeInt(n)
	if a, ok := s.b.(backend.Adder); ok {
		return a.Add(ctx, k, b, s.defaultTTL)
	}
	ok, err := s.b.Set(ctx, k, b, s.defaultTTL)
	if err == nil && !ok {
		s.hooks.BackendSetRejected(k)
	}
	return true, err
}

// readModifyWrite is the non-atomic counter path: read (absent counts as 0),
// add delta, overwrite with the default TTL.
func (s *store) readModifyWrite(ctx context.Context, name, k string, delta int64) (int64, error) {
	s.hooks.NonAtomicIncrement(k)
	s.log.Debug("non-atomic counter update", Fields{"key": name, "delta": delta})

	b, found, err := s.b.Get(ctx, k)
	if err != nil {
		return 0, fmt.Errorf("cachekit: counter %q: %w", name, err)
	}
	var cur int64
	if found {
		v, err := s.packer.Unpack(b)
		if err != nil {
			return 0, s.codecErr(k, name, err)
		}
		n, ok := v.(int64)
		if !ok {
			return 0, fmt.Errorf("cachekit: counter %q: %w", name, ErrNotInteger)
		}
		cur = n
	}
	n, err := backend.AddInt(cur, delta)
	if err != nil {
		return 0, fmt.Errorf("cachekit: counter %q: %w", name, err)
	}
	if err := s.write(ctx, name, k, wire.EncodeInt(n), s.defaultTTL); err != nil {
		return 0, err
	}
	return n, nil
}

// Remember reads once; when absent it writes value. Not atomic: concurrent
// callers may both write, last writer wins.
func (s *store) Remember(ctx context.Context, name string, value any, ttl TTL) (any, error) {
	v, found, err := s.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if found {
		return v, nil
	}
	if err := s.Set(ctx, name, value, ttl); err != nil {
		return nil, err
	}
	return value, nil
}

func (s *store) RememberFunc(ctx context.Context, name string, ttl TTL, fn func(context.Context) (any, error)) (any, error) {
	v, found, err := s.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if found {
		return v, nil
	}
	v, err, shared := s.sf.Do(s.key(name), func() (any, error) {
		// another flight may have filled it while we queued
		if v, found, err := s.Lookup(ctx, name); err != nil || found {
			return v, err
		}
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.Set(ctx, name, v, ttl); err != nil {
			return nil, err
		}
		return v, nil
	})
	if shared {
		s.log.Debug("remember shared an in-flight computation", Fields{"key": name})
	}
	return v, err
}

// Pull is a read followed by a delete; a concurrent writer may slip in
// between. When the delete fails the value is returned with a *PullError.
func (s *store) Pull(ctx context.Context, name string, def any) (any, error) {
	v, found, err := s.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return def, nil
	}
	if err := s.b.Delete(ctx, s.key(name)); err != nil {
		return v, &PullError{Key: name, Err: err}
	}
	return v, nil
}

func (s *store) GetMany(ctx context.Context, names []string, def any) (map[string]any, error) {
	out := make(map[string]any, len(names))
	var errs []error
	for _, n := range names {
		v, err := s.Get(ctx, n, def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[n] = v
	}
	return out, errors.Join(errs...)
}

func (s *store) SetMany(ctx context.Context, values map[string]any, ttl TTL) error {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)

	var errs []error
	for _, n := range names {
		if err := s.Set(ctx, n, values[n], ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *store) DeleteMany(ctx context.Context, names []string) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	var errs []error
	for i, k := range util.Keys(s.prefix, names) {
		if err := s.del(ctx, names[i], k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *store) Close(ctx context.Context) error {
	return s.b.Close(ctx)
}
