// Package cachekit implements a backend-agnostic cache: one API for storing,
// reading, mutating and expiring named values over interchangeable storage
// backends.
//
// Components:
//   - backend.Backend: byte store with TTL (memory, file, Redis, Memcached,
//     Ristretto, BigCache, SQLite) plus optional atomic capabilities
//     (Incrementer, Decrementer, Adder).
//   - codec.Packer: packs values into bytes. Integers stay bare decimal text so
//     backends can increment them natively; everything else is framed.
//   - TTL: per-write lifetime resolved to whole seconds (0 = never expires).
//
// Keys:
//
//	<prefix><name>  - plain concatenation, no separator
//
// Typical use:
//
//	st, _ := cachekit.New(cachekit.Options{Backend: memory.New(memory.Config{}), Prefix: "app:"})
//	_ = st.Set(ctx, "user:1", u, cachekit.For(time.Hour))
//	n, _ := st.Increment(ctx, "hits", 1)
//
// Remember and Pull are built from separate reads and writes and are not
// atomic across processes. Clear flushes the whole backend, not just the
// store's prefix.
package cachekit
