package cachekit

import "github.com/unkn0wn-root/cachekit/internal/util"

// DeriveKey returns the physical key a store with prefix uses for name.
func DeriveKey(prefix, name string) string { return util.Key(prefix, name) }
