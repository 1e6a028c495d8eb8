package cachekit

import (
	"fmt"
	"math"
	"time"
)

type ttlKind uint8

const (
	ttlDefault ttlKind = iota
	ttlNever
	ttlFor
	ttlUntil
)

// TTL is the lifetime requested for a write. The zero value means "use the
// store's DefaultTTL".
type TTL struct {
	kind ttlKind
	d    time.Duration
	at   time.Time
}

// Never stores the entry without expiry.
var Never = TTL{kind: ttlNever}

// For expires the entry d from now. For(0) never expires; a negative d is
// already expired.
func For(d time.Duration) TTL { return TTL{kind: ttlFor, d: d} }

// Until expires the entry at t. A t that is not in the future is already
// expired.
func Until(t time.Time) TTL { return TTL{kind: ttlUntil, at: t} }

// IsDefault reports whether t defers to the store's default.
func (t TTL) IsDefault() bool { return t.kind == ttlDefault }

func (t TTL) String() string {
	switch t.kind {
	case ttlNever:
		return "never"
	case ttlFor:
		return fmt.Sprintf("for %s", t.d)
	case ttlUntil:
		return fmt.Sprintf("until %s", t.at.Format(time.RFC3339))
	default:
		return "default"
	}
}

// ResolveTTL turns t into the whole-second duration handed to a backend, where
// 0 means "never expires". expired is true when the entry would already be
// gone, in which case the duration is meaningless.
func ResolveTTL(t TTL, def time.Duration, now time.Time) (d time.Duration, expired bool) {
	switch t.kind {
	case ttlNever:
		return 0, false
	case ttlFor:
		if t.d < 0 {
			return 0, true
		}
		return roundUp(t.d), false
	case ttlUntil:
		left := t.at.Sub(now)
		if left <= 0 {
			return 0, true
		}
		return roundUp(left), false
	default:
		if def <= 0 {
			return 0, false
		}
		return roundUp(def), false
	}
}

// maxWholeSeconds is the largest Duration that is a whole number of seconds.
const maxWholeSeconds = time.Duration(math.MaxInt64 - math.MaxInt64%int64(time.Second))

// roundUp rounds d up to whole seconds, saturating at maxWholeSeconds.
func roundUp(d time.Duration) time.Duration {
	if d > maxWholeSeconds {
		return maxWholeSeconds
	}
	if r := d % time.Second; r != 0 {
		d += time.Second - r
	}
	return d
}
