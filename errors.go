package cachekit

import (
	"fmt"

	"github.com/unkn0wn-root/cachekit/backend"
)

// ErrNotInteger is returned by Increment and Decrement when the stored value
// is not an integer.
var ErrNotInteger = backend.ErrNotInteger

// ErrCounterOverflow is returned by Increment and Decrement when the result
// would not fit in an int64. Nothing is written.
var ErrCounterOverflow = backend.ErrCounterOverflow

// ConfigError reports invalid construction input.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cachekit: invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ConnectionError reports a failed backend Connect. The store tries again on
// the next operation.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cachekit: connect %s: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CodecError reports a value that could not be packed or unpacked.
type CodecError struct {
	Key string
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("cachekit: codec %q: %v", e.Key, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// PullError means Pull read the value but could not delete it afterwards.
type PullError struct {
	Key string
	Err error
}

func (e *PullError) Error() string {
	return fmt.Sprintf("cachekit: pull %q: delete failed: %v", e.Key, e.Err)
}

func (e *PullError) Unwrap() error { return e.Err }
