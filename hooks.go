package cachekit

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The store calls them on hot paths.
type Hooks interface {
	// A read reached the backend. hit is the backend's presence flag.
	Lookup(storageKey string, hit bool)

	// A stored value could not be unpacked, or a value could not be packed.
	CodecFailure(storageKey string, err error)

	// Backend returned ok=false on Set (backpressure/eviction).
	BackendSetRejected(storageKey string)

	// Backend Connect failed; the next operation tries again.
	ConnectFailed(backend string, err error)

	// A counter was updated with a read-modify-write instead of an atomic
	// backend operation.
	NonAtomicIncrement(storageKey string)

	// Clear flushed the whole backend.
	Flushed(backend string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Lookup(string, bool)         {}
func (NopHooks) CodecFailure(string, error)  {}
func (NopHooks) BackendSetRejected(string)   {}
func (NopHooks) ConnectFailed(string, error) {}
func (NopHooks) NonAtomicIncrement(string)   {}
func (NopHooks) Flushed(string)              {}
