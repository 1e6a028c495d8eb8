package util

// Key derives the physical storage key for a logical name. It is plain
// concatenation: no separator, no escaping. Callers own the namespace and must
// keep names from colliding once prefixed.
func Key(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + name
}

// Keys maps Key over names, preserving order.
func Keys(prefix string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Key(prefix, n)
	}
	return out
}
