package cachekit

import "context"

// GetAs decodes name into a T, returning def when it is absent.
//
//	u, err := cachekit.GetAs(ctx, store, "user:42", User{})
func GetAs[T any](ctx context.Context, s Store, name string, def T) (T, error) {
	var out T
	found, err := s.Scan(ctx, name, &out)
	if err != nil {
		var zero T
		return zero, err
	}
	if !found {
		return def, nil
	}
	return out, nil
}

// PullAs is Pull with typed decoding.
func PullAs[T any](ctx context.Context, s Store, name string, def T) (T, error) {
	var out T
	found, err := s.Scan(ctx, name, &out)
	if err != nil {
		var zero T
		return zero, err
	}
	if !found {
		return def, nil
	}
	if err := s.Delete(ctx, name); err != nil {
		return out, &PullError{Key: name, Err: err}
	}
	return out, nil
}
