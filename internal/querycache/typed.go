package querycache

import (
	"context"
	"fmt"
)

// Query is the typed form of Cache.Query.
func Query[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Query(ctx, key, func(ctx context.Context) (any, error) { return fetch(ctx) })
	if err != nil {
		return zero, err
	}
	return as[T](key, v)
}

// Mutate is the typed form of Cache.Mutate.
func Mutate[T any](ctx context.Context, c *Cache, fetch func(ctx context.Context) (T, error), affected ...Key) (T, error) {
	var zero T
	v, err := c.Mutate(ctx, func(ctx context.Context) (any, error) { return fetch(ctx) }, affected...)
	if err != nil {
		return zero, err
	}
	return as[T](Key{}, v)
}

func as[T any](key Key, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("querycache: %s holds %T, want %T", key, v, zero)
	}
	return t, nil
}
