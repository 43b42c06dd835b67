// Package cache defines the cache backend contract consumed by the
// caching decorator, the deterministic key serializer, and typed helpers
// for moving records in and out of a byte-valued backend.
//
// Backends are plain key-value stores with per-entry TTLs. The decorator
// owns read-through and invalidation policy; backends only get, set, and
// delete. Values cross the boundary as msgpack bytes so the same backend
// interface serves both the in-process and the Redis implementations.
package cache

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-repository-docstore/internal/cacheinfra"
)

// CacheService is the operation surface a cache backend must expose.
// Implementations must be safe for concurrent use. A backend that cannot
// enumerate its own keys may implement DeleteByPrefix as a no-op; the
// decorator treats invalidation as best-effort and TTL as the hard bound
// on staleness either way.
type CacheService interface {
	// Get returns the value stored under key, reporting a miss with
	// found == false rather than an error.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key for ttl. A non-positive ttl falls back
	// to the backend's configured default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single entry. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteByPrefix removes every entry whose key starts with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error

	// Stats reports counters accumulated since the backend was created.
	Stats() Stats
}

// Stats carries hit/miss accounting for a backend. It aliases the
// adapter-level type so backend implementations satisfy CacheService
// without importing this package.
type Stats = cacheinfra.Stats

// Lookup fetches and decodes a typed value from the backend. A decode
// failure is reported as an error so the caller can treat the entry as a
// miss and overwrite it.
func Lookup[T any](ctx context.Context, svc CacheService, key string) (T, bool, error) {
	var out T
	raw, found, err := svc.Get(ctx, key)
	if err != nil || !found {
		return out, false, err
	}
	if err := msgpack.Unmarshal(raw, &out); err != nil {
		return out, false, err
	}
	return out, true, nil
}

// StoreValue encodes and stores a typed value under key.
func StoreValue[T any](ctx context.Context, svc CacheService, key string, value T, ttl time.Duration) error {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	return svc.Set(ctx, key, raw, ttl)
}
