package repositorycache

import (
	"context"
	"time"
)

type skipCacheContextKey struct{}
type callTTLContextKey struct{}

// WithoutCache marks the context so every read on a decorated repository
// bypasses the cache and goes straight to the store. Useful for
// read-after-write paths that must observe their own writes immediately.
func WithoutCache(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, skipCacheContextKey{}, true)
}

func isCacheSkipped(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	skipped, _ := ctx.Value(skipCacheContextKey{}).(bool)
	return skipped
}

// WithCallTTL overrides the decorator's default TTL for reads issued
// with this context.
func WithCallTTL(ctx context.Context, ttl time.Duration) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callTTLContextKey{}, ttl)
}

func callTTL(ctx context.Context, fallback time.Duration) time.Duration {
	if ctx == nil {
		return fallback
	}
	if ttl, ok := ctx.Value(callTTLContextKey{}).(time.Duration); ok && ttl > 0 {
		return ttl
	}
	return fallback
}
