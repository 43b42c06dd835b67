// Package repositorycache provides a caching decorator for document
// store repositories.
//
// # Overview
//
// CachedRepository[T] wraps any repository.Repository[T] and implements
// the same interface, so callers cannot tell a decorated repository from
// a bare one. Read operations become read-through cached; write
// operations pass through to the base repository and then invalidate the
// decorator's key namespace.
//
// # Basic Usage
//
//	store := docstore.NewMemoryStore()
//	users, _ := repository.New(store, repository.Config[*User]{
//		Collection: "users",
//		Handlers:   repository.ModelHandlers[*User]{NewRecord: func() *User { return &User{} }},
//		SoftDelete: true,
//	})
//
//	backend, _ := cache.NewMemoryService(cache.DefaultConfig())
//	keys := cache.NewKeySerializer("app", "tenant-1")
//
//	cached := repositorycache.New(users, backend, keys)
//
//	// Use exactly like the base repository.
//	user, found, err := cached.FindByID(ctx, "user-123")
//
// # Cached vs Pass-through Operations
//
// Cached (read path): FindByID, FindOne, Find, FindPaginated, FindByIDs,
// Count, Exists, and the OrFail variants (which share the plain
// variants' cache entries).
//
// Pass-through: all write operations, Aggregate, any operation issued
// inside a WithTransaction block, and any operation issued with a
// WithoutCache context.
//
// # Caching Behavior
//
// On a read the decorator derives a deterministic key from its
// namespace, the operation name, and the parameters, then:
//
//  1. Attempts a cache lookup; a hit returns immediately.
//  2. On a miss, calls the base repository.
//  3. Populates the cache asynchronously; the read never waits on the
//     cache write, and a slow or failing cache cannot delay the response.
//
// A cache backend error is logged and treated as a miss; the decorator
// never surfaces a failure mode the bare repository would not have.
//
// # Invalidation
//
// After any successful write the decorator deletes every key under its
// namespace prefix. This is deliberately coarse: it favors never serving
// stale reads over preserving warm entries. Invalidation is best-effort;
// when the backend cannot enumerate its keys the real consistency
// contract is "eventually consistent within one TTL".
//
// # Transactions
//
// Reads carrying a docstore session bypass the cache so they observe
// transaction-consistent state, and nothing read inside a transaction is
// written back to the cache. A committed transaction invalidates the
// namespace like any other write.
//
// # Degraded Mode
//
// Constructed with a nil cache service or the cache.Disabled backend,
// every operation is a pure passthrough. The decorator is safe to apply
// unconditionally in all environments.
package repositorycache
