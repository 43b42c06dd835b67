package repositorycache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-repository-docstore/cache"
	"github.com/goliatone/go-repository-docstore/docstore"
	"github.com/goliatone/go-repository-docstore/internal/logging"
	"github.com/goliatone/go-repository-docstore/repository"
)

// Interface assertion to ensure CachedRepository implements Repository[T].
var _ repository.Repository[*repository.Model] = (*CachedRepository[*repository.Model])(nil)

// recordResult wraps the (record, found) tuple of single-record reads so
// "found" and "not found" both cache.
type recordResult[T any] struct {
	Record T    `msgpack:"record"`
	Found  bool `msgpack:"found"`
}

// CachedRepository decorates a base repository with read-through caching
// and write-triggered invalidation. It implements the same Repository
// interface as the base, so it is a drop-in replacement for callers.
//
// Reads consult the cache first and fall through to the base on a miss;
// the miss result is written back asynchronously so a slow or failing
// cache never delays the response. Writes delegate to the base and then
// invalidate this repository's whole key namespace, best-effort.
// Operations running inside a store transaction bypass the cache in both
// directions.
type CachedRepository[T repository.Entity] struct {
	base      repository.Repository[T]
	cache     cache.CacheService
	keys      cache.KeySerializer
	namespace string
	ttl       time.Duration
	enabled   bool
	log       *zap.Logger

	// inflight tracks fire-and-forget cache populations so tests can
	// wait for them deterministically.
	inflight sync.WaitGroup
}

// Option customizes a CachedRepository.
type Option[T repository.Entity] func(*CachedRepository[T])

// WithTTL sets the default TTL for entries this decorator populates.
func WithTTL[T repository.Entity](ttl time.Duration) Option[T] {
	return func(c *CachedRepository[T]) { c.ttl = ttl }
}

// WithNamespace overrides the derived cache namespace. Needed only when
// two decorated repositories share a collection name.
func WithNamespace[T repository.Entity](ns string) Option[T] {
	return func(c *CachedRepository[T]) { c.namespace = toSnake(ns) }
}

// New wraps base with caching. Passing a nil cache service (or the
// Disabled backend) is safe: the decorator degrades to a pure
// passthrough, so it can be applied unconditionally in all environments.
func New[T repository.Entity](base repository.Repository[T], cacheService cache.CacheService, keys cache.KeySerializer, opts ...Option[T]) *CachedRepository[T] {
	c := &CachedRepository[T]{
		base:      base,
		cache:     cacheService,
		keys:      keys,
		namespace: toSnake(base.Collection()),
		ttl:       0, // backend default
		enabled:   cacheService != nil && keys != nil,
		log:       logging.Named("repositorycache").With(zap.String("collection", base.Collection())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedRepository[T]) Collection() string { return c.base.Collection() }

// bypass reports whether this call must skip the cache entirely:
// transactional reads must see transaction-consistent state, and callers
// may opt out per call with WithoutCache.
func (c *CachedRepository[T]) bypass(ctx context.Context) bool {
	if !c.enabled || isCacheSkipped(ctx) {
		return true
	}
	_, inTx := docstore.SessionFromContext(ctx)
	return inTx
}

func (c *CachedRepository[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	if c.bypass(ctx) {
		return c.base.FindByID(ctx, id)
	}
	key := c.keys.SerializeKey(c.namespace, "FindByID", id)
	res, err := readThrough(ctx, c, key, func(ctx context.Context) (recordResult[T], error) {
		record, found, err := c.base.FindByID(ctx, id)
		return recordResult[T]{Record: record, Found: found}, err
	})
	return res.Record, res.Found, err
}

func (c *CachedRepository[T]) FindByIDOrFail(ctx context.Context, id string) (T, error) {
	record, found, err := c.FindByID(ctx, id)
	if err != nil {
		return record, err
	}
	if !found {
		return record, &repository.NotFoundError{Collection: c.base.Collection(), ID: id}
	}
	return record, nil
}

func (c *CachedRepository[T]) FindOne(ctx context.Context, filter docstore.Filter) (T, bool, error) {
	if c.bypass(ctx) {
		return c.base.FindOne(ctx, filter)
	}
	key := c.keys.SerializeKey(c.namespace, "FindOne", filter)
	res, err := readThrough(ctx, c, key, func(ctx context.Context) (recordResult[T], error) {
		record, found, err := c.base.FindOne(ctx, filter)
		return recordResult[T]{Record: record, Found: found}, err
	})
	return res.Record, res.Found, err
}

func (c *CachedRepository[T]) FindOneOrFail(ctx context.Context, filter docstore.Filter) (T, error) {
	record, found, err := c.FindOne(ctx, filter)
	if err != nil {
		return record, err
	}
	if !found {
		return record, &repository.NotFoundError{Collection: c.base.Collection()}
	}
	return record, nil
}

func (c *CachedRepository[T]) Find(ctx context.Context, filter docstore.Filter, opts ...repository.FindOption) ([]T, error) {
	if c.bypass(ctx) {
		return c.base.Find(ctx, filter, opts...)
	}
	key := c.keys.SerializeKey(c.namespace, "Find", filter, findOptionsKey(opts))
	return readThrough(ctx, c, key, func(ctx context.Context) ([]T, error) {
		return c.base.Find(ctx, filter, opts...)
	})
}

func (c *CachedRepository[T]) FindPaginated(ctx context.Context, filter docstore.Filter, page, limit int) (repository.Page[T], error) {
	if c.bypass(ctx) {
		return c.base.FindPaginated(ctx, filter, page, limit)
	}
	key := c.keys.SerializeKey(c.namespace, "FindPaginated", filter, page, limit)
	return readThrough(ctx, c, key, func(ctx context.Context) (repository.Page[T], error) {
		return c.base.FindPaginated(ctx, filter, page, limit)
	})
}

func (c *CachedRepository[T]) FindByIDs(ctx context.Context, ids []string) (map[string]T, error) {
	if c.bypass(ctx) {
		return c.base.FindByIDs(ctx, ids)
	}
	key := c.keys.SerializeKey(c.namespace, "FindByIDs", ids)
	return readThrough(ctx, c, key, func(ctx context.Context) (map[string]T, error) {
		return c.base.FindByIDs(ctx, ids)
	})
}

func (c *CachedRepository[T]) Count(ctx context.Context, filter docstore.Filter) (int64, error) {
	if c.bypass(ctx) {
		return c.base.Count(ctx, filter)
	}
	key := c.keys.SerializeKey(c.namespace, "Count", filter)
	return readThrough(ctx, c, key, func(ctx context.Context) (int64, error) {
		return c.base.Count(ctx, filter)
	})
}

func (c *CachedRepository[T]) Exists(ctx context.Context, filter docstore.Filter) (bool, error) {
	if c.bypass(ctx) {
		return c.base.Exists(ctx, filter)
	}
	key := c.keys.SerializeKey(c.namespace, "Exists", filter)
	return readThrough(ctx, c, key, func(ctx context.Context) (bool, error) {
		return c.base.Exists(ctx, filter)
	})
}

func (c *CachedRepository[T]) Aggregate(ctx context.Context, pipeline docstore.Pipeline) ([]docstore.Document, error) {
	// Pipelines carry interface-typed stages that do not serialize into
	// stable keys, so aggregation always goes to the store.
	return c.base.Aggregate(ctx, pipeline)
}

// Write operations delegate first, then invalidate this namespace.

func (c *CachedRepository[T]) InsertOne(ctx context.Context, record T) (T, error) {
	result, err := c.base.InsertOne(ctx, record)
	if err == nil {
		c.invalidate(ctx)
	}
	return result, err
}

func (c *CachedRepository[T]) Create(ctx context.Context, record T) (T, error) {
	return c.InsertOne(ctx, record)
}

func (c *CachedRepository[T]) InsertMany(ctx context.Context, records []T) ([]T, error) {
	result, err := c.base.InsertMany(ctx, records)
	if err == nil {
		c.invalidate(ctx)
	}
	return result, err
}

func (c *CachedRepository[T]) UpdateOne(ctx context.Context, id string, patch docstore.Document) (T, bool, error) {
	record, found, err := c.base.UpdateOne(ctx, id, patch)
	if err == nil {
		c.invalidate(ctx)
	}
	return record, found, err
}

func (c *CachedRepository[T]) UpdateOneByFilter(ctx context.Context, filter docstore.Filter, patch docstore.Document) (T, bool, error) {
	record, found, err := c.base.UpdateOneByFilter(ctx, filter, patch)
	if err == nil {
		c.invalidate(ctx)
	}
	return record, found, err
}

func (c *CachedRepository[T]) UpdateMany(ctx context.Context, filter docstore.Filter, patch docstore.Document) (int64, error) {
	n, err := c.base.UpdateMany(ctx, filter, patch)
	if err == nil {
		c.invalidate(ctx)
	}
	return n, err
}

func (c *CachedRepository[T]) BatchUpdate(ctx context.Context, patches []repository.IDPatch) (int64, error) {
	n, err := c.base.BatchUpdate(ctx, patches)
	if err == nil {
		c.invalidate(ctx)
	}
	return n, err
}

func (c *CachedRepository[T]) DeleteOne(ctx context.Context, id string) (bool, error) {
	ok, err := c.base.DeleteOne(ctx, id)
	if err == nil {
		c.invalidate(ctx)
	}
	return ok, err
}

func (c *CachedRepository[T]) HardDeleteOne(ctx context.Context, id string) (bool, error) {
	ok, err := c.base.HardDeleteOne(ctx, id)
	if err == nil {
		c.invalidate(ctx)
	}
	return ok, err
}

func (c *CachedRepository[T]) Restore(ctx context.Context, id string) (T, bool, error) {
	record, found, err := c.base.Restore(ctx, id)
	if err == nil {
		c.invalidate(ctx)
	}
	return record, found, err
}

func (c *CachedRepository[T]) BatchDelete(ctx context.Context, ids []string) (int64, error) {
	n, err := c.base.BatchDelete(ctx, ids)
	if err == nil {
		c.invalidate(ctx)
	}
	return n, err
}

// WithTransaction runs fn through the base repository. Reads inside the
// transaction bypass the cache via the session in the context; after a
// successful commit the namespace is invalidated since the transaction
// may have written anything.
func (c *CachedRepository[T]) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := c.base.WithTransaction(ctx, fn)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

// invalidate drops every cached entry in this repository's namespace.
// Best-effort: a failing or scan-incapable backend only costs freshness
// (bounded by TTL), never correctness, so errors are logged and dropped.
func (c *CachedRepository[T]) invalidate(ctx context.Context) {
	if !c.enabled {
		return
	}
	prefix := c.keys.NamespacePrefix(c.namespace)
	if err := c.cache.DeleteByPrefix(detach(ctx), prefix); err != nil {
		c.log.Warn("cache invalidation failed", zap.String("prefix", prefix), zap.Error(err))
		return
	}
	c.log.Debug("cache namespace invalidated", zap.String("prefix", prefix))
}

// readThrough implements the read-path contract: cache lookup, fall
// through to fetch on a miss, then populate the cache without making the
// caller wait. Cache faults are absorbed and logged; they can only ever
// degrade this call to a direct query.
func readThrough[T repository.Entity, R any](ctx context.Context, c *CachedRepository[T], key string, fetch func(ctx context.Context) (R, error)) (R, error) {
	cached, found, err := cache.Lookup[R](ctx, c.cache, key)
	if err != nil {
		c.log.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
	} else if found {
		return cached, nil
	}

	result, err := fetch(ctx)
	if err != nil {
		return result, err
	}

	ttl := callTTL(ctx, c.ttl)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Warn("cache population panicked", zap.String("key", key), zap.Any("panic", r))
			}
		}()
		if err := cache.StoreValue(detach(ctx), c.cache, key, result, ttl); err != nil {
			c.log.Warn("cache population failed", zap.String("key", key), zap.Error(err))
		}
	}()

	return result, nil
}

// detach strips cancellation so cache writes and invalidations survive
// the originating request, while keeping context values for tracing.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// flush waits for in-flight cache populations. Test hook.
func (c *CachedRepository[T]) flush() {
	c.inflight.Wait()
}

// findOptionsKey renders Find options into a serializable value for key
// derivation; the option funcs themselves have no stable identity.
func findOptionsKey(opts []repository.FindOption) docstore.FindOptions {
	out := docstore.FindOptions{}
	for _, opt := range opts {
		opt(&out)
	}
	return out
}
