// Package di wires the document store, the cache backend, and the key
// serializer into a container that hands out repositories. The cache
// backend is chosen from configuration: Redis when credentials are
// present, the in-process backend for single-node deployments, and the
// disabled backend otherwise. A missing cache is a degraded mode, never
// a startup failure.
package di

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-docstore/cache"
	"github.com/goliatone/go-repository-docstore/docstore"
	"github.com/goliatone/go-repository-docstore/internal/logging"
	"github.com/goliatone/go-repository-docstore/repository"
	"github.com/goliatone/go-repository-docstore/repositorycache"
)

// Config selects and parameterizes the container's collaborators.
type Config struct {
	// CacheDriver is "redis", "memory", or "" for disabled.
	CacheDriver string

	// CacheTTL is the default TTL for cached entries.
	CacheTTL time.Duration

	// KeyPrefix namespaces every cache key this container's decorators
	// emit, so multiple applications can share one cache server.
	KeyPrefix string

	// Tags further qualify the cache namespace (e.g. a tenant id).
	Tags []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogEnv   string
	LogLevel string
}

// FromEnv builds a Config from the process environment, loading a .env
// file first when one exists (missing files are fine).
//
// Recognized variables: CACHE_DRIVER, CACHE_TTL, CACHE_KEY_PREFIX,
// REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, LOG_ENV, LOG_LEVEL.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{
		CacheDriver:   os.Getenv("CACHE_DRIVER"),
		KeyPrefix:     os.Getenv("CACHE_KEY_PREFIX"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LogEnv:        os.Getenv("LOG_ENV"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
	}
	if raw := os.Getenv("CACHE_TTL"); raw != "" {
		if ttl, err := time.ParseDuration(raw); err == nil {
			cfg.CacheTTL = ttl
		}
	}
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if db, err := strconv.Atoi(raw); err == nil {
			cfg.RedisDB = db
		}
	}
	return cfg
}

// Container owns the process-wide collaborators: one store handle, one
// cache backend, one key serializer. Repositories created through it
// share them, matching the contract that these clients are singletons.
type Container struct {
	store         docstore.Store
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	config        Config
}

// NewContainer wires a container around the given store.
func NewContainer(store docstore.Store, cfg Config) (*Container, error) {
	logging.Init(logging.Config{Env: cfg.LogEnv, Level: cfg.LogLevel})
	log := logging.Named("di")

	cacheService, err := buildCacheService(cfg, log)
	if err != nil {
		return nil, err
	}

	return &Container{
		store:         store,
		cacheService:  cacheService,
		keySerializer: cache.NewKeySerializer(cfg.KeyPrefix, cfg.Tags...),
		config:        cfg,
	}, nil
}

func buildCacheService(cfg Config, log *zap.Logger) (cache.CacheService, error) {
	switch cfg.CacheDriver {
	case "redis":
		if cfg.RedisAddr == "" {
			// Redis requested but no credentials provided: degrade to
			// disabled rather than failing startup.
			log.Warn("redis cache requested without REDIS_ADDR, cache disabled")
			return cache.Disabled(), nil
		}
		svc, err := cache.NewRedisService(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		if err != nil {
			log.Warn("redis cache unreachable, cache disabled", zap.Error(err))
			return cache.Disabled(), nil
		}
		return svc, nil

	case "memory":
		memCfg := cache.DefaultConfig()
		if cfg.CacheTTL > 0 {
			memCfg.TTL = cfg.CacheTTL
		}
		return cache.NewMemoryService(memCfg)

	default:
		return cache.Disabled(), nil
	}
}

// Store returns the shared document store handle.
func (c *Container) Store() docstore.Store { return c.store }

// CacheService returns the shared cache backend.
func (c *Container) CacheService() cache.CacheService { return c.cacheService }

// KeySerializer returns the shared key serializer.
func (c *Container) KeySerializer() cache.KeySerializer { return c.keySerializer }

// Config returns a copy of the configuration the container was built with.
func (c *Container) Config() Config { return c.config }

// NewRepository creates a bare repository bound to the container's store.
// Package-level because Go methods cannot carry type parameters.
func NewRepository[T repository.Entity](c *Container, cfg repository.Config[T]) (repository.Repository[T], error) {
	return repository.New(c.store, cfg)
}

// NewCachedRepository creates a repository and wraps it with the
// container's cache backend and key serializer. With the cache disabled
// the decorator is a pure passthrough, so this is always safe to use.
func NewCachedRepository[T repository.Entity](c *Container, cfg repository.Config[T]) (repository.Repository[T], error) {
	base, err := repository.New(c.store, cfg)
	if err != nil {
		return nil, err
	}
	var opts []repositorycache.Option[T]
	if c.config.CacheTTL > 0 {
		opts = append(opts, repositorycache.WithTTL[T](c.config.CacheTTL))
	}
	return repositorycache.New(base, c.cacheService, c.keySerializer, opts...), nil
}

var (
	defaultOnce      sync.Once
	defaultContainer *Container
	defaultErr       error
)

// Initialize constructs the process-wide default container exactly once.
// Later calls return the first result regardless of arguments, guarding
// against duplicate construction of the shared clients.
func Initialize(store docstore.Store, cfg Config) (*Container, error) {
	defaultOnce.Do(func() {
		defaultContainer, defaultErr = NewContainer(store, cfg)
	})
	return defaultContainer, defaultErr
}

// Default returns the container created by Initialize, or nil before
// initialization.
func Default() *Container { return defaultContainer }
