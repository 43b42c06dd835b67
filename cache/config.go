package cache

import (
	"time"

	"github.com/goliatone/go-repository-docstore/internal/cacheinfra"
)

// Config exposes the in-process cache backend options for consumers of
// the cache package.
type Config struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewMemoryService constructs the in-process cache backend (sturdyc).
func NewMemoryService(cfg Config) (CacheService, error) {
	return cacheinfra.NewSturdycService(cfg.toInternal())
}

// RedisConfig carries the connection settings for the Redis backend.
// Credentials come from the environment; an empty Addr means "no cache
// configured" and callers should fall back to Disabled.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisService constructs the Redis cache backend.
func NewRedisService(cfg RedisConfig) (CacheService, error) {
	return cacheinfra.NewRedisService(cacheinfra.RedisConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		TTL:      cfg.TTL,
	})
}

// Disabled returns the no-op backend: every Get misses and every write
// is discarded. Decorating a repository with it is a pure passthrough.
func Disabled() CacheService {
	return cacheinfra.NewNoopService()
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}
