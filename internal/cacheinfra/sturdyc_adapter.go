// Package cacheinfra holds the cache backend adapters: an in-process
// sturdyc store, a Redis store, and a no-op store for deployments where
// caching is disabled. All three implement the byte-valued backend
// contract the cache package defines.
package cacheinfra

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc cache adapter.
type Config struct {
	// Capacity is the maximum number of entries the cache can hold.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent
	// access. Must be greater than 0.
	NumShards int

	// TTL is the time-to-live applied to every entry. sturdyc's TTL is
	// client-wide, so per-entry TTL requests are clamped to this value.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage is the share of entries evicted when the cache
	// reaches capacity. Must be between 1 and 100.
	EvictionPercentage int

	// EvictionInterval sets how often expired entries are collected.
	// Zero uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// Stats mirrors cache.Stats without importing the cache package, which
// would create an import cycle.
type Stats struct {
	Backend string
	Hits    int64
	Misses  int64
	Sets    int64
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

func (c *counters) stats(backend string) Stats {
	return Stats{
		Backend: backend,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Sets:    c.sets.Load(),
	}
}

// sturdycService wraps a sturdyc client as a byte-valued cache backend.
type sturdycService struct {
	client *sturdyc.Client[[]byte]
	counters
}

// NewSturdycService creates the in-process cache backend. It validates
// the configuration and initializes a sturdyc client with the provided
// settings.
func NewSturdycService(cfg Config) (*sturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var options []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}

	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		options...,
	)
	return &sturdycService{client: client}, nil
}

func (s *sturdycService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, found := s.client.Get(key)
	if found {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return value, found, nil
}

// Set stores the value under the client-wide TTL. The ttl argument is
// accepted for interface compatibility; sturdyc has no per-entry TTL.
func (s *sturdycService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.client.Set(key, value)
	s.sets.Add(1)
	return nil
}

func (s *sturdycService) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix scans the client's keys and removes every match. Scan
// cost is proportional to the number of live entries, which is bounded
// by the configured capacity.
func (s *sturdycService) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

func (s *sturdycService) Stats() Stats {
	return s.counters.stats("memory")
}
