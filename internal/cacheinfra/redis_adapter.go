package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig carries the connection settings for the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// TTL is the default per-entry TTL applied when a Set call does not
	// specify one. Zero falls back to the DefaultConfig TTL.
	TTL time.Duration
}

// redisService implements the cache backend on a Redis server. Unlike
// the in-process backend it honors per-entry TTLs exactly, and its
// DeleteByPrefix walks the keyspace with SCAN so invalidation stays
// non-blocking on the server.
type redisService struct {
	client     *redis.Client
	defaultTTL time.Duration
	counters
}

// NewRedisService connects to Redis and verifies the connection with a
// bounded ping. A missing address is a configuration error; callers that
// want graceful degradation should construct the noop backend instead.
func NewRedisService(cfg RedisConfig) (*redisService, error) {
	if cfg.Addr == "" {
		return nil, &ConfigError{Field: "Addr", Message: "redis address is required"}
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultConfig().TTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &redisService{client: client, defaultTTL: ttl}, nil
}

func (s *redisService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	s.hits.Add(1)
	return raw, true, nil
}

func (s *redisService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return err
	}
	s.sets.Add(1)
	return nil
}

func (s *redisService) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *redisService) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := s.client.Scan(ctx, 0, prefix+"*", 256).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 256 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return s.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (s *redisService) Stats() Stats {
	return s.counters.stats("redis")
}

// Close releases the underlying Redis connection pool.
func (s *redisService) Close() error {
	return s.client.Close()
}
