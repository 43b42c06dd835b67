package cacheinfra

import (
	"context"
	"time"
)

// noopService is the disabled-cache backend: every read misses and every
// write is discarded. Decorating a repository with it yields a pure
// passthrough, which is the contracted degraded mode when no cache
// credentials are configured.
type noopService struct {
	counters
}

// NewNoopService returns the disabled-cache backend.
func NewNoopService() *noopService {
	return &noopService{}
}

func (s *noopService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.misses.Add(1)
	return nil, false, nil
}

func (s *noopService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (s *noopService) Delete(ctx context.Context, key string) error { return nil }

func (s *noopService) DeleteByPrefix(ctx context.Context, prefix string) error { return nil }

func (s *noopService) Stats() Stats {
	return s.counters.stats("disabled")
}
