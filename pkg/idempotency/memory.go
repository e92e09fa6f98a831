package idempotency

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore is a process-local Store for single-instance deployments and
// tests.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(ttl, cleanupInterval)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Record, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	rec := v.(Record)
	return &rec, true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, rec Record) (bool, error) {
	if err := s.cache.Add(key, rec, cache.DefaultExpiration); err != nil {
		// already present
		return false, nil
	}
	return true, nil
}
