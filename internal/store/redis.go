package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary store and then refresh the cache; reads check
// Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.primary.Save(ctx, key, data); err != nil {
		// Drop any cached copy so a stale value is not served.
		s.rdb.Del(ctx, cacheKey(key))
		return err
	}
	s.rdb.Set(ctx, cacheKey(key), data, s.ttl)
	return nil
}

func (s *CachedStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err == nil {
		return data, nil
	}

	// Cache miss (or Redis down): read from primary.
	data, err = s.primary.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	s.rdb.Set(ctx, cacheKey(key), data, s.ttl)
	return data, nil
}

// List is not cached.
func (s *CachedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.primary.List(ctx, prefix)
}

func cacheKey(key string) string { return "snapshot:" + key }
