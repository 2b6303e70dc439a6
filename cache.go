package settingsstore

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

const (
	cacheKeyPrefix = "cache_"

	// DefaultCacheTTL applies to cache entries written without a TTL.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultMaxCacheEntries bounds the number of cache entries per Store.
	DefaultMaxCacheEntries = 100
)

// CacheEntry is the stored form of an ad-hoc cache value.
type CacheEntry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	TTL       int64           `json:"ttl"`
}

// SetCacheData caches data under key for ttl, or for the default cache
// TTL when ttl is not positive. Writing past the entry bound evicts the
// oldest cache entries.
func (s *Store) SetCacheData(ctx context.Context, key string, data any, ttl time.Duration) bool {
	if !s.ready() {
		return false
	}
	if ttl <= 0 {
		ttl = s.cacheTTL
	}
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("encode failed", "key", cacheKeyPrefix+key, "error", err)
		return false
	}
	entry := CacheEntry{
		Key:       key,
		Data:      raw,
		Timestamp: s.clock.Now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	}
	if !s.Set(ctx, cacheKeyPrefix+key, entry, ttl) {
		return false
	}
	s.enforceCacheBound(ctx, s.key(cacheKeyPrefix+key))
	return true
}

// GetCacheData returns the cached data for key decoded into T.
func GetCacheData[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var v T
	entry, ok := Get[CacheEntry](ctx, s, cacheKeyPrefix+key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(entry.Data, &v); err != nil {
		s.logger.Warn("cached data does not match requested type", "key", key, "error", err)
		var zero T
		return zero, false
	}
	return v, true
}

// RemoveCacheData deletes one cache entry.
func (s *Store) RemoveCacheData(ctx context.Context, key string) bool {
	return s.Remove(ctx, cacheKeyPrefix+key)
}

// ClearCache removes every cache entry and leaves settings untouched.
func (s *Store) ClearCache(ctx context.Context) bool {
	keys, ok := s.cacheKeys(ctx)
	if !ok {
		return false
	}
	for _, k := range keys {
		if err := s.backend.Remove(ctx, k); err != nil {
			s.logger.Error("remove failed", "key", k, "error", err)
			ok = false
		}
	}
	s.logger.Info("cleared cache", "entries", len(keys))
	return ok
}

// cacheKeys returns the full backend keys of every cache entry.
func (s *Store) cacheKeys(ctx context.Context) ([]string, bool) {
	all, ok := s.prefixedKeys(ctx)
	if !ok {
		return nil, false
	}
	keys := all[:0]
	for _, k := range all {
		if strings.HasPrefix(k, s.prefix+cacheKeyPrefix) {
			keys = append(keys, k)
		}
	}
	return keys, true
}
