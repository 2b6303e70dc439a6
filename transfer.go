package settingsstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Export returns every readable entry in the namespace as one JSON
// object mapping logical key to stored value. Envelope metadata is not
// exported.
func (s *Store) Export(ctx context.Context) string {
	out := make(map[string]json.RawMessage)
	for _, k := range s.ListKeys(ctx) {
		if env, ok := s.load(ctx, k); ok {
			out[k] = env.Value
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		s.logger.Error("export failed", "error", err)
		return "{}"
	}
	return string(data)
}

// Import writes every key of an exported document through Set. Each
// value gets a fresh envelope. Settings are written without a TTL; cache
// entries keep their recorded TTL, restarted from now. It reports false
// if blob is not a JSON object or any key failed to write; the remaining
// keys are still written.
func (s *Store) Import(ctx context.Context, blob string) bool {
	if !s.ready() {
		return false
	}
	var in map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &in); err != nil || in == nil {
		s.logger.Error("import failed: not a JSON object", "error", err)
		return false
	}

	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ok, cached := true, false
	for _, k := range keys {
		var written bool
		if strings.HasPrefix(k, cacheKeyPrefix) {
			written = s.importCacheEntry(ctx, k, in[k])
			cached = true
		} else {
			written = s.Set(ctx, k, in[k], 0)
		}
		if !written {
			ok = false
		}
	}
	if cached {
		s.enforceCacheBound(ctx, "")
	}
	s.logger.Info("imported settings", "keys", len(keys), "ok", ok)
	return ok
}

// importCacheEntry rewrites an exported cache record with a fresh
// timestamp and its original TTL, or the default cache TTL when the
// record carries none.
func (s *Store) importCacheEntry(ctx context.Context, key string, raw json.RawMessage) bool {
	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Data == nil {
		s.logger.Warn("imported cache value is not a cache entry", "key", key)
		entry = CacheEntry{Key: strings.TrimPrefix(key, cacheKeyPrefix), Data: raw}
	}
	ttl := time.Duration(entry.TTL) * time.Millisecond
	if ttl <= 0 {
		ttl = s.cacheTTL
	}
	entry.TTL = ttl.Milliseconds()
	entry.Timestamp = s.clock.Now().UnixMilli()
	return s.Set(ctx, key, entry, ttl)
}
