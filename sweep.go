package settingsstore

import (
	"context"
	"sort"
	"time"
)

// SweepExpired removes every cache entry that has expired or can no
// longer be decoded, and returns how many were removed. Settings and
// preference entries are never swept.
func (s *Store) SweepExpired(ctx context.Context) int {
	keys, ok := s.cacheKeys(ctx)
	if !ok {
		return 0
	}

	now := s.clock.Now()
	removed := 0
	for _, k := range keys {
		data, err := s.backend.Get(ctx, k)
		if err != nil {
			continue
		}
		if env, err := Decode(data); err == nil && !env.Expired(now) {
			continue
		}
		s.purge(ctx, k)
		removed++
	}

	if removed > 0 {
		s.logger.Info("swept expired cache entries", "removed", removed)
	}
	return removed
}

// RunSweeper calls SweepExpired every interval until ctx is cancelled.
// It returns immediately if interval is not positive.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepExpired(ctx)
		case <-ctx.Done():
			return
		}
	}
}

type cacheRecord struct {
	key     string
	written int64
}

// enforceCacheBound evicts cache entries until at most maxCacheEntries
// remain. Expired and unreadable entries go first, then the oldest
// writes. The entry under keep is never evicted.
func (s *Store) enforceCacheBound(ctx context.Context, keep string) int {
	if s.maxCacheEntries <= 0 {
		return 0
	}
	keys, ok := s.cacheKeys(ctx)
	if !ok || len(keys) <= s.maxCacheEntries {
		return 0
	}

	now := s.clock.Now()
	evicted, kept := 0, 0
	live := make([]cacheRecord, 0, len(keys))
	for _, k := range keys {
		data, err := s.backend.Get(ctx, k)
		if err != nil {
			continue
		}
		env, err := Decode(data)
		if err != nil || env.Expired(now) {
			s.purge(ctx, k)
			evicted++
			continue
		}
		if k == keep {
			kept = 1
			continue
		}
		live = append(live, cacheRecord{key: k, written: env.Timestamp})
	}

	sort.SliceStable(live, func(i, j int) bool {
		if live[i].written != live[j].written {
			return live[i].written < live[j].written
		}
		return live[i].key < live[j].key
	})

	for excess := len(live) + kept - s.maxCacheEntries; excess > 0 && len(live) > 0; excess-- {
		s.purge(ctx, live[0].key)
		live = live[1:]
		evicted++
	}

	if evicted > 0 {
		s.logger.Info("evicted cache entries", "evicted", evicted, "limit", s.maxCacheEntries)
	}
	return evicted
}
