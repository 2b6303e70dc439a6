package settingsstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
)

const (
	// DefaultPrefix namespaces every key a Store writes.
	DefaultPrefix = "fleet_"

	// DefaultQuota is the assumed capacity of the host backend in bytes.
	DefaultQuota int64 = 5 * 1024 * 1024
)

// Option customizes Store behavior.
type Option func(*Store)

// WithPrefix sets the namespace prefix prepended to every logical key.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithLogger specifies a logger for operation logging.
// If not provided, nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLogTag attaches a component attribute to every log record.
// Apply it after WithLogger.
func WithLogTag(tag string) Option {
	return func(s *Store) {
		s.logger = s.logger.With("component", tag)
	}
}

// WithClock replaces the time source used for timestamps and TTL checks.
func WithClock(clock Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithQuota sets the total capacity reported by Usage.
func WithQuota(bytes int64) Option {
	return func(s *Store) {
		if bytes > 0 {
			s.quota = bytes
		}
	}
}

// WithMaxCacheEntries bounds the number of cache entries. Zero or less
// disables the bound.
func WithMaxCacheEntries(n int) Option {
	return func(s *Store) {
		s.maxCacheEntries = n
	}
}

// WithDefaultCacheTTL sets the TTL applied to cache entries written
// without one.
func WithDefaultCacheTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// Store is a namespaced, envelope-encoding view over a Backend.
// Every public operation is total: failures are logged and reported as
// false or absent, never returned as errors.
type Store struct {
	backend         Backend
	prefix          string
	logger          *slog.Logger
	clock           Clock
	quota           int64
	maxCacheEntries int
	cacheTTL        time.Duration

	unavailable     atomic.Bool
	unavailableOnce sync.Once
}

// New creates a Store over backend. Defaults: DefaultPrefix, DefaultQuota,
// DefaultMaxCacheEntries, DefaultCacheTTL, no logging.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:         backend,
		prefix:          DefaultPrefix,
		logger:          defaultLogger,
		clock:           realClock{},
		quota:           DefaultQuota,
		maxCacheEntries: DefaultMaxCacheEntries,
		cacheTTL:        DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prefix returns the namespace prefix.
func (s *Store) Prefix() string {
	return s.prefix
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) ready() bool {
	return s.backend != nil && !s.unavailable.Load()
}

func (s *Store) markUnavailable(err error) {
	s.unavailable.Store(true)
	s.unavailableOnce.Do(func() {
		s.logger.Error("storage backend unavailable, operations disabled", "error", err)
	})
}

// IsAvailable probes the backend with a throwaway write and delete. A
// failed probe switches every later operation to a no-op until a probe
// succeeds again.
func (s *Store) IsAvailable(ctx context.Context) bool {
	if s.backend == nil {
		s.markUnavailable(ErrUnavailable)
		return false
	}
	probe := s.prefix + "__probe_" + uuid.NewString()
	if err := s.backend.Set(ctx, probe, "probe"); err != nil {
		s.markUnavailable(err)
		return false
	}
	if err := s.backend.Remove(ctx, probe); err != nil {
		s.markUnavailable(err)
		return false
	}
	s.unavailable.Store(false)
	return true
}

// Set encodes value into an envelope and writes it under key. A ttl of
// zero or less never expires.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !s.ready() {
		return false
	}
	data, err := Encode(value, ttl, s.clock.Now())
	if err != nil {
		s.logger.Error("encode failed", "key", key, "error", err)
		return false
	}
	if err := s.backend.Set(ctx, s.key(key), data); err != nil {
		s.logger.Error("write failed", "key", key, "error", err)
		if errors.Is(err, ErrUnavailable) {
			s.markUnavailable(err)
		}
		return false
	}
	s.logger.Debug("set", "key", key, "ttl", ttl)
	return true
}

// Get decodes the value stored under key into T. It reports false when
// the key is absent, expired, corrupt, or holds a payload that does not
// decode into T. Expired and corrupt entries are purged.
func Get[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var v T
	env, ok := s.load(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(env.Value, &v); err != nil {
		s.logger.Warn("value does not match requested type", "key", key, "error", err)
		var zero T
		return zero, false
	}
	return v, true
}

// GetOr is Get with a fallback returned whenever Get reports false.
func GetOr[T any](ctx context.Context, s *Store, key string, def T) T {
	if v, ok := Get[T](ctx, s, key); ok {
		return v
	}
	return def
}

// Envelope returns the decoded envelope for key, applying the same
// expiry and corruption handling as Get.
func (s *Store) Envelope(ctx context.Context, key string) (Envelope, bool) {
	return s.load(ctx, key)
}

func (s *Store) load(ctx context.Context, key string) (Envelope, bool) {
	if !s.ready() {
		return Envelope{}, false
	}
	full := s.key(key)
	data, err := s.backend.Get(ctx, full)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("read failed", "key", key, "error", err)
		}
		return Envelope{}, false
	}
	env, err := Decode(data)
	if err != nil {
		s.logger.Warn("discarding unreadable entry", "key", key, "error", err)
		s.purge(ctx, full)
		return Envelope{}, false
	}
	if env.Expired(s.clock.Now()) {
		s.logger.Debug("entry expired", "key", key)
		s.purge(ctx, full)
		return Envelope{}, false
	}
	return env, true
}

func (s *Store) purge(ctx context.Context, fullKey string) {
	if err := s.backend.Remove(ctx, fullKey); err != nil {
		s.logger.Error("remove failed", "key", fullKey, "error", err)
	}
}

// exists reports whether any entry, readable or not, is stored under key.
// A failed read counts as present so callers never overwrite data they
// could not inspect.
func (s *Store) exists(ctx context.Context, key string) bool {
	if !s.ready() {
		return false
	}
	_, err := s.backend.Get(ctx, s.key(key))
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Error("read failed", "key", key, "error", err)
		return true
	}
	return err == nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) bool {
	if !s.ready() {
		return false
	}
	if err := s.backend.Remove(ctx, s.key(key)); err != nil {
		s.logger.Error("remove failed", "key", key, "error", err)
		return false
	}
	return true
}

// prefixedKeys returns every backend key in this namespace, unstripped.
func (s *Store) prefixedKeys(ctx context.Context) ([]string, bool) {
	if !s.ready() {
		return nil, false
	}
	all, err := s.backend.Keys(ctx)
	if err != nil {
		s.logger.Error("listing keys failed", "error", err)
		return nil, false
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, s.prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, true
}

// ListKeys returns the logical keys in this namespace, sorted.
func (s *Store) ListKeys(ctx context.Context) []string {
	full, _ := s.prefixedKeys(ctx)
	keys := make([]string, 0, len(full))
	for _, k := range full {
		keys = append(keys, strings.TrimPrefix(k, s.prefix))
	}
	return keys
}

// ClearAll removes every key in this namespace and leaves all other
// backend keys untouched.
func (s *Store) ClearAll(ctx context.Context) bool {
	keys, ok := s.prefixedKeys(ctx)
	if !ok {
		return false
	}
	for _, k := range keys {
		if err := s.backend.Remove(ctx, k); err != nil {
			s.logger.Error("remove failed", "key", k, "error", err)
			ok = false
		}
	}
	s.logger.Info("cleared namespace", "prefix", s.prefix, "keys", len(keys))
	return ok
}

// Usage is an estimate of backend consumption by one namespace.
type Usage struct {
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
	Total     int64 `json:"total"`
}

// Percent returns Used as a percentage of Total.
func (u Usage) Percent() float64 {
	if u.Total <= 0 {
		return 0
	}
	return float64(u.Used) / float64(u.Total) * 100
}

// Usage sums the size of every entry in the namespace at two bytes per
// character, against the configured quota.
func (s *Store) Usage(ctx context.Context) Usage {
	u := Usage{Total: s.quota}
	keys, _ := s.prefixedKeys(ctx)
	for _, k := range keys {
		v, err := s.backend.Get(ctx, k)
		if err != nil {
			continue
		}
		u.Used += entrySize(k, v)
	}
	u.Available = max(u.Total-u.Used, 0)
	return u
}

// entrySize counts UTF-16 code units, the unit browser storage quotas use.
func entrySize(key, value string) int64 {
	return 2 * int64(utf16Len(key)+utf16Len(value))
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += max(utf16.RuneLen(r), 1)
	}
	return n
}
