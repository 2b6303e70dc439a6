package settingsstore

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockBackend wraps Memory and lets tests replace single operations.
type mockBackend struct {
	*Memory
	getFunc    func(ctx context.Context, key string) (string, error)
	setFunc    func(ctx context.Context, key, value string) error
	removeFunc func(ctx context.Context, key string) error
	keysFunc   func(ctx context.Context) ([]string, error)
}

func newMockBackend() *mockBackend {
	return &mockBackend{Memory: NewMemory()}
}

func (m *mockBackend) Get(ctx context.Context, key string) (string, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, key)
	}
	return m.Memory.Get(ctx, key)
}

func (m *mockBackend) Set(ctx context.Context, key, value string) error {
	if m.setFunc != nil {
		return m.setFunc(ctx, key, value)
	}
	return m.Memory.Set(ctx, key, value)
}

func (m *mockBackend) Remove(ctx context.Context, key string) error {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, key)
	}
	return m.Memory.Remove(ctx, key)
}

func (m *mockBackend) Keys(ctx context.Context) ([]string, error) {
	if m.keysFunc != nil {
		return m.keysFunc(ctx)
	}
	return m.Memory.Keys(ctx)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// syncBuffer is a bytes.Buffer safe for use as a log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// newTestStore returns a Store over a fresh Memory backend with a fake clock.
func newTestStore(t *testing.T, opts ...Option) (*Store, *Memory, *fakeClock) {
	t.Helper()
	mem := NewMemory()
	clock := newFakeClock()
	s := New(mem, append([]Option{WithClock(clock)}, opts...)...)
	return s, mem, clock
}

// snapshot copies every key and value held by a backend.
func snapshot(t *testing.T, b Backend) map[string]string {
	t.Helper()
	ctx := context.Background()
	keys, err := b.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, err := b.Get(ctx, k)
		if err != nil {
			t.Fatalf("Get %s failed: %v", k, err)
		}
		out[k] = v
	}
	return out
}
