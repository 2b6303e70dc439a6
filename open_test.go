package settingsstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHost = Host{Locale: "fr-FR", Timezone: "Europe/Paris"}

func TestOpen_BootstrapsDefaults(t *testing.T) {
	mem := NewMemory()
	clock := newFakeClock()
	ctx := context.Background()

	v := Open(ctx, mem, testHost, WithClock(clock))

	assert.Equal(t, []string{"app_settings"}, v.Store().ListKeys(ctx))
	got := v.AppSettings(ctx)
	assert.Equal(t, "fr-FR", got.Locale)
	assert.Equal(t, "Europe/Paris", got.Timezone)
	assert.True(t, got.LastUpdated.Equal(clock.Now()))
}

func TestOpen_KeepsExistingSettings(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	first := Open(ctx, mem, testHost)
	require.True(t, first.SetAppSettings(ctx, PartialAppSettings{Theme: Ptr("dark")}))

	second := Open(ctx, mem, Host{Locale: "de"})
	assert.Equal(t, "dark", second.AppSettings(ctx).Theme)
	assert.Equal(t, "fr-FR", second.AppSettings(ctx).Locale)
}

func TestOpen_MigrationBeforeDefaults(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, LegacyAppSettingsKey, `{"theme":"dark"}`))

	v := Open(ctx, mem, testHost)

	got := v.AppSettings(ctx)
	assert.Equal(t, "dark", got.Theme, "migrated value must not be overwritten by defaults")
	assert.Equal(t, "fr-FR", got.Locale)
	_, err := mem.Get(ctx, LegacyAppSettingsKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_LeavesCorruptSettingsForReadPath(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, "fleet_app_settings", "corrupt"))

	v := Open(ctx, mem, testHost)

	raw, err := mem.Get(ctx, "fleet_app_settings")
	require.NoError(t, err)
	assert.Equal(t, "corrupt", raw)

	assert.Equal(t, v.Defaults(), v.AppSettings(ctx))
	_, err = mem.Get(ctx, "fleet_app_settings")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_SweepsExpiredCache(t *testing.T) {
	mem := NewMemory()
	clock := newFakeClock()
	ctx := context.Background()

	s := New(mem, WithClock(clock))
	require.True(t, s.SetCacheData(ctx, "old", 1, time.Second))
	require.True(t, s.SetCacheData(ctx, "fresh", 2, time.Hour))
	clock.Advance(time.Minute)

	Open(ctx, mem, testHost, WithClock(clock))

	_, err := mem.Get(ctx, "fleet_cache_old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = mem.Get(ctx, "fleet_cache_fresh")
	assert.NoError(t, err)
}

func TestOpen_UnavailableBackend(t *testing.T) {
	b := newMockBackend()
	b.setFunc = func(ctx context.Context, key, value string) error {
		return ErrUnavailable
	}
	require.NoError(t, b.Memory.Set(context.Background(), LegacyAppSettingsKey, `{"theme":"dark"}`))
	ctx := context.Background()

	v := Open(ctx, b, testHost)

	assert.Equal(t, v.Defaults(), v.AppSettings(ctx))
	assert.False(t, v.SetAppSettings(ctx, PartialAppSettings{Theme: Ptr("dark")}))
	assert.Equal(t, "{}", v.ExportSettings(ctx))
	_, err := b.Memory.Get(ctx, LegacyAppSettingsKey)
	assert.NoError(t, err, "no migration runs against an unavailable backend")
}

func TestOpen_ReadErrorSkipsBootstrap(t *testing.T) {
	b := newMockBackend()
	b.getFunc = func(ctx context.Context, key string) (string, error) {
		if key == "fleet_app_settings" {
			return "", errors.New("disk I/O error")
		}
		return b.Memory.Get(ctx, key)
	}
	ctx := context.Background()
	logger, logs := newTestLogger()

	Open(ctx, b, testHost, WithLogger(logger))

	_, err := b.Memory.Get(ctx, "fleet_app_settings")
	assert.ErrorIs(t, err, ErrNotFound, "defaults must not overwrite an unreadable entry")
	assert.Contains(t, logs.String(), "disk I/O error")
	assert.NotContains(t, logs.String(), "initialized default settings")
}
