package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larixai/settingsstore"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, settingsstore.DefaultPrefix, cfg.Storage.Prefix)
	assert.Equal(t, settingsstore.DefaultQuota, cfg.Storage.QuotaBytes)
	assert.Equal(t, settingsstore.DefaultMaxCacheEntries, cfg.Cache.MaxEntries)
	assert.Equal(t, settingsstore.DefaultCacheTTL, cfg.Cache.DefaultTTL)
	assert.Equal(t, 10*time.Minute, cfg.Cache.SweepInterval)
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("TEST_SETTINGS_DIR", "/var/lib/fleet")
	path := writeFile(t, "settings.yaml", `
storage:
  backend: bolt
  path: "${TEST_SETTINGS_DIR}/settings.bolt"
  prefix: "ops_"
cache:
  max_entries: 25
  default_ttl: "90s"
  sweep_interval: "0s"
host:
  locale: en_GB
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendBolt, cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/fleet/settings.bolt", cfg.Storage.Path)
	assert.Equal(t, "ops_", cfg.Storage.Prefix)
	assert.Equal(t, settingsstore.DefaultQuota, cfg.Storage.QuotaBytes, "unset fields keep defaults")
	assert.Equal(t, 25, cfg.Cache.MaxEntries)
	assert.Equal(t, 90*time.Second, cfg.Cache.DefaultTTL)
	assert.Equal(t, time.Duration(0), cfg.Cache.SweepInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "en-GB", cfg.ResolveHost().Locale)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "settings.toml", `
[storage]
backend = "memory"
quota_bytes = 2048

[cache]
default_ttl = "1m"

[host]
timezone = "Europe/Berlin"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, int64(2048), cfg.Storage.QuotaBytes)
	assert.Equal(t, time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, "Europe/Berlin", cfg.Host.Timezone)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "settings.yaml", `
storage:
  backend: sqlite
  path: from-file.db
`)
	t.Setenv("SETTINGS_STORAGE_PATH", "from-env.db")
	t.Setenv("SETTINGS_CACHE_MAX_ENTRIES", "7")
	t.Setenv("SETTINGS_CACHE_SWEEP_INTERVAL", "30s")
	t.Setenv("SETTINGS_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.Storage.Path)
	assert.Equal(t, 7, cfg.Cache.MaxEntries)
	assert.Equal(t, 30*time.Second, cfg.Cache.SweepInterval)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]string{
		"bad backend":  "storage:\n  backend: redis\n",
		"missing path": "storage:\n  backend: bolt\n  path: \"\"\n",
		"bad duration": "cache:\n  default_ttl: soon\n",
		"negative ttl": "cache:\n  default_ttl: -1s\n",
		"bad level":    "logging:\n  level: loud\n",
		"bad format":   "logging:\n  format: xml\n",
		"bad quota":    "storage:\n  quota_bytes: 0\n",
		"bad yaml":     "storage: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "settings.yaml", content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
