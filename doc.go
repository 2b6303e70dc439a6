// Package settingsstore provides a durable, namespaced settings and cache store
// on top of a simple host key-value primitive.
//
// # Overview
//
// Every value is written inside a versioned, checksummed Envelope under a
// namespace prefix. Reads purge entries that have expired or no longer decode,
// so callers only ever see a valid value or nothing.
//
// # Architecture
//
// The package consists of three layers:
//
// 1. Backend: the host key-value primitive (Memory, backend/sqlitestore, backend/boltstore)
// 2. Store: prefixing, envelope codec, TTL expiry, cache sweeping, usage accounting
// 3. Settings: typed views for application, theme and per-user settings
//
// Keys are stored as prefix + logical key, e.g. "fleet_app_settings".
// Cache entries use the logical prefix "cache_" so sweeps never touch settings.
//
// # Quick Start
//
//	ctx := context.Background()
//	settings := settingsstore.Open(ctx, settingsstore.NewMemory(), settingsstore.DetectHost())
//
//	settings.SetAppSettings(ctx, settingsstore.PartialAppSettings{
//	    Theme: settingsstore.Ptr("dark"),
//	})
//	theme := settings.AppSettings(ctx).Theme
//
//	store := settings.Store()
//	store.SetCacheData(ctx, "weather", map[string]int{"temp": 20}, time.Minute)
//	w, ok := settingsstore.GetCacheData[map[string]int](ctx, store, "weather")
//
// # Startup
//
// Open probes the backend, runs LegacyMigrations, sweeps expired cache entries
// once and writes default settings if none exist. Call Store.RunSweeper in a
// goroutine for periodic sweeps.
//
// # Error Handling
//
// Store and Settings operations never return errors. Writes report false and
// reads report absence; the cause is logged through the configured *slog.Logger.
// Backends and the codec use sentinel errors:
//
//	env, err := settingsstore.Decode(raw)
//	if errors.Is(err, settingsstore.ErrChecksumMismatch) {
//	    // stored value was altered
//	}
//
// # Thread Safety
//
// Store and Settings are safe for concurrent use within one process. Two
// processes sharing one backend are last-writer-wins.
package settingsstore
