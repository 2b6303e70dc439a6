package settingsstore

import "context"

// Open builds a Store over backend and prepares it for use: it probes
// the backend, migrates legacy keys, sweeps expired cache entries and
// writes default application settings if none are stored. Migration
// always precedes the default write so migrated values survive.
//
// If the probe fails the returned Settings still works, with every
// operation reporting failure and every read returning defaults.
func Open(ctx context.Context, backend Backend, host Host, opts ...Option) *Settings {
	s := New(backend, opts...)
	v := NewSettings(s, DefaultAppSettings(host))
	if !s.IsAvailable(ctx) {
		return v
	}

	s.Migrate(ctx, LegacyMigrations(v.defaults))
	s.SweepExpired(ctx)
	v.bootstrap(ctx)
	return v
}

// bootstrap writes the default settings unless an entry exists under
// the settings key. An unreadable entry counts as existing; the read
// path purges it later.
func (v *Settings) bootstrap(ctx context.Context) bool {
	if v.store.exists(ctx, appSettingsKey) {
		return false
	}
	s := v.defaults
	s.LastUpdated = v.store.clock.Now().UTC()
	if !v.store.Set(ctx, appSettingsKey, s, 0) {
		return false
	}
	v.store.logger.Info("initialized default settings", "locale", s.Locale, "timezone", s.Timezone)
	return true
}
