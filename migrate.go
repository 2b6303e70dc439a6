package settingsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Legacy keys written by earlier releases, unprefixed and unenveloped.
const (
	LegacyThemeColorKey    = "themeColor"
	LegacyCustomHueKey     = "customHue"
	LegacyAppSettingsKey   = "appSettings"
	LegacyCookieConsentKey = "cookieConsent"
)

// legacyAppSettings reads the camelCase field names of the legacy
// appSettings blob. Its fields mirror PartialAppSettings.
type legacyAppSettings struct {
	Theme        *string `json:"theme,omitempty"`
	Locale       *string `json:"locale,omitempty"`
	Timezone     *string `json:"timezone,omitempty"`
	DateFormat   *string `json:"dateFormat,omitempty"`
	TimeFormat   *string `json:"timeFormat,omitempty"`
	Currency     *string `json:"currency,omitempty"`
	DistanceUnit *string `json:"distanceUnit,omitempty"`
	FontSize     *string `json:"fontSize,omitempty"`

	HighContrast  *bool `json:"highContrast,omitempty"`
	ReducedMotion *bool `json:"reducedMotion,omitempty"`
	ScreenReader  *bool `json:"screenReader,omitempty"`

	EmailNotifications *bool `json:"emailNotifications,omitempty"`
	PushNotifications  *bool `json:"pushNotifications,omitempty"`
	SMSNotifications   *bool `json:"smsNotifications,omitempty"`
	SoundEnabled       *bool `json:"soundEnabled,omitempty"`

	SidebarCollapsed *bool `json:"sidebarCollapsed,omitempty"`
	CompactMode      *bool `json:"compactMode,omitempty"`
	ShowTooltips     *bool `json:"showTooltips,omitempty"`
	AutoSave         *bool `json:"autoSave,omitempty"`

	Custom map[string]any `json:"custom,omitempty"`
}

// Migration moves one legacy record into the enveloped namespace.
type Migration struct {
	Name string

	// LegacyKeys are raw backend keys. The migration runs when at least
	// one of them is present.
	LegacyKeys []string

	// Target is the logical key the converted value is written under.
	Target string

	// Convert builds the new value from the legacy keys that are present.
	Convert func(raw map[string]string) (any, error)
}

// LegacyMigrations returns the migrations for every legacy record.
// defaults fills application settings fields missing from the legacy blob.
func LegacyMigrations(defaults AppSettings) []Migration {
	return []Migration{
		{
			Name:       "theme",
			LegacyKeys: []string{LegacyThemeColorKey, LegacyCustomHueKey},
			Target:     themeSettingsKey,
			Convert: func(raw map[string]string) (any, error) {
				theme := DefaultThemeSettings
				if c, ok := raw[LegacyThemeColorKey]; ok && c != "" {
					theme.ThemeColor = c
				}
				if h, ok := raw[LegacyCustomHueKey]; ok {
					hue, err := strconv.Atoi(h)
					if err != nil {
						return nil, fmt.Errorf("parsing %s %q: %w", LegacyCustomHueKey, h, err)
					}
					theme.CustomHue = hue
				}
				return theme, nil
			},
		},
		{
			Name:       "app settings",
			LegacyKeys: []string{LegacyAppSettingsKey},
			Target:     appSettingsKey,
			Convert: func(raw map[string]string) (any, error) {
				blob := []byte(raw[LegacyAppSettingsKey])
				s := defaults
				if err := json.Unmarshal(blob, &s); err != nil {
					return nil, fmt.Errorf("parsing %s: %w", LegacyAppSettingsKey, err)
				}
				var legacy legacyAppSettings
				if err := json.Unmarshal(blob, &legacy); err != nil {
					return nil, fmt.Errorf("parsing %s: %w", LegacyAppSettingsKey, err)
				}
				return merge(s, PartialAppSettings(legacy))
			},
		},
		{
			Name:       "cookie consent",
			LegacyKeys: []string{LegacyCookieConsentKey},
			Target:     cookieConsentKey,
			Convert: func(raw map[string]string) (any, error) {
				doc := json.RawMessage(raw[LegacyCookieConsentKey])
				if !json.Valid(doc) {
					return nil, fmt.Errorf("parsing %s: invalid JSON", LegacyCookieConsentKey)
				}
				return doc, nil
			},
		},
	}
}

// Migrate runs each migration whose legacy keys are present and returns
// the number that completed. Legacy keys are deleted once their value is
// written, or immediately when they cannot be converted; a failed write
// leaves them for the next run. Running it again is a no-op.
func (s *Store) Migrate(ctx context.Context, migrations []Migration) int {
	if !s.ready() {
		return 0
	}

	done := 0
	for _, m := range migrations {
		raw := make(map[string]string, len(m.LegacyKeys))
		for _, k := range m.LegacyKeys {
			v, err := s.backend.Get(ctx, k)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					s.logger.Error("reading legacy key failed", "key", k, "error", err)
				}
				continue
			}
			raw[k] = v
		}
		if len(raw) == 0 {
			continue
		}

		value, err := m.Convert(raw)
		if err != nil {
			s.logger.Warn("dropping unreadable legacy data", "migration", m.Name, "error", err)
			s.removeLegacy(ctx, raw)
			continue
		}
		if !s.Set(ctx, m.Target, value, 0) {
			s.logger.Error("migration write failed, legacy data kept", "migration", m.Name)
			continue
		}
		s.removeLegacy(ctx, raw)
		s.logger.Info("migrated legacy data", "migration", m.Name, "target", m.Target)
		done++
	}
	return done
}

func (s *Store) removeLegacy(ctx context.Context, raw map[string]string) {
	for k := range raw {
		s.purge(ctx, k)
	}
}
