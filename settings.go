package settingsstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	appSettingsKey     = "app_settings"
	themeSettingsKey   = "theme_settings"
	cookieConsentKey   = "cookie_consent"
	userPrefsKeyPrefix = "user_preferences_"
)

// AppSettings holds application-wide user preferences.
type AppSettings struct {
	Theme        string `json:"theme"`
	Locale       string `json:"locale"`
	Timezone     string `json:"timezone"`
	DateFormat   string `json:"date_format"`
	TimeFormat   string `json:"time_format"`
	Currency     string `json:"currency"`
	DistanceUnit string `json:"distance_unit"`
	FontSize     string `json:"font_size"`

	HighContrast  bool `json:"high_contrast"`
	ReducedMotion bool `json:"reduced_motion"`
	ScreenReader  bool `json:"screen_reader"`

	EmailNotifications bool `json:"email_notifications"`
	PushNotifications  bool `json:"push_notifications"`
	SMSNotifications   bool `json:"sms_notifications"`
	SoundEnabled       bool `json:"sound_enabled"`

	SidebarCollapsed bool `json:"sidebar_collapsed"`
	CompactMode      bool `json:"compact_mode"`
	ShowTooltips     bool `json:"show_tooltips"`
	AutoSave         bool `json:"auto_save"`

	Custom map[string]any `json:"custom,omitempty"`

	LastUpdated time.Time `json:"last_updated"`
	LastSaved   time.Time `json:"last_saved"`
}

// PartialAppSettings is a shallow update to AppSettings. Nil fields are
// left unchanged; a non-nil Custom replaces the whole map, and an empty
// one clears it.
type PartialAppSettings struct {
	Theme        *string `json:"theme,omitempty"`
	Locale       *string `json:"locale,omitempty"`
	Timezone     *string `json:"timezone,omitempty"`
	DateFormat   *string `json:"date_format,omitempty"`
	TimeFormat   *string `json:"time_format,omitempty"`
	Currency     *string `json:"currency,omitempty"`
	DistanceUnit *string `json:"distance_unit,omitempty"`
	FontSize     *string `json:"font_size,omitempty"`

	HighContrast  *bool `json:"high_contrast,omitempty"`
	ReducedMotion *bool `json:"reduced_motion,omitempty"`
	ScreenReader  *bool `json:"screen_reader,omitempty"`

	EmailNotifications *bool `json:"email_notifications,omitempty"`
	PushNotifications  *bool `json:"push_notifications,omitempty"`
	SMSNotifications   *bool `json:"sms_notifications,omitempty"`
	SoundEnabled       *bool `json:"sound_enabled,omitempty"`

	SidebarCollapsed *bool `json:"sidebar_collapsed,omitempty"`
	CompactMode      *bool `json:"compact_mode,omitempty"`
	ShowTooltips     *bool `json:"show_tooltips,omitempty"`
	AutoSave         *bool `json:"auto_save,omitempty"`

	Custom map[string]any `json:"custom,omitempty"`
}

// ThemeSettings is the accent color configuration, stored apart from
// AppSettings.
type ThemeSettings struct {
	ThemeColor string `json:"theme_color"`
	CustomHue  int    `json:"custom_hue"`
}

// PartialThemeSettings is a shallow update to ThemeSettings.
type PartialThemeSettings struct {
	ThemeColor *string `json:"theme_color,omitempty"`
	CustomHue  *int    `json:"custom_hue,omitempty"`
}

// DefaultThemeSettings is used when no theme has been stored.
var DefaultThemeSettings = ThemeSettings{ThemeColor: "blue", CustomHue: 220}

// UserPreferences is the per-user copy of AppSettings.
type UserPreferences struct {
	UserID         string      `json:"user_id"`
	OrganizationID string      `json:"organization_id,omitempty"`
	Role           string      `json:"role,omitempty"`
	Preferences    AppSettings `json:"preferences"`
	LastSync       time.Time   `json:"last_sync"`
}

// Ptr returns a pointer to v, for building partial updates.
func Ptr[T any](v T) *T {
	return &v
}

// Settings exposes typed settings records on top of a Store. Updates are
// read-modify-write over the whole record and are serialized per Settings.
type Settings struct {
	store    *Store
	defaults AppSettings
	mu       sync.Mutex
}

// NewSettings binds settings views to store. defaults is returned by
// AppSettings whenever no valid record is stored.
func NewSettings(store *Store, defaults AppSettings) *Settings {
	return &Settings{store: store, defaults: defaults}
}

// Store returns the underlying namespaced store.
func (v *Settings) Store() *Store {
	return v.store
}

// Defaults returns the compiled-in application settings.
func (v *Settings) Defaults() AppSettings {
	return v.defaults
}

// AppSettings returns the stored application settings, or the defaults.
func (v *Settings) AppSettings(ctx context.Context) AppSettings {
	return GetOr(ctx, v.store, appSettingsKey, v.defaults)
}

// SetAppSettings merges partial onto the current settings and stores
// the result.
func (v *Settings) SetAppSettings(ctx context.Context, partial PartialAppSettings) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	merged, err := merge(v.AppSettings(ctx), partial)
	if err != nil {
		v.store.logger.Error("merging app settings failed", "error", err)
		return false
	}
	merged.Custom = replaceCustom(merged.Custom, partial.Custom)
	merged.LastUpdated = v.store.clock.Now().UTC()
	return v.store.Set(ctx, appSettingsKey, merged, 0)
}

// ResetAppSettings overwrites the stored settings with the defaults.
func (v *Settings) ResetAppSettings(ctx context.Context) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := v.defaults
	s.LastUpdated = v.store.clock.Now().UTC()
	return v.store.Set(ctx, appSettingsKey, s, 0)
}

// MarkSaved records that the current settings were persisted remotely.
func (v *Settings) MarkSaved(ctx context.Context) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := v.AppSettings(ctx)
	s.LastSaved = v.store.clock.Now().UTC()
	return v.store.Set(ctx, appSettingsKey, s, 0)
}

// ThemeSettings returns the stored theme, or DefaultThemeSettings.
func (v *Settings) ThemeSettings(ctx context.Context) ThemeSettings {
	return GetOr(ctx, v.store, themeSettingsKey, DefaultThemeSettings)
}

// SetThemeSettings merges partial onto the current theme and stores it.
func (v *Settings) SetThemeSettings(ctx context.Context, partial PartialThemeSettings) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	merged, err := merge(v.ThemeSettings(ctx), partial)
	if err != nil {
		v.store.logger.Error("merging theme settings failed", "error", err)
		return false
	}
	return v.store.Set(ctx, themeSettingsKey, merged, 0)
}

// UserPreferences returns the stored preferences of userID.
func (v *Settings) UserPreferences(ctx context.Context, userID string) (UserPreferences, bool) {
	return Get[UserPreferences](ctx, v.store, userPrefsKeyPrefix+userID)
}

// SetUserPreferences merges partial onto the preferences of userID,
// starting from the defaults for a new user, and stamps LastSync.
func (v *Settings) SetUserPreferences(ctx context.Context, userID string, partial PartialAppSettings) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	prefs, ok := v.UserPreferences(ctx, userID)
	if !ok {
		prefs = UserPreferences{UserID: userID, Preferences: v.defaults}
	}
	merged, err := merge(prefs.Preferences, partial)
	if err != nil {
		v.store.logger.Error("merging user preferences failed", "user_id", userID, "error", err)
		return false
	}
	merged.Custom = replaceCustom(merged.Custom, partial.Custom)
	now := v.store.clock.Now().UTC()
	merged.LastUpdated = now
	prefs.UserID = userID
	prefs.Preferences = merged
	prefs.LastSync = now
	return v.store.Set(ctx, userPrefsKeyPrefix+userID, prefs, 0)
}

// SaveUserPreferences replaces the whole record for prefs.UserID.
func (v *Settings) SaveUserPreferences(ctx context.Context, prefs UserPreferences) bool {
	if prefs.UserID == "" {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	prefs.LastSync = v.store.clock.Now().UTC()
	return v.store.Set(ctx, userPrefsKeyPrefix+prefs.UserID, prefs, 0)
}

// RemoveUserPreferences deletes the record for userID.
func (v *Settings) RemoveUserPreferences(ctx context.Context, userID string) bool {
	return v.store.Remove(ctx, userPrefsKeyPrefix+userID)
}

// CookieConsent returns the migrated consent document, if any.
func (v *Settings) CookieConsent(ctx context.Context) (json.RawMessage, bool) {
	return Get[json.RawMessage](ctx, v.store, cookieConsentKey)
}

// ExportSettings serializes the whole namespace. See Store.Export.
func (v *Settings) ExportSettings(ctx context.Context) string {
	return v.store.Export(ctx)
}

// ImportSettings replays an exported document. See Store.Import.
func (v *Settings) ImportSettings(ctx context.Context, blob string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.store.Import(ctx, blob)
}

// replaceCustom applies a partial Custom map, which the JSON overlay in
// merge cannot express when it is empty.
func replaceCustom(current, update map[string]any) map[string]any {
	if update == nil {
		return current
	}
	if len(update) == 0 {
		return nil
	}
	return update
}

// merge overlays the JSON fields present in patch onto base.
func merge[T any](base T, patch any) (T, error) {
	var out T

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return out, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(baseJSON, &fields); err != nil {
		return out, err
	}

	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return out, err
	}
	changes := make(map[string]json.RawMessage)
	if err := json.Unmarshal(patchJSON, &changes); err != nil {
		return out, err
	}
	for k, v := range changes {
		fields[k] = v
	}

	mergedJSON, err := json.Marshal(fields)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(mergedJSON, &out)
	return out, err
}
