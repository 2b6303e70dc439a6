package settingsstore

import (
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	fallbackLocale   = "en"
	fallbackTimezone = "UTC"
)

// Host describes the environment default settings are derived from.
type Host struct {
	Locale   string
	Timezone string
}

// DetectHost reads the locale from LC_ALL or LANG and the timezone from
// TZ or the local zone. Unusable values fall back to "en" and "UTC".
func DetectHost() Host {
	locale := os.Getenv("LC_ALL")
	if locale == "" {
		locale = os.Getenv("LANG")
	}
	tz := os.Getenv("TZ")
	if tz == "" {
		tz = time.Local.String()
	}
	return Host{
		Locale:   CanonicalLocale(locale),
		Timezone: CanonicalTimezone(tz),
	}
}

// CanonicalLocale converts a POSIX or BCP 47 locale such as
// "en_GB.UTF-8" into a BCP 47 tag ("en-GB"). It returns "en" when the
// value cannot be parsed.
func CanonicalLocale(s string) string {
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "-")
	if s == "" || s == "C" || s == "POSIX" {
		return fallbackLocale
	}
	tag, err := language.Parse(s)
	if err != nil || tag == language.Und {
		return fallbackLocale
	}
	return tag.String()
}

// CanonicalTimezone returns name if it is a loadable IANA zone, and
// "UTC" otherwise.
func CanonicalTimezone(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), ":")
	if name == "" || name == "Local" {
		return fallbackTimezone
	}
	if _, err := time.LoadLocation(name); err != nil {
		return fallbackTimezone
	}
	return name
}

// DefaultAppSettings returns the compiled-in settings with locale and
// timezone taken from host.
func DefaultAppSettings(host Host) AppSettings {
	locale := host.Locale
	if locale == "" {
		locale = fallbackLocale
	}
	tz := host.Timezone
	if tz == "" {
		tz = fallbackTimezone
	}
	return AppSettings{
		Theme:              "system",
		Locale:             locale,
		Timezone:           tz,
		DateFormat:         "DD/MM/YYYY",
		TimeFormat:         "24h",
		Currency:           "GBP",
		DistanceUnit:       "miles",
		FontSize:           "medium",
		EmailNotifications: true,
		PushNotifications:  true,
		SoundEnabled:       true,
		ShowTooltips:       true,
		AutoSave:           true,
	}
}
