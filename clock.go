package settingsstore

import "time"

// Clock provides the current time for envelope timestamps and TTL checks.
// The default implementation uses time.Now().
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
