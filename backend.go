package settingsstore

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("settingsstore: not found")
	ErrUnavailable      = errors.New("settingsstore: backend unavailable")
	ErrQuotaExceeded    = errors.New("settingsstore: quota exceeded")
	ErrEncode           = errors.New("settingsstore: encode failed")
	ErrMalformed        = errors.New("settingsstore: malformed envelope")
	ErrChecksumMismatch = errors.New("settingsstore: checksum mismatch")
)

// Backend is the host key-value primitive the Store persists into.
// Keys and values are opaque strings. Get returns ErrNotFound for
// absent keys. Implementations must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error

	// Keys lists every key held by the backend, including keys that
	// belong to other namespaces.
	Keys(ctx context.Context) ([]string, error)
}
