package settingsstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// SchemaVersion tags every envelope written by this package.
const SchemaVersion = "1.0.0"

// Envelope is the persisted form of every value held by a Store.
type Envelope struct {
	Value         json.RawMessage `json:"value"`
	Timestamp     int64           `json:"timestamp"` // unix milliseconds
	SchemaVersion string          `json:"schema_version"`
	Checksum      string          `json:"checksum,omitempty"`
	TTL           int64           `json:"ttl,omitempty"` // milliseconds
}

// WrittenAt returns the time the envelope was encoded.
func (e Envelope) WrittenAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Lifetime returns the envelope TTL, or zero when it never expires.
func (e Envelope) Lifetime() time.Duration {
	return time.Duration(e.TTL) * time.Millisecond
}

// Expired reports whether more than the TTL has elapsed since the write.
func (e Envelope) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.WrittenAt()) > e.Lifetime()
}

// Encode serializes value into a checksummed envelope stamped with now.
// A ttl of zero or less stores no expiration. Errors wrap ErrEncode.
func Encode(value any, ttl time.Duration, now time.Time) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}

	env := Envelope{
		Value:         raw,
		Timestamp:     now.UnixMilli(),
		SchemaVersion: SchemaVersion,
		Checksum:      Checksum(raw),
	}
	if ttl > 0 {
		env.TTL = max(ttl.Milliseconds(), 1)
	}

	out, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return string(out), nil
}

// Decode parses an envelope and verifies its checksum. Errors wrap
// ErrMalformed or ErrChecksumMismatch.
func Decode(data string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(env.Value) == 0 || env.Timestamp <= 0 || env.SchemaVersion == "" {
		return Envelope{}, fmt.Errorf("%w: missing envelope fields", ErrMalformed)
	}
	if env.Checksum != "" {
		if sum := Checksum(env.Value); sum != env.Checksum {
			return Envelope{}, fmt.Errorf("%w: stored %s, computed %s", ErrChecksumMismatch, env.Checksum, sum)
		}
	}
	return env, nil
}

// Checksum digests the compacted JSON form of raw with xxhash. It detects
// corruption only and offers no protection against deliberate tampering.
func Checksum(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strconv.FormatUint(xxhash.Sum64(raw), 16)
	}
	return strconv.FormatUint(xxhash.Sum64(buf.Bytes()), 16)
}
