// Package boltstore implements settingsstore.Backend on a bbolt file.
package boltstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"

	"github.com/larixai/settingsstore"
)

var bucketSettings = []byte("settings")

// Backend keeps every key in one bucket.
type Backend struct {
	db     *bbolt.DB
	logger *slog.Logger
	noSync bool
}

var _ settingsstore.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger for the backend.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithNoSync disables fsync per transaction. Use only in tests.
func WithNoSync(noSync bool) Option {
	return func(b *Backend) {
		b.noSync = noSync
	}
}

// Open opens or creates the database at path.
func Open(path string, opts ...Option) (*Backend, error) {
	b := &Backend{logger: slog.Default().With("component", "boltstore")}
	for _, opt := range opts {
		opt(b)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout: 1 * time.Second,
		NoSync:  b.noSync,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSettings)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	b.db = db
	b.logger.Debug("opened bolt backend", "path", path, "noSync", b.noSync)
	return b, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	b.logger.Debug("closing bolt backend", "path", b.db.Path())
	return b.db.Close()
}

func (b *Backend) Get(_ context.Context, key string) (string, error) {
	var value string
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSettings).Get([]byte(key))
		if v == nil {
			return settingsstore.ErrNotFound
		}
		// v is only valid inside the transaction.
		value = string(v)
		return nil
	})
	return value, err
}

func (b *Backend) Set(_ context.Context, key, value string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).Put([]byte(key), []byte(value))
	})
	if err != nil {
		b.logger.Warn("bolt update failed", "key", key, "error", err)
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (b *Backend) Remove(_ context.Context, key string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).Delete([]byte(key))
	})
	if err != nil {
		b.logger.Warn("bolt update failed", "key", key, "error", err)
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Keys returns every key in byte order.
func (b *Backend) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		b.logger.Warn("bolt key scan failed", "error", err)
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return keys, nil
}
