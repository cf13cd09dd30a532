// Package bolt opens the embedded BoltDB file and carries read-write transactions
// through context so several stores can commit atomically.
package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

type ctxKey struct{}

// DB wraps a bbolt database.
type DB struct {
	db *bbolt.DB
}

// Open opens (or creates) the database at path and ensures the given buckets exist.
func Open(path string, buckets ...string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	d := &DB{db: db}
	if err := d.EnsureBuckets(buckets...); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// EnsureBuckets creates missing top-level buckets.
func (d *DB) EnsureBuckets(buckets ...string) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Close closes the underlying BoltDB database.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// RunInTx runs fn inside one read-write transaction. Stores called with the
// returned context join it instead of opening their own.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	return d.db.Update(func(tx *bbolt.Tx) error {
		return fn(context.WithValue(ctx, ctxKey{}, tx))
	})
}

// View runs fn read-only, joining a transaction carried by ctx.
func (d *DB) View(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx, ok := txFrom(ctx); ok {
		return fn(tx)
	}
	return d.db.View(fn)
}

// Update runs fn read-write, joining a transaction carried by ctx.
func (d *DB) Update(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx, ok := txFrom(ctx); ok {
		return fn(tx)
	}
	return d.db.Update(fn)
}

// Health reports whether the database file is still open.
func (d *DB) Health(ctx context.Context) error {
	return d.View(ctx, func(*bbolt.Tx) error { return nil })
}

// Bucket returns the named bucket or an error when it is missing.
func Bucket(tx *bbolt.Tx, name string) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("%s bucket is missing", name)
	}
	return b, nil
}

func txFrom(ctx context.Context) (*bbolt.Tx, bool) {
	tx, ok := ctx.Value(ctxKey{}).(*bbolt.Tx)
	return tx, ok
}
