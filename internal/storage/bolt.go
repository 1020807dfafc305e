// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

// boltBucket holds every StarMind key.
var boltBucket = []byte("starmind")

// BoltStore keeps keys in a bbolt database. The database is opened per
// operation so that the CLI and a running TUI can share the file; bolt's
// file lock serializes them.
type BoltStore struct {
	path    string
	timeout time.Duration
	closed  atomic.Bool
}

// NewBoltStore prepares a bbolt store at path and creates the bucket.
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("storage: bolt backend needs a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	b := &BoltStore{path: path, timeout: 2 * time.Second}
	err := b.update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BoltStore) open(readOnly bool) (*bolt.DB, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	return bolt.Open(b.path, 0o600, &bolt.Options{Timeout: b.timeout, ReadOnly: readOnly})
}

func (b *BoltStore) update(fn func(tx *bolt.Tx) error) error {
	db, err := b.open(false)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.Update(fn)
}

func (b *BoltStore) Get(_ context.Context, key string) (string, bool, error) {
	db, err := b.open(true)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = db.Close() }()

	var (
		value string
		found bool
	)
	err = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket == nil {
			return nil
		}
		if v := bucket.Get([]byte(key)); v != nil {
			value, found = string(v), true
		}
		return nil
	})
	return value, found, err
}

func (b *BoltStore) Set(_ context.Context, key, value string) error {
	return b.update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(boltBucket)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), []byte(value))
	})
}

func (b *BoltStore) Delete(_ context.Context, key string) error {
	return b.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

func (b *BoltStore) Close() error {
	b.closed.Store(true)
	return nil
}
