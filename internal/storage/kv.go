// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists StarMind client state as plain key/value pairs.
//
// The conversation store needs only two entries (the serialized set and the
// current id), so every backend implements the same small KV contract and
// the Persister adapter does the JSON work on top of it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("storage: backend closed")

	// ErrUnknownBackend is returned by Open for an unrecognized backend name.
	ErrUnknownBackend = errors.New("storage: unknown backend")
)

// =============================================================================
// KV CONTRACT
// =============================================================================

// KV is a string key/value store. Get reports found=false for missing keys
// without an error.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Backends lists every backend name in display order.
var Backends = []string{BackendFile, BackendBolt, BackendSQLite, BackendRedis, BackendMemory}

// Options selects and configures a backend.
type Options struct {
	Backend string

	// Path is the file or database path for file, bolt and sqlite.
	Path string

	// RedisURL is a redis:// URL or a bare host:port.
	RedisURL string

	// Prefix namespaces keys on shared backends (redis).
	Prefix string
}

// Open constructs the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (KV, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendFile:
		return NewFileStore(opts.Path)
	case BackendBolt:
		return NewBoltStore(opts.Path)
	case BackendSQLite:
		return NewSQLiteStore(ctx, opts.Path)
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisURL, opts.Prefix)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownBackend, opts.Backend, strings.Join(Backends, ", "))
	}
}
