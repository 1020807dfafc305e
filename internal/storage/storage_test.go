// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// BACKEND CONTRACT
// =============================================================================

func backends(t *testing.T) map[string]KV {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	file, err := NewFileStore(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	bolt, err := NewBoltStore(filepath.Join(dir, "state.bolt"))
	require.NoError(t, err)
	sqlite, err := NewSQLiteStore(ctx, filepath.Join(dir, "state.db"))
	require.NoError(t, err)

	out := map[string]KV{
		BackendMemory: NewMemoryStore(),
		BackendFile:   file,
		BackendBolt:   bolt,
		BackendSQLite: sqlite,
	}
	if url := os.Getenv("STARMIND_TEST_REDIS_URL"); url != "" {
		redis, err := NewRedisStore(ctx, url, "starmind-test:")
		require.NoError(t, err)
		out[BackendRedis] = redis
	}
	t.Cleanup(func() {
		for _, kv := range out {
			_ = kv.Close()
		}
	})
	return out
}

func TestKV_Contract(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, found, err := kv.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, kv.Set(ctx, "k", "v1"))
			require.NoError(t, kv.Set(ctx, "k", "v2"))
			v, found, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "v2", v)

			require.NoError(t, kv.Set(ctx, "empty", ""))
			v, found, err = kv.Get(ctx, "empty")
			require.NoError(t, err)
			assert.True(t, found, "empty values are still present")
			assert.Equal(t, "", v)

			require.NoError(t, kv.Delete(ctx, "k"))
			require.NoError(t, kv.Delete(ctx, "k"), "deleting a missing key is not an error")
			_, found, err = kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestKV_ClosedBackendsFail(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Close())
			err := kv.Set(context.Background(), "k", "v")
			assert.Error(t, err)
		})
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, KeyCurrentID, "conv_a"))

	second, err := NewFileStore(path)
	require.NoError(t, err)
	v, found, err := second.Get(ctx, KeyCurrentID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "conv_a", v)
}

func TestFileStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	fs, err := NewFileStore(path)
	require.NoError(t, err)

	_, _, err = fs.Get(ctx, KeyConversations)
	assert.Error(t, err)

	require.NoError(t, fs.Set(ctx, KeyCurrentID, "conv_b"), "writes recover a corrupt file")
	v, _, err := fs.Get(ctx, KeyCurrentID)
	require.NoError(t, err)
	assert.Equal(t, "conv_b", v)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	kv, err := Open(ctx, Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, kv)

	kv, err = Open(ctx, Options{Path: filepath.Join(dir, "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, kv)

	kv, err = Open(ctx, Options{Backend: "BOLT", Path: filepath.Join(dir, "s.bolt")})
	require.NoError(t, err)
	assert.IsType(t, &BoltStore{}, kv)

	_, err = Open(ctx, Options{Backend: "etcd"})
	assert.True(t, errors.Is(err, ErrUnknownBackend))

	_, err = Open(ctx, Options{Backend: "redis"})
	assert.Error(t, err, "redis needs a url")
}
