// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces StarMind keys in a shared redis.
const DefaultRedisPrefix = "starmind:"

// RedisStore keeps keys in redis under a prefix.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects to rawURL, which may be a redis:// URL or a bare
// host:port, and verifies the connection with PING.
func NewRedisStore(ctx context.Context, rawURL, prefix string) (*RedisStore, error) {
	if rawURL == "" {
		return nil, errors.New("storage: redis backend needs a redis_url")
	}
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		opt = &redis.Options{Addr: rawURL}
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, r.wrap(err)
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.wrap(r.rdb.Set(ctx, r.prefix+key, value, 0).Err())
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.wrap(r.rdb.Del(ctx, r.prefix+key).Err())
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

func (r *RedisStore) wrap(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return ErrClosed
	}
	return err
}
