// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/starmind/starmind-tui/internal/api"
	"github.com/starmind/starmind-tui/internal/config"
	"github.com/starmind/starmind-tui/internal/logging"
	"github.com/starmind/starmind-tui/internal/storage"
	"github.com/starmind/starmind-tui/internal/tasks"
)

// =============================================================================
// CONFIG
// =============================================================================

// configPath is --config or the default location.
func configPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return config.ExpandHome(args.ConfigPath), nil
	}
	return config.Path()
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(args Args) (*config.Config, error) {
	path, err := configPath(args)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	if args.Server != "" {
		cfg.Server.BaseURL = args.Server
		if err := cfg.Validate(); err != nil {
			return nil, &UsageError{Msg: fmt.Sprintf("--server: %v", err)}
		}
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// =============================================================================
// LOGGING
// =============================================================================

// newLogger opens the rotating log file. When that fails the command keeps
// running with a no-op logger; console mode falls back to stderr only.
func (a *App) newLogger(cfg *config.Config, console bool) (*zap.Logger, func()) {
	log, closeFn, err := logging.New(cfg.Log, logging.Options{Console: console})
	if err == nil {
		return log, closeFn
	}
	fmt.Fprintf(a.Stderr, "%s %v\n", warnLabel.Sprint("Warning:"), err)
	if console {
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			logging.ParseLevel(cfg.Log.Level),
		)
		l := zap.New(core)
		return l, func() { _ = l.Sync() }
	}
	return logging.NewNop()
}

// =============================================================================
// STORAGE
// =============================================================================

// openStore opens the configured KV backend, or a memory store when
// ephemeral is set, and wraps it in a Persister.
func openStore(ctx context.Context, cfg config.StorageConfig, ephemeral bool) (storage.KV, *storage.Persister, error) {
	opts := storage.Options{
		Backend:  cfg.Backend,
		Path:     cfg.Path,
		RedisURL: cfg.RedisURL,
		Prefix:   cfg.Prefix,
	}
	if ephemeral {
		opts.Backend = storage.BackendMemory
	}
	if opts.Path != "" && opts.Backend != storage.BackendMemory && opts.Backend != storage.BackendRedis {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	kv, err := storage.Open(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s storage: %w", opts.Backend, err)
	}
	return kv, storage.NewPersister(kv), nil
}

// =============================================================================
// API CLIENT
// =============================================================================

// newClient builds the backend client and restores the saved session
// token.
func newClient(ctx context.Context, cfg *config.Config, persister *storage.Persister, log *zap.Logger) (*api.Client, error) {
	opts := []api.Option{api.WithLogger(log)}
	if cfg.Server.TimeoutSeconds > 0 {
		opts = append(opts, api.WithTimeout(time.Duration(cfg.Server.TimeoutSeconds)*time.Second))
	}
	client, err := api.NewClient(cfg.Server.BaseURL, opts...)
	if err != nil {
		return nil, err
	}

	token, err := persister.Token(ctx)
	if err != nil {
		log.Debug("no saved session token", zap.Error(err))
	} else if token != "" {
		client.SetToken(token)
	}
	return client, nil
}

// =============================================================================
// TASKS
// =============================================================================

// stopTasks cancels in-flight background work and logs what failed.
func stopTasks(runner *tasks.Runner, log *zap.Logger) {
	if n := runner.Running(); n > 0 {
		log.Debug("cancelling background tasks", zap.Int("running", n))
	}
	runner.Stop()
	for _, t := range runner.Recent() {
		if t.GetStatus() == tasks.TaskStatusFailed {
			log.Debug("background task failed", zap.String("task", t.Summary()))
		}
	}
}
