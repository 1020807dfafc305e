// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/starmind/starmind-tui/internal/config"
	"github.com/starmind/starmind-tui/internal/server"
	"github.com/starmind/starmind-tui/internal/telemetry"
)

// serveConfig applies command line overrides to the serve section.
func serveConfig(cfg config.ServeConfig, p *ArgParser) (config.ServeConfig, error) {
	if addr := p.Flag("addr"); addr != "" {
		cfg.Addr = addr
	}
	if root := p.Flag("web-root"); root != "" {
		cfg.WebRoot = config.ExpandHome(root)
	}
	if p.BoolFlag("mock") {
		cfg.LLM.Provider = server.ProviderMock
	}
	if provider := p.Flag("provider"); provider != "" {
		switch provider {
		case server.ProviderMock, server.ProviderOpenAICompat:
			cfg.LLM.Provider = provider
		default:
			return cfg, &UsageError{
				Msg:   fmt.Sprintf("unknown provider %q (want %s or %s)", provider, server.ProviderMock, server.ProviderOpenAICompat),
				Usage: "serve [--addr A] [--provider mock|openai_compat]",
			}
		}
	}
	if p.BoolFlag("no-auth") {
		cfg.AuthEnabled = false
	}
	return cfg, nil
}

// runServe runs the backend until ctx is canceled.
func (a *App) runServe(ctx context.Context, cfg *config.Config, args Args) error {
	serveCfg, err := serveConfig(cfg.Serve, args.Parser)
	if err != nil {
		return err
	}

	log, closeLog := a.newLogger(cfg, true)
	defer closeLog()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		log.Warn("telemetry disabled", zap.Error(err))
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	if serveCfg.AuthEnabled && serveCfg.Password == config.Default().Serve.Password {
		log.Warn("serve.password is the default; change it before exposing the server")
	}

	srv, err := server.New(serveCfg, server.Options{Logger: log})
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	summary := srv.Usage().Summary()
	log.Info("server stopped",
		zap.Int("calls", summary.Calls),
		zap.Int("tokens", summary.Tokens.Total()))
	return nil
}
