// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/starmind/starmind-tui/internal/config"
	"github.com/starmind/starmind-tui/internal/render"
	"github.com/starmind/starmind-tui/internal/tasks"
	"github.com/starmind/starmind-tui/internal/telemetry"
	"github.com/starmind/starmind-tui/internal/ui/chat"
)

// configReloadDebounce coalesces editor save bursts into one reload.
const configReloadDebounce = 250 * time.Millisecond

// programRef lets background goroutines post messages to the running TUI.
type programRef struct {
	mu sync.Mutex
	p  *tea.Program
}

func (r *programRef) set(p *tea.Program) {
	r.mu.Lock()
	r.p = p
	r.mu.Unlock()
}

// send drops msg when the program is not running yet.
func (r *programRef) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// runTUI starts the full-screen client.
func (a *App) runTUI(ctx context.Context, cfg *config.Config, args Args) error {
	if err := RequiresTTY("the chat client"); err != nil {
		return fmt.Errorf("%w (try 'starmind chat' or 'starmind history list')", err)
	}

	// The alt screen owns stdout, so the logger writes to its file only
	log, closeLog := a.newLogger(cfg, false)
	defer closeLog()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		log.Warn("telemetry disabled", zap.Error(err))
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	kv, persister, err := openStore(ctx, cfg.Storage, args.Parser.BoolFlag("ephemeral"))
	if err != nil {
		return err
	}
	defer kv.Close()

	client, err := newClient(ctx, cfg, persister, log)
	if err != nil {
		return err
	}

	var ref programRef
	runner := tasks.NewRunner(tasks.Options{
		Logger: log,
		OnDone: func(r tasks.Result) { ref.send(chat.TaskDoneMsg{Result: r}) },
	})
	defer stopTasks(runner, log)

	model := chat.New(chat.Options{
		Backend:   client,
		Persister: persister,
		Tokens:    persister,
		Tasks:     runner,
		Config:    cfg,
		Renderer:  render.NewTerminal(cfg.UI.Theme),
		Logger:    log,
	})

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	ref.set(p)

	if path, err := configPath(args); err == nil {
		w, err := config.NewWatcher(path, configReloadDebounce, func(c *config.Config, err error) {
			ref.send(chat.ConfigReloadedMsg{Config: c, Err: err})
		})
		if err != nil {
			log.Debug("config watcher unavailable", zap.Error(err))
		} else {
			defer w.Close()
		}
	}

	log.Info("tui started",
		zap.String("server", client.BaseURL()),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("ephemeral", args.Parser.BoolFlag("ephemeral")))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
