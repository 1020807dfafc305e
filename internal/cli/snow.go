// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starmind/starmind-tui/internal/ui/snow"
	"github.com/starmind/starmind-tui/internal/ui/styles"
)

// runSnow shows full-screen snowfall until q, esc or Ctrl+C. A broken
// config falls back to the auto theme.
func (a *App) runSnow(ctx context.Context, args Args) error {
	if err := RequiresTTY("snow"); err != nil {
		return err
	}

	themeName := "auto"
	if cfg, err := a.loadConfig(args); err == nil {
		themeName = cfg.UI.Theme
	}
	theme := styles.NewTheme(themeName)

	model := snow.NewModel(theme.SnowStyle, rand.New(rand.NewSource(time.Now().UnixNano())))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("snow: %w", err)
	}
	return nil
}
