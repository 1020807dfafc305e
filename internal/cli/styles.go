// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/starmind/starmind-tui/internal/ui/styles"
)

// =============================================================================
// LINE OUTPUT
// =============================================================================

// fatih/color disables itself when NO_COLOR is set or stdout is not a TTY.
var (
	errorLabel = color.New(color.FgRed, color.Bold)
	okLabel    = color.New(color.FgGreen)
	warnLabel  = color.New(color.FgYellow)
	heading    = color.New(color.FgMagenta, color.Bold)
	idColor    = color.New(color.FgCyan)
	dim        = color.New(color.Faint)
	marker     = color.New(color.FgGreen, color.Bold)
)

// =============================================================================
// REPL
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().Foreground(styles.Starlight).Bold(true)
	userLabel   = lipgloss.NewStyle().Foreground(styles.UserBubbleBorder).Bold(true)
	botLabel    = lipgloss.NewStyle().Foreground(styles.AssistantBubbleBorder).Bold(true)
	bannerStyle = lipgloss.NewStyle().Foreground(styles.Starlight).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(styles.TextMuted)
	errStyle    = lipgloss.NewStyle().Foreground(styles.Ember)
	noteStyle   = lipgloss.NewStyle().Foreground(styles.Aurora)
)

// configureColor applies the detected profile to lipgloss and fatih/color.
func configureColor() {
	lipgloss.SetColorProfile(ColorProfile())
	if !ColorsEnabled() {
		color.NoColor = true
	}
}
