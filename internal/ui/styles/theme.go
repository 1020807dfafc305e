// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Name is the ui.theme setting this theme was built from.
	Name string

	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// LAYOUT
	// ==========================================================================

	App         lipgloss.Style
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderHint  lipgloss.Style

	// ==========================================================================
	// SIDEBAR
	// ==========================================================================

	Sidebar        lipgloss.Style
	SidebarFocused lipgloss.Style
	HistoryItem    lipgloss.Style
	HistoryCurrent lipgloss.Style
	HistoryCursor  lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel       lipgloss.Style
	AssistantLabel  lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	Welcome         lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	Input         lipgloss.Style
	InputDisabled lipgloss.Style
	Status        lipgloss.Style
	StatusError   lipgloss.Style
	Spinner       lipgloss.Style
	ShortcutKey   lipgloss.Style
	ShortcutDesc  lipgloss.Style

	// ==========================================================================
	// DIALOGS
	// ==========================================================================

	Dialog      lipgloss.Style
	DialogTitle lipgloss.Style
	Prompt      lipgloss.Style
	Error       lipgloss.Style
}

// NewTheme creates a theme for name: "auto", "dark" or "light".
func NewTheme(name string) *Theme {
	name = strings.ToLower(strings.TrimSpace(name))

	var isDark bool
	switch name {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	default:
		name = "auto"
		isDark = termenv.HasDarkBackground()
	}
	// AdaptiveColor reads the renderer's background flag
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		Name:         name,
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle().Foreground(TextPrimary)

	t.Header = lipgloss.NewStyle().
		Background(NightDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Starlight)
	t.HeaderHint = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.SidebarFocused = t.Sidebar.
		BorderForeground(Sky)
	t.HistoryItem = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.HistoryCurrent = lipgloss.NewStyle().
		Foreground(Starlight).
		Background(SelectionBg).
		Bold(true)
	t.HistoryCursor = lipgloss.NewStyle().
		Foreground(Sky).
		Bold(true)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Sky)
	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Starlight)
	t.UserBubble = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)
	t.AssistantBubble = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1)
	t.Welcome = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		Align(lipgloss.Center)

	// Input and status
	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Sky)
	t.InputDisabled = t.Input.
		BorderForeground(Overlay)
	t.Status = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.StatusError = lipgloss.NewStyle().
		Foreground(Ember).
		Bold(true)
	t.Spinner = lipgloss.NewStyle().
		Foreground(Starlight)
	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Sky).
		Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Dialogs
	t.Dialog = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Amber).
		Padding(1, 2)
	t.DialogTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Starlight).
		MarginBottom(1)
	t.Prompt = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)
	t.Error = lipgloss.NewStyle().
		Foreground(Ember)
}

// Shortcut renders "key desc" for the help line.
func (t *Theme) Shortcut(key, desc string) string {
	return t.ShortcutKey.Render(key) + " " + t.ShortcutDesc.Render(desc)
}

// SnowStyle returns the style for a flake of the given alpha in [0,1].
func (t *Theme) SnowStyle(alpha float64) lipgloss.Style {
	idx := int(alpha * float64(len(SnowShades)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(SnowShades) {
		idx = len(SnowShades) - 1
	}
	return lipgloss.NewStyle().Foreground(SnowShades[idx])
}
