// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the StarMind TUI.

# Color System (colors.go)

Colors are Lip Gloss AdaptiveColor values so the UI follows the terminal's
light or dark background. The palette is a night sky: deep indigo surfaces,
a starlight accent for the assistant and a cool blue for the user.

# Theme (theme.go)

Theme bundles every lipgloss.Style the chat screen uses. NewTheme takes the
ui.theme setting: "auto" detects the background with termenv, "dark" and
"light" force one side of each AdaptiveColor.

	theme := styles.NewTheme("auto")
	header := theme.Header.Render("StarMind")

# Animations (animations.go)

Spinner frames for the pending-reply indicator.
*/
package styles
