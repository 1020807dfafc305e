// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Starlight - Primary accent, assistant label, selection
var Starlight = lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#C4B5FD"}

// Sky - Brand color, user label, focus ring
var Sky = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#93C5FD"}

// Aurora - Success states
var Aurora = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#6EE7B7"}

// Ember - Errors
var Ember = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#FCA5A5"}

// Amber - Warnings and confirmations
var Amber = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FCD34D"}

// =============================================================================
// SURFACE COLORS
// =============================================================================

// Night - Main background
var Night = lipgloss.AdaptiveColor{Light: "#F8FAFC", Dark: "#0B1021"}

// NightDim - Header and status bar background
var NightDim = lipgloss.AdaptiveColor{Light: "#EEF2F7", Dark: "#070B18"}

// Overlay - Borders and separators
var Overlay = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#2A3358"}

// =============================================================================
// TEXT COLORS
// =============================================================================

// TextPrimary - Main body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2430", Dark: "#E6E9F5"}

// TextSecondary - Labels
var TextSecondary = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#A9B1D6"}

// TextMuted - Hints and placeholders
var TextMuted = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#5B6485"}

// TextInverse - Text on colored backgrounds
var TextInverse = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#0B1021"}

// =============================================================================
// MESSAGE COLORS
// =============================================================================

var UserBubbleBorder = lipgloss.AdaptiveColor{Light: "#3B82F6", Dark: "#3B82F6"}
var AssistantBubbleBorder = lipgloss.AdaptiveColor{Light: "#A78BFA", Dark: "#7C6BC4"}

// SelectionBg highlights the current conversation in the sidebar.
var SelectionBg = lipgloss.AdaptiveColor{Light: "#DDD6FE", Dark: "#2E2A5A"}

// =============================================================================
// SNOW
// =============================================================================

// SnowShades go from faint to bright; index by flake alpha.
var SnowShades = []lipgloss.AdaptiveColor{
	{Light: "#CBD5E1", Dark: "#4B5570"},
	{Light: "#94A3B8", Dark: "#8891AD"},
	{Light: "#64748B", Dark: "#C3C9DB"},
	{Light: "#334155", Dark: "#FFFFFF"},
}
