// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/starmind/starmind-tui/internal/util"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the active screen. With snow enabled, flakes are drawn over
// blank cells of the finished frame.
func (m Model) View() string {
	var out string
	switch m.screen {
	case ScreenConnecting:
		out = m.renderConnecting()
	case ScreenLogin:
		out = m.renderLogin()
	default:
		out = m.renderChat()
	}

	if m.snowOn {
		out = m.snow.Overlay(out, m.theme.SnowStyle)
	}
	return out
}

func (m Model) renderConnecting() string {
	text := m.theme.Status.Render("正在连接 " + "StarMind...")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, text)
}

func (m Model) renderLogin() string {
	form := m.login.view(m.theme, m.pane.status, m.pane.statusError, m.width)
	return lipgloss.PlaceVertical(m.height, lipgloss.Center, form)
}

// renderChat lays out header, sidebar, messages, input and status.
// Heights match the constants in layout.
func (m Model) renderChat() string {
	header := m.renderHeader()

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.renderInput(),
	)
	if m.dialog != dialogNone {
		main = m.renderDialog(lipgloss.Width(main), lipgloss.Height(main))
	}

	body := main
	if m.SidebarVisible() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(lipgloss.Height(main)), main)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		m.renderStatusBar(),
		m.renderHelpLine(),
	)
}

// =============================================================================
// COMPONENTS
// =============================================================================

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("✦ StarMind")

	current := ""
	if conv, ok := m.store.Current(); ok {
		current = util.TruncateWidth(util.SingleLine(conv.Title), m.width/2)
	}
	hint := m.theme.HeaderHint.Render("  " + current)

	return m.theme.Header.Width(m.width).Render(title + hint)
}

func (m Model) renderSidebar(height int) string {
	style := m.theme.Sidebar
	if *m.sidebarFocus {
		style = m.theme.SidebarFocused
	}
	return style.
		Width(sidebarWidth - 1).
		Height(height).
		Render(m.history.View())
}

func (m Model) renderInput() string {
	style := m.theme.Input
	if m.loading {
		style = m.theme.InputDisabled
	}
	return style.Width(m.viewport.Width - 2).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	text := m.pane.status
	style := m.theme.Status
	if m.pane.statusError {
		style = m.theme.StatusError
	}
	if m.loading {
		text = m.spinner.View() + " " + text
	}
	return style.Width(m.width).Render(util.TruncateWidth(text, m.width))
}

func (m Model) renderHelpLine() string {
	bindings := m.keys.ShortHelp()
	if *m.sidebarFocus {
		bindings = m.keys.SidebarHelp()
	}

	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, m.renderBinding(b))
	}
	line := strings.Join(parts, "  ")
	if lipgloss.Width(line) > m.width {
		line = parts[0]
	}
	return line
}

func (m Model) renderBinding(b key.Binding) string {
	h := b.Help()
	return m.theme.Shortcut(h.Key, h.Desc)
}

func (m Model) renderDialog(width, height int) string {
	var content string
	switch m.dialog {
	case dialogConfirmNew:
		content = m.theme.DialogTitle.Render(confirmNewText) + "\n\n" +
			m.renderBinding(m.keys.Confirm) + "  " + m.renderBinding(m.keys.Cancel)
	case dialogConfirmDelete:
		title := m.pendingDelete
		if conv, ok := m.store.Get(m.pendingDelete); ok {
			title = conv.Title
		}
		content = m.theme.DialogTitle.Render(confirmDeleteText) + "\n" +
			m.theme.Prompt.Render(util.TruncateWidth(title, 40)) + "\n\n" +
			m.renderBinding(m.keys.Confirm) + "  " + m.renderBinding(m.keys.Cancel)
	case dialogRename:
		content = m.theme.DialogTitle.Render("重命名对话") + "\n\n" +
			m.rename.View() + "\n\n" +
			m.theme.Shortcut("Enter", "保存") + "  " + m.theme.Shortcut("Esc", "取消")
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		m.theme.Dialog.Render(content))
}
