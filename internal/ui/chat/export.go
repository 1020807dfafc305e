// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/starmind/starmind-tui/internal/conversation"
	"github.com/starmind/starmind-tui/internal/export"
)

// =============================================================================
// EXPORT HANDLERS
// =============================================================================

// exportCurrent writes the current conversation in the configured format.
func (m Model) exportCurrent() (Model, tea.Cmd) {
	conv, ok := m.store.Current()
	if !ok {
		return m, nil
	}
	m.pane.SetStatus("正在导出...", false)
	return m, exportCmd(conv, m.cfg.UI.ExportFormat, m.cfg.UI.ExportDir, m.theme.IsDark)
}

func (m Model) handleExportDone(msg exportDoneMsg) (Model, tea.Cmd) {
	if msg.Err != nil {
		m.log.Warn("export failed", zap.Error(msg.Err))
		m.pane.SetStatus("导出失败："+msg.Err.Error(), true)
		return m, nil
	}
	m.log.Info("conversation exported", zap.String("path", msg.Path))
	return m, m.flash("已导出到 " + msg.Path)
}

// exportCmd writes conv in the given format.
func exportCmd(conv conversation.Conversation, format, dir string, dark bool) tea.Cmd {
	return func() tea.Msg {
		path, err := export.ToDir(&conv, format, dir, dark)
		return exportDoneMsg{Path: path, Err: err}
	}
}

