// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starmind/starmind-tui/internal/api"
)

// =============================================================================
// COMMANDS
// =============================================================================

// checkSessionCmd calls /api/me.
func checkSessionCmd(ctx context.Context, b Backend) tea.Cmd {
	return func() tea.Msg {
		if b == nil {
			return sessionCheckedMsg{Err: api.ErrUnreachable}
		}
		return sessionCheckedMsg{Err: b.Me(ctx)}
	}
}

// loginCmd logs in and then confirms the session.
func loginCmd(ctx context.Context, b Backend, user, password, code string) tea.Cmd {
	return func() tea.Msg {
		if _, err := b.Login(ctx, user, password, code); err != nil {
			return loginResultMsg{Err: err}
		}
		if err := b.Me(ctx); err != nil {
			return loginResultMsg{Err: err}
		}
		return loginResultMsg{Token: b.Token()}
	}
}

// chatCmd sends one message. There is no cancellation: once issued the
// request runs to completion.
func chatCmd(ctx context.Context, b Backend, message string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		reply, err := b.Chat(ctx, message)
		return replyMsg{Reply: reply, Err: err, Elapsed: time.Since(start)}
	}
}

// logoutCmd ends the backend session.
func logoutCmd(ctx context.Context, b Backend) tea.Cmd {
	return func() tea.Msg {
		return logoutResultMsg{Err: b.Logout(ctx)}
	}
}

// clearStatusCmd schedules removal of the status line with sequence seq.
func clearStatusCmd(seq int) tea.Cmd {
	return tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return clearStatusMsg{Seq: seq}
	})
}
