// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/starmind/starmind-tui/internal/config"
	"github.com/starmind/starmind-tui/internal/tasks"
)

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// sessionCheckedMsg carries the result of the startup /api/me call.
type sessionCheckedMsg struct {
	Err error
}

// loginResultMsg carries the result of a login attempt and the follow-up
// session check.
type loginResultMsg struct {
	Token string
	Err   error
}

// logoutResultMsg signals that the logout request finished.
type logoutResultMsg struct {
	Err error
}

// =============================================================================
// CHAT MESSAGES
// =============================================================================

// replyMsg carries the result of one chat turn.
type replyMsg struct {
	Reply   string
	Err     error
	Elapsed time.Duration
}

// exportDoneMsg reports where an export was written.
type exportDoneMsg struct {
	Path string
	Err  error
}

// clearStatusMsg removes a transient status line if it is still the one
// identified by Seq.
type clearStatusMsg struct {
	Seq int
}

// =============================================================================
// EXTERNAL MESSAGES
// =============================================================================

// ConfigReloadedMsg is sent by the config watcher when config.toml changes.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// TaskDoneMsg forwards a finished background task.
type TaskDoneMsg struct {
	Result tasks.Result
}
