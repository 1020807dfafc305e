// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea client for StarMind.
//
// The model owns a conversation.Store and paints it through pane, which
// implements conversation.Painter. The store calls the pane synchronously
// during Update; after every message the model copies the painted blocks
// into the viewport and the history list into the sidebar.
//
// Network calls run as tea.Cmds. While a chat request is in flight the
// input is disabled and actions that change the current conversation are
// refused, so a reply always lands in the conversation it was sent from.
//
// Screens:
//   - connecting: waiting for /api/me
//   - login: user, password and optional one-time code
//   - chat: sidebar, messages, input and status line
package chat
