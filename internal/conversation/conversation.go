// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation owns the StarMind conversation history: the ordered
// set of chat threads, the reference to the active one, and the rules for
// keeping both persisted and painted after every mutation.
package conversation

import (
	"context"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// PlaceholderTitle is the title of a conversation that has not yet
	// received a user message.
	PlaceholderTitle = "新对话"

	// WelcomeText is painted into an empty conversation.
	WelcomeText = "已开始新对话。"

	// titleMaxRunes is the length of a derived title before the ellipsis.
	titleMaxRunes = 20

	// titleEllipsis marks a truncated derived title.
	titleEllipsis = "..."
)

// =============================================================================
// DATA MODEL
// =============================================================================

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role the store accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one entry in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is one chat thread.
type Conversation struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`

	// Timestamp is the creation time in Unix milliseconds. Advisory only.
	Timestamp int64 `json:"timestamp"`
}

// CreatedAt returns the creation time.
func (c Conversation) CreatedAt() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// HasUserMessage reports whether any message was written by the user.
func (c Conversation) HasUserMessage() bool {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

// LastReply returns the content of the most recent assistant message.
func (c Conversation) LastReply() (string, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return c.Messages[i].Content, true
		}
	}
	return "", false
}

func (c Conversation) clone() Conversation {
	msgs := make([]Message, len(c.Messages))
	copy(msgs, c.Messages)
	c.Messages = msgs
	return c
}

func cloneAll(convs []Conversation) []Conversation {
	out := make([]Conversation, len(convs))
	for i, c := range convs {
		out[i] = c.clone()
	}
	return out
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Snapshot is the persisted form of the store: the whole conversation set
// plus the current id.
type Snapshot struct {
	Conversations []Conversation
	CurrentID     string
}

// Persister loads and saves snapshots. Save is a whole-set overwrite.
type Persister interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// Painter is the rendering side of the store.
type Painter interface {
	// ClearMessages empties the message pane.
	ClearMessages()

	// PaintWelcome shows the placeholder for an empty conversation.
	PaintWelcome(text string)

	// PaintMessage appends one message to the pane.
	PaintMessage(msg Message)

	// PaintHistory redraws the conversation list.
	PaintHistory(convs []Conversation, currentID string)

	// SetStatus shows a status line message.
	SetStatus(text string, isError bool)
}

// RemoteSession resets the server-side conversational context.
type RemoteSession interface {
	Clear(ctx context.Context) error
}

// TaskRunner runs fire-and-forget work off the caller's goroutine.
type TaskRunner interface {
	Go(name string, fn func(ctx context.Context) error)
}

type nopPainter struct{}

func (nopPainter) ClearMessages()                      {}
func (nopPainter) PaintWelcome(string)                 {}
func (nopPainter) PaintMessage(Message)                {}
func (nopPainter) PaintHistory([]Conversation, string) {}
func (nopPainter) SetStatus(string, bool)              {}

type goRunner struct{}

func (goRunner) Go(_ string, fn func(ctx context.Context) error) {
	go func() { _ = fn(context.Background()) }()
}
