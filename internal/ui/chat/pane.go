// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/starmind/starmind-tui/internal/conversation"
	"github.com/starmind/starmind-tui/internal/render"
	"github.com/starmind/starmind-tui/internal/ui/styles"
)

// =============================================================================
// PANE
// =============================================================================

// block is one painted entry in the message pane.
type block struct {
	role    conversation.Role
	content string
	welcome bool
}

// pane records what the store painted. The model turns it into viewport
// content and sidebar items after every update.
type pane struct {
	blocks []block

	convs     []conversation.Conversation
	currentID string

	status      string
	statusError bool
	statusSeq   int

	messagesDirty bool
	historyDirty  bool
}

func newPane() *pane {
	return &pane{messagesDirty: true, historyDirty: true}
}

// ClearMessages empties the message pane.
func (p *pane) ClearMessages() {
	p.blocks = p.blocks[:0]
	p.messagesDirty = true
}

// PaintWelcome shows the placeholder for an empty conversation.
func (p *pane) PaintWelcome(text string) {
	p.blocks = append(p.blocks, block{content: text, welcome: true})
	p.messagesDirty = true
}

// PaintMessage appends one message. A welcome placeholder is replaced by
// the first real message.
func (p *pane) PaintMessage(msg conversation.Message) {
	if len(p.blocks) == 1 && p.blocks[0].welcome {
		p.blocks = p.blocks[:0]
	}
	p.blocks = append(p.blocks, block{role: msg.Role, content: msg.Content})
	p.messagesDirty = true
}

// PaintHistory redraws the conversation list.
func (p *pane) PaintHistory(convs []conversation.Conversation, currentID string) {
	p.convs = convs
	p.currentID = currentID
	p.historyDirty = true
}

// SetStatus shows a status line message.
func (p *pane) SetStatus(text string, isError bool) {
	p.status = text
	p.statusError = isError
	p.statusSeq++
}

// clearStatus removes the status line.
func (p *pane) clearStatus() {
	p.SetStatus("", false)
}

// render draws every block at the given width. Message content goes
// through renderFn; labels and the welcome text are styled here.
func (p *pane) render(theme *styles.Theme, renderFn render.Func, width int) string {
	if renderFn == nil {
		renderFn = render.Plain
	}
	var sb strings.Builder
	for i, b := range p.blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		if b.welcome {
			sb.WriteString(theme.Welcome.Width(width).Render(b.content))
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(renderBlock(theme, renderFn, b, width))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderBlock(theme *styles.Theme, renderFn render.Func, b block, width int) string {
	label := theme.AssistantLabel.Render(RoleLabel(b.role))
	bubble := theme.AssistantBubble
	if b.role == conversation.RoleUser {
		label = theme.UserLabel.Render(RoleLabel(b.role))
		bubble = theme.UserBubble
	}

	body := strings.Trim(renderFn(b.content), "\n")
	inner := width - bubble.GetHorizontalBorderSize()
	if inner < 10 {
		inner = 10
	}
	return label + "\n" + bubble.Width(inner).Render(body)
}

// RoleLabel is the display name for a message author.
func RoleLabel(role conversation.Role) string {
	if role == conversation.RoleUser {
		return "你"
	}
	return "StarMind"
}
