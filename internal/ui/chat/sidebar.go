// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/starmind/starmind-tui/internal/conversation"
	"github.com/starmind/starmind-tui/internal/ui/styles"
	"github.com/starmind/starmind-tui/internal/util"
)

// =============================================================================
// HISTORY SIDEBAR
// =============================================================================

const (
	sidebarWidth    = 28
	sidebarMinTotal = 70 // below this terminal width the sidebar hides itself
)

// historyItem adapts a conversation to list.Item.
type historyItem struct {
	id      string
	title   string
	count   int
	current bool
}

func (i historyItem) FilterValue() string { return i.title }

// historyDelegate draws one line per conversation: a marker for the
// current one and the title cut to the sidebar width.
type historyDelegate struct {
	theme   *styles.Theme
	focused *bool
}

func (d historyDelegate) Height() int                             { return 1 }
func (d historyDelegate) Spacing() int                            { return 0 }
func (d historyDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d historyDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(historyItem)
	if !ok {
		return
	}

	marker := "  "
	if it.current {
		marker = "● "
	}
	width := m.Width() - 2
	line := marker + util.TruncateWidth(util.SingleLine(it.title), width-2)
	line = util.PadWidth(line, width)

	style := d.theme.HistoryItem
	switch {
	case index == m.Index() && d.focused != nil && *d.focused:
		style = d.theme.HistoryCursor
	case it.current:
		style = d.theme.HistoryCurrent
	}
	fmt.Fprint(w, style.Render(line))
}

func newHistoryList(theme *styles.Theme, focused *bool) list.Model {
	l := list.New(nil, historyDelegate{theme: theme, focused: focused}, sidebarWidth, 10)
	l.Title = "历史对话"
	l.Styles.Title = theme.HeaderTitle
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return l
}

func historyItems(convs []conversation.Conversation, currentID string) []list.Item {
	items := make([]list.Item, len(convs))
	for i, c := range convs {
		items[i] = historyItem{
			id:      c.ID,
			title:   c.Title,
			count:   len(c.Messages),
			current: c.ID == currentID,
		}
	}
	return items
}

// selectedID returns the id under the sidebar cursor.
func selectedID(l list.Model) string {
	if it, ok := l.SelectedItem().(historyItem); ok {
		return it.id
	}
	return ""
}
