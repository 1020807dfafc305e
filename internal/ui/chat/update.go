// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/starmind/starmind-tui/internal/api"
	"github.com/starmind/starmind-tui/internal/conversation"
	"github.com/starmind/starmind-tui/internal/ui/styles"
)

// =============================================================================
// UPDATE
// =============================================================================

// snowFrameMsg advances the snow overlay. Frames from an older generation
// are dropped so toggling never doubles the tick loop.
type snowFrameMsg struct {
	gen int
}

func snowFrameCmd(gen int) tea.Cmd {
	return tea.Tick(time.Second/30, func(time.Time) tea.Msg {
		return snowFrameMsg{gen: gen}
	})
}

// Update handles every message for the chat view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.snow.Resize(msg.Width, msg.Height)
		m.layout()

	case tea.KeyMsg:
		m, cmd = m.handleKey(msg)

	case tea.MouseMsg:
		if m.screen == ScreenChat {
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case sessionCheckedMsg:
		m, cmd = m.handleSessionChecked(msg)

	case loginResultMsg:
		m, cmd = m.handleLoginResult(msg)

	case logoutResultMsg:
		m, cmd = m.handleLogoutResult(msg)

	case replyMsg:
		m, cmd = m.handleReply(msg)

	case exportDoneMsg:
		m, cmd = m.handleExportDone(msg)

	case ConfigReloadedMsg:
		m, cmd = m.handleConfigReloaded(msg)

	case TaskDoneMsg:
		if msg.Result.Err != nil && msg.Result.Task != nil {
			m.log.Warn("background task failed",
				zap.String("task", msg.Result.Task.Name),
				zap.Error(msg.Result.Err))
		}

	case clearStatusMsg:
		if msg.Seq == m.pane.statusSeq {
			m.pane.clearStatus()
		}

	case snowFrameMsg:
		if m.snowOn && msg.gen == m.snowGen {
			m.snow.Step()
			cmd = snowFrameCmd(m.snowGen)
		}

	case spinner.TickMsg:
		if m.loading {
			m.spinner, cmd = m.spinner.Update(msg)
		}

	default:
		if m.screen == ScreenChat && !m.loading {
			m.input, cmd = m.input.Update(msg)
		}
	}

	m.sync()
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	switch m.screen {
	case ScreenConnecting:
		return m, nil
	case ScreenLogin:
		return m.handleLoginKey(msg)
	}

	if m.dialog != dialogNone {
		return m.handleDialogKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		if !m.showSidebar {
			m.focusInput()
		}
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.ToggleSnow):
		return m.setSnow(!m.snowOn)

	case key.Matches(msg, m.keys.CopyReply):
		return m.copyReply()

	case key.Matches(msg, m.keys.Export):
		return m.exportCurrent()

	case key.Matches(msg, m.keys.Logout):
		if m.loading {
			return m, m.busy()
		}
		m.pane.SetStatus("正在退出登录...", false)
		return m, logoutCmd(m.ctx, m.backend)

	case key.Matches(msg, m.keys.NewChat):
		if m.loading {
			return m, m.busy()
		}
		if m.cfg.UI.ConfirmNewChat {
			m.dialog = dialogConfirmNew
			return m, nil
		}
		m.newChat()
		return m, nil
	}

	if *m.sidebarFocus {
		return m.handleSidebarKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.FocusSidebar):
		if m.SidebarVisible() {
			*m.sidebarFocus = true
			m.input.Blur()
			m.selectCurrent()
		}
		return m, nil

	case key.Matches(msg, m.keys.Send):
		return m.send()

	case msg.String() == "pgup" || msg.String() == "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.loading {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.focusInput()
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if m.loading {
			return m, m.busy()
		}
		if id := selectedID(m.history); id != "" {
			m.store.SwitchTo(m.ctx, id)
		}
		m.focusInput()
		return m, nil

	case key.Matches(msg, m.keys.Rename):
		id := selectedID(m.history)
		conv, ok := m.store.Get(id)
		if !ok {
			return m, nil
		}
		m.dialog = dialogRename
		m.pendingRename = id
		m.rename.SetValue(conv.Title)
		m.rename.CursorEnd()
		return m, tea.Batch(m.rename.Focus(), textinput.Blink)

	case key.Matches(msg, m.keys.Delete):
		if m.loading {
			return m, m.busy()
		}
		if id := selectedID(m.history); id != "" {
			m.pendingDelete = id
			m.dialog = dialogConfirmDelete
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.history, cmd = m.history.Update(msg)
	return m, cmd
}

func (m Model) handleDialogKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.dialog == dialogRename {
		switch msg.String() {
		case "enter":
			m.store.Rename(m.ctx, m.pendingRename, m.rename.Value())
			m.closeDialog()
			return m, nil
		case "esc":
			m.closeDialog()
			return m, nil
		}
		var cmd tea.Cmd
		m.rename, cmd = m.rename.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Confirm):
		switch m.dialog {
		case dialogConfirmNew:
			m.newChat()
		case dialogConfirmDelete:
			m.store.Delete(m.ctx, m.pendingDelete)
		}
		m.closeDialog()
		m.focusInput()
	case key.Matches(msg, m.keys.Cancel):
		m.closeDialog()
	}
	return m, nil
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.loggingIn {
		return m, nil
	}
	submit, cmd := m.login.update(msg)
	if !submit {
		return m, cmd
	}

	user, password, code := m.login.values()
	m.loggingIn = true
	m.pane.SetStatus("正在登录...", false)
	return m, loginCmd(m.ctx, m.backend, user, password, code)
}

// =============================================================================
// SEND FLOW
// =============================================================================

// send posts the input as a user message and starts the chat request.
// Input stays disabled until the reply arrives.
func (m Model) send() (Model, tea.Cmd) {
	if m.loading {
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if _, ok := m.store.Current(); !ok {
		m.store.Create(m.ctx)
	}

	m.input.Reset()
	m.pane.PaintMessage(conversation.Message{Role: conversation.RoleUser, Content: text})
	m.store.AppendMessage(m.ctx, conversation.RoleUser, text)

	m.loading = true
	m.input.Blur()
	m.pane.SetStatus(thinkingText, false)
	return m, tea.Batch(chatCmd(m.ctx, m.backend, text), m.spinner.Tick)
}

// handleReply ends the loading state and records the outcome.
func (m Model) handleReply(msg replyMsg) (Model, tea.Cmd) {
	m.loading = false
	m.pane.clearStatus()
	if !*m.sidebarFocus && m.dialog == dialogNone {
		m.input.Focus()
	}

	stored, status := ReplyOutcome(msg.Reply, msg.Err)
	if status != "" {
		m.log.Warn("chat request failed", zap.Error(msg.Err))
		m.pane.SetStatus(status, true)
	}
	if stored != "" {
		m.log.Debug("reply received", zap.Duration("elapsed", msg.Elapsed))
		m.appendAssistant(stored)
	}
	return m, nil
}

func (m *Model) appendAssistant(content string) {
	m.pane.PaintMessage(conversation.Message{Role: conversation.RoleAssistant, Content: content})
	m.store.AppendMessage(m.ctx, conversation.RoleAssistant, content)
}

// =============================================================================
// SESSION
// =============================================================================

func (m Model) handleSessionChecked(msg sessionCheckedMsg) (Model, tea.Cmd) {
	var status *api.StatusError
	switch {
	case msg.Err == nil:
		m.enterChat()
		return m, nil
	case errors.As(msg.Err, &status):
		m.log.Info("session check rejected", zap.Int("status", status.Code))
		m.screen = ScreenLogin
		return m, m.login.focus(fieldUser)
	default:
		// Offline: history stays browsable
		m.log.Warn("session check failed", zap.Error(msg.Err))
		m.enterChat()
		m.pane.SetStatus(unreachableText, true)
		return m, nil
	}
}

func (m Model) handleLoginResult(msg loginResultMsg) (Model, tea.Cmd) {
	m.loggingIn = false
	if msg.Err != nil {
		var status *api.StatusError
		switch {
		case errors.As(msg.Err, &status):
			m.pane.SetStatus("登录失败："+status.Text(), true)
		case errors.Is(msg.Err, api.ErrUnreachable):
			m.pane.SetStatus(unreachableText, true)
		default:
			m.pane.SetStatus("登录失败："+msg.Err.Error(), true)
		}
		m.login.reset()
		return m, nil
	}

	m.saveToken(msg.Token)
	m.enterChat()
	return m, m.flash("登录成功")
}

func (m Model) handleLogoutResult(msg logoutResultMsg) (Model, tea.Cmd) {
	if msg.Err != nil {
		m.log.Warn("logout request failed", zap.Error(msg.Err))
	}
	m.saveToken("")
	m.screen = ScreenLogin
	m.login.reset()
	m.pane.SetStatus("已退出登录", false)
	return m, m.login.focus(fieldUser)
}

// enterChat shows the conversation view, loading history the first time.
func (m *Model) enterChat() {
	m.screen = ScreenChat
	if !m.loaded {
		m.store.Load(m.ctx)
		m.loaded = true
		if m.store.Len() == 0 {
			m.store.Create(m.ctx)
		} else {
			m.store.Repaint()
		}
	}
	m.focusInput()
	m.layout()
}

func (m *Model) saveToken(token string) {
	if m.tokens == nil {
		return
	}
	if err := m.tokens.SetToken(m.ctx, token); err != nil {
		m.log.Warn("failed to store session token", zap.Error(err))
	}
}

// =============================================================================
// ACTIONS
// =============================================================================

func (m *Model) newChat() {
	m.store.Create(m.ctx)
	m.focusInput()
}

func (m Model) copyReply() (Model, tea.Cmd) {
	conv, ok := m.store.Current()
	if !ok {
		return m, nil
	}
	reply, ok := conv.LastReply()
	if !ok {
		return m, m.flash("还没有可复制的回复")
	}
	if err := m.clipboard(reply); err != nil {
		m.log.Warn("clipboard write failed", zap.Error(err))
		m.pane.SetStatus("复制失败："+err.Error(), true)
		return m, nil
	}
	return m, m.flash("已复制最近的回复")
}

func (m Model) setSnow(on bool) (Model, tea.Cmd) {
	if on == m.snowOn {
		return m, nil
	}
	m.snowOn = on
	if !on {
		return m, nil
	}
	m.snowGen++
	return m, snowFrameCmd(m.snowGen)
}

func (m Model) handleConfigReloaded(msg ConfigReloadedMsg) (Model, tea.Cmd) {
	if msg.Err != nil {
		m.log.Warn("config reload failed", zap.Error(msg.Err))
		m.pane.SetStatus("配置加载失败："+msg.Err.Error(), true)
		return m, nil
	}
	if msg.Config == nil {
		return m, nil
	}

	old := m.cfg
	m.cfg = msg.Config
	if msg.Config.UI.Theme != old.UI.Theme {
		m.theme = styles.NewTheme(msg.Config.UI.Theme)
		m.render.SetTheme(msg.Config.UI.Theme)
		items := m.history.Items()
		index := m.history.Index()
		m.history = newHistoryList(m.theme, m.sidebarFocus)
		m.history.SetItems(items)
		m.history.Select(index)
		m.spinner.Style = m.theme.Spinner
		m.layout()
	}

	var cmd tea.Cmd
	m, cmd = m.setSnow(msg.Config.UI.Snow)
	return m, tea.Batch(cmd, m.flash("配置已重新加载"))
}

// =============================================================================
// HELPERS
// =============================================================================

// flash shows a status that clears itself after statusTTL.
func (m *Model) flash(text string) tea.Cmd {
	m.pane.SetStatus(text, false)
	return clearStatusCmd(m.pane.statusSeq)
}

func (m *Model) busy() tea.Cmd {
	return m.flash("请等待当前回复完成")
}

func (m *Model) focusInput() {
	*m.sidebarFocus = false
	if !m.loading {
		m.input.Focus()
	}
}

func (m *Model) closeDialog() {
	m.dialog = dialogNone
	m.pendingDelete = ""
	m.pendingRename = ""
	m.rename.Blur()
	m.rename.SetValue("")
}

func (m *Model) selectCurrent() {
	for i, it := range m.history.Items() {
		if h, ok := it.(historyItem); ok && h.current {
			m.history.Select(i)
			return
		}
	}
}

// sync copies what the store painted into the viewport and sidebar.
func (m *Model) sync() {
	if m.pane.historyDirty {
		m.history.SetItems(historyItems(m.pane.convs, m.pane.currentID))
		if !*m.sidebarFocus {
			m.selectCurrent()
		}
		m.pane.historyDirty = false
	}
	if m.pane.messagesDirty {
		m.refreshViewport()
		m.pane.messagesDirty = false
	}
}

func (m *Model) refreshViewport() {
	width := m.viewport.Width
	content := m.pane.render(m.theme, m.render.Func(width-4), width)
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

// layout sizes every component for the current terminal.
func (m *Model) layout() {
	const (
		headerHeight = 1
		footerHeight = 2
	)
	inputHeight := m.input.Height() + 2
	bodyHeight := m.height - headerHeight - footerHeight - inputHeight
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	mainWidth := m.width
	if m.SidebarVisible() {
		mainWidth -= sidebarWidth
		m.history.SetSize(sidebarWidth-3, bodyHeight+inputHeight)
	}
	if mainWidth < 20 {
		mainWidth = 20
	}

	m.viewport.Width = mainWidth
	m.viewport.Height = bodyHeight
	m.input.SetWidth(mainWidth - 4)
	m.pane.messagesDirty = true
}
