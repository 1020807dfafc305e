// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starmind/starmind-tui/internal/api"
	"github.com/starmind/starmind-tui/internal/config"
	"github.com/starmind/starmind-tui/internal/conversation"
	"github.com/starmind/starmind-tui/internal/storage"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeBackend struct {
	meErr    error
	loginErr error
	reply    string
	chatErr  error
	token    string

	chats   []string
	logins  int
	clears  int
	logouts int
}

func (f *fakeBackend) Me(context.Context) error { return f.meErr }

func (f *fakeBackend) Login(_ context.Context, _, _, _ string) (*api.LoginResponse, error) {
	f.logins++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.token = "tok"
	return &api.LoginResponse{OK: true, ExpiresIn: 60}, nil
}

func (f *fakeBackend) Chat(_ context.Context, msg string) (string, error) {
	f.chats = append(f.chats, msg)
	return f.reply, f.chatErr
}

func (f *fakeBackend) Clear(context.Context) error {
	f.clears++
	return nil
}

func (f *fakeBackend) Logout(context.Context) error {
	f.logouts++
	f.token = ""
	return nil
}

func (f *fakeBackend) Token() string { return f.token }

type syncTasks struct{}

func (syncTasks) Go(_ string, fn func(ctx context.Context) error) {
	_ = fn(context.Background())
}

type tokenRecorder struct {
	tokens []string
}

func (r *tokenRecorder) SetToken(_ context.Context, token string) error {
	r.tokens = append(r.tokens, token)
	return nil
}

type harness struct {
	m         Model
	backend   *fakeBackend
	persister *storage.Persister
	tokens    *tokenRecorder
	copied    []string
}

func newHarness(t *testing.T, mutate func(cfg *config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{
		backend:   &fakeBackend{reply: "hi"},
		persister: storage.NewPersister(storage.NewMemoryStore()),
		tokens:    &tokenRecorder{},
	}
	h.m = New(Options{
		Backend:   h.backend,
		Persister: h.persister,
		Tokens:    h.tokens,
		Tasks:     syncTasks{},
		Config:    cfg,
		Rand:      rand.New(rand.NewSource(7)),
		Clipboard: func(s string) error {
			h.copied = append(h.copied, s)
			return nil
		},
	})
	h.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	return h
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

func (h *harness) key(k tea.KeyType) tea.Cmd {
	return h.send(tea.KeyMsg{Type: k})
}

func (h *harness) runes(s string) tea.Cmd {
	return h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (h *harness) ready(t *testing.T) {
	t.Helper()
	h.send(sessionCheckedMsg{})
	require.Equal(t, ScreenChat, h.m.Screen())
}

func (h *harness) current(t *testing.T) conversation.Conversation {
	t.Helper()
	conv, ok := h.m.Store().Current()
	require.True(t, ok)
	return conv
}

// =============================================================================
// STARTUP
// =============================================================================

func TestStartup_SessionOKCreatesConversation(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, ScreenConnecting, h.m.Screen())

	h.ready(t)
	assert.Equal(t, 1, h.m.Store().Len())
	require.Len(t, h.m.pane.blocks, 1)
	assert.True(t, h.m.pane.blocks[0].welcome)
	assert.Equal(t, conversation.WelcomeText, h.m.pane.blocks[0].content)
}

func TestStartup_LoadsExistingHistory(t *testing.T) {
	h := newHarness(t, nil)
	snap := conversation.Snapshot{
		Conversations: []conversation.Conversation{
			{ID: "conv_b", Title: "second", Messages: []conversation.Message{{Role: conversation.RoleUser, Content: "yo"}}},
			{ID: "conv_a", Title: "first", Messages: []conversation.Message{}},
		},
		CurrentID: "conv_b",
	}
	require.NoError(t, h.persister.Save(context.Background(), snap))

	h.ready(t)
	assert.Equal(t, 2, h.m.Store().Len())
	assert.Equal(t, "conv_b", h.m.Store().CurrentID())
	require.Len(t, h.m.pane.blocks, 1)
	assert.Equal(t, "yo", h.m.pane.blocks[0].content)
	assert.Len(t, h.m.history.Items(), 2)
}

func TestStartup_UnauthorizedShowsLogin(t *testing.T) {
	h := newHarness(t, nil)
	h.send(sessionCheckedMsg{Err: &api.StatusError{Code: 401, Body: "unauthorized"}})
	assert.Equal(t, ScreenLogin, h.m.Screen())
	assert.Equal(t, 0, h.m.Store().Len())
}

func TestStartup_UnreachableStaysBrowsable(t *testing.T) {
	h := newHarness(t, nil)
	h.send(sessionCheckedMsg{Err: fmt.Errorf("%w: connection refused", api.ErrUnreachable)})
	assert.Equal(t, ScreenChat, h.m.Screen())

	status, isErr := h.m.Status()
	assert.Equal(t, unreachableText, status)
	assert.True(t, isErr)
}

// =============================================================================
// SEND FLOW
// =============================================================================

func TestSend_Success(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	h.m.input.SetValue("  Hello there, how are you today?  ")
	cmd := h.key(tea.KeyEnter)
	require.NotNil(t, cmd)

	assert.True(t, h.m.Loading())
	assert.Equal(t, "", h.m.input.Value())
	status, _ := h.m.Status()
	assert.Equal(t, thinkingText, status)

	conv := h.current(t)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "Hello there, how are you today?", conv.Messages[0].Content)
	assert.Equal(t, "Hello there, how are...", conv.Title)

	h.send(replyMsg{Reply: "你好！"})
	assert.False(t, h.m.Loading())
	assert.True(t, h.m.input.Focused())

	conv = h.current(t)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, conversation.Message{Role: conversation.RoleAssistant, Content: "你好！"}, conv.Messages[1])

	status, _ = h.m.Status()
	assert.Empty(t, status)
}

func TestSend_BlankIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	h.m.input.SetValue("   \n  ")
	h.key(tea.KeyEnter)
	assert.False(t, h.m.Loading())
	assert.Empty(t, h.current(t).Messages)
}

func TestSend_BlockedWhileLoading(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	h.m.input.SetValue("one")
	h.key(tea.KeyEnter)
	require.True(t, h.m.Loading())

	h.m.input.SetValue("two")
	assert.Nil(t, h.key(tea.KeyEnter))
	assert.Len(t, h.current(t).Messages, 1)

	// Conversation changes wait for the reply
	h.key(tea.KeyCtrlN)
	assert.Equal(t, 1, h.m.Store().Len())
	assert.Equal(t, dialogNone, h.m.dialog)
}

func TestReply_StatusErrorStoredAsMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)
	h.m.input.SetValue("hi")
	h.key(tea.KeyEnter)

	h.send(replyMsg{Err: &api.StatusError{Code: 500, Body: "server error"}})
	assert.False(t, h.m.Loading())

	snap, err := h.persister.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Conversations, 1)
	msgs := snap.Conversations[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "错误：server error", msgs[1].Content)
	assert.Equal(t, conversation.RoleAssistant, msgs[1].Role)
}

func TestReply_StatusErrorWithoutBodyUsesCode(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)
	h.m.input.SetValue("hi")
	h.key(tea.KeyEnter)

	h.send(replyMsg{Err: &api.StatusError{Code: 502}})
	msgs := h.current(t).Messages
	assert.Equal(t, "错误：502", msgs[len(msgs)-1].Content)
}

func TestReply_NetworkFailureOnlyTouchesStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)
	h.m.input.SetValue("hi")
	h.key(tea.KeyEnter)

	h.send(replyMsg{Err: fmt.Errorf("%w: timeout", api.ErrUnreachable)})
	assert.False(t, h.m.Loading())
	assert.Len(t, h.current(t).Messages, 1)

	status, isErr := h.m.Status()
	assert.Equal(t, unreachableText, status)
	assert.True(t, isErr)

	h.send(replyMsg{Err: errors.New("decode response: unexpected EOF")})
	status, _ = h.m.Status()
	assert.True(t, strings.HasPrefix(status, "网络错误："))
}

func TestReply_EmptyUsesPlaceholder(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)
	h.m.input.SetValue("hi")
	h.key(tea.KeyEnter)

	h.send(replyMsg{Reply: ""})
	msgs := h.current(t).Messages
	assert.Equal(t, emptyReplyText, msgs[len(msgs)-1].Content)
}

// =============================================================================
// CONVERSATION ACTIONS
// =============================================================================

func TestNewChat_Confirmation(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)
	clearsBefore := h.backend.clears

	h.key(tea.KeyCtrlN)
	assert.Equal(t, dialogConfirmNew, h.m.dialog)
	assert.Contains(t, h.m.View(), confirmNewText)

	h.runes("n")
	assert.Equal(t, dialogNone, h.m.dialog)
	assert.Equal(t, 1, h.m.Store().Len())

	h.key(tea.KeyCtrlN)
	h.runes("y")
	assert.Equal(t, 2, h.m.Store().Len())
	assert.Equal(t, clearsBefore+1, h.backend.clears)
}

func TestNewChat_WithoutConfirmation(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.UI.ConfirmNewChat = false })
	h.ready(t)

	h.key(tea.KeyCtrlN)
	assert.Equal(t, dialogNone, h.m.dialog)
	assert.Equal(t, 2, h.m.Store().Len())
}

func TestSidebar_SwitchRenameDelete(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.UI.ConfirmNewChat = false })
	h.ready(t)
	first := h.m.Store().CurrentID()
	h.key(tea.KeyCtrlN)
	second := h.m.Store().CurrentID()
	require.NotEqual(t, first, second)

	// Switch to the older conversation
	h.key(tea.KeyTab)
	require.True(t, *h.m.sidebarFocus)
	h.key(tea.KeyDown)
	h.key(tea.KeyEnter)
	assert.Equal(t, first, h.m.Store().CurrentID())
	assert.False(t, *h.m.sidebarFocus)

	// Rename the current one
	h.key(tea.KeyTab)
	h.runes("r")
	require.Equal(t, dialogRename, h.m.dialog)
	h.m.rename.SetValue("旅行计划")
	h.key(tea.KeyEnter)
	conv, ok := h.m.Store().Get(first)
	require.True(t, ok)
	assert.Equal(t, "旅行计划", conv.Title)

	// Delete it; the remaining one becomes current
	h.runes("d")
	require.Equal(t, dialogConfirmDelete, h.m.dialog)
	assert.Contains(t, h.m.View(), "旅行计划")
	h.runes("y")
	assert.Equal(t, 1, h.m.Store().Len())
	assert.Equal(t, second, h.m.Store().CurrentID())
}

func TestSidebar_DeleteLastCreatesFresh(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)
	only := h.m.Store().CurrentID()

	h.key(tea.KeyTab)
	h.send(tea.KeyMsg{Type: tea.KeyDelete})
	h.runes("y")

	assert.Equal(t, 1, h.m.Store().Len())
	assert.NotEqual(t, only, h.m.Store().CurrentID())
	assert.Equal(t, conversation.PlaceholderTitle, h.current(t).Title)
}

func TestToggleSidebar(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)
	require.True(t, h.m.SidebarVisible())

	h.key(tea.KeyCtrlB)
	assert.False(t, h.m.SidebarVisible())
	h.key(tea.KeyTab)
	assert.False(t, *h.m.sidebarFocus)
}

func TestCopyReply(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	h.key(tea.KeyCtrlY)
	assert.Empty(t, h.copied)

	h.m.input.SetValue("question")
	h.key(tea.KeyEnter)
	h.send(replyMsg{Reply: "answer"})

	h.key(tea.KeyCtrlY)
	assert.Equal(t, []string{"answer"}, h.copied)
}

func TestExport_WritesFile(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, func(cfg *config.Config) {
		cfg.UI.ExportDir = dir
		cfg.UI.ExportFormat = "json"
	})
	h.ready(t)

	cmd := h.key(tea.KeyCtrlE)
	require.NotNil(t, cmd)
	msg := cmd()
	done, ok := msg.(exportDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.Err)
	assert.True(t, strings.HasPrefix(done.Path, dir))
	assert.True(t, strings.HasSuffix(done.Path, ".json"))

	h.send(done)
	status, isErr := h.m.Status()
	assert.Contains(t, status, done.Path)
	assert.False(t, isErr)
}

func TestToggleSnow(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)
	require.False(t, h.m.SnowEnabled())

	cmd := h.key(tea.KeyCtrlS)
	assert.True(t, h.m.SnowEnabled())
	assert.NotNil(t, cmd)

	// A stale frame from an earlier generation does not reschedule
	assert.Nil(t, h.send(snowFrameMsg{gen: h.m.snowGen - 1}))
	assert.NotNil(t, h.send(snowFrameMsg{gen: h.m.snowGen}))

	h.key(tea.KeyCtrlS)
	assert.False(t, h.m.SnowEnabled())
	assert.Nil(t, h.send(snowFrameMsg{gen: h.m.snowGen}))
}

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

func TestLogin_Success(t *testing.T) {
	h := newHarness(t, nil)
	h.send(sessionCheckedMsg{Err: &api.StatusError{Code: 401}})
	require.Equal(t, ScreenLogin, h.m.Screen())

	h.runes("admin")
	h.key(tea.KeyTab)
	h.runes("secret")
	cmd := h.key(tea.KeyEnter)
	require.NotNil(t, cmd)

	msg := cmd()
	result, ok := msg.(loginResultMsg)
	require.True(t, ok)
	assert.Equal(t, "tok", result.Token)
	assert.Equal(t, 1, h.backend.logins)

	h.send(result)
	assert.Equal(t, ScreenChat, h.m.Screen())
	assert.Equal(t, []string{"tok"}, h.tokens.tokens)
	assert.Equal(t, 1, h.m.Store().Len())
}

func TestLogin_Failure(t *testing.T) {
	h := newHarness(t, nil)
	h.send(sessionCheckedMsg{Err: &api.StatusError{Code: 401}})

	h.send(loginResultMsg{Err: &api.StatusError{Code: 401, Body: "invalid credentials"}})
	assert.Equal(t, ScreenLogin, h.m.Screen())
	status, isErr := h.m.Status()
	assert.Equal(t, "登录失败：invalid credentials", status)
	assert.True(t, isErr)
}

func TestLogout(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	cmd := h.key(tea.KeyCtrlL)
	require.NotNil(t, cmd)
	h.send(cmd())

	assert.Equal(t, 1, h.backend.logouts)
	assert.Equal(t, ScreenLogin, h.m.Screen())
	assert.Equal(t, []string{""}, h.tokens.tokens)
}

// =============================================================================
// CONFIG RELOAD
// =============================================================================

func TestConfigReloaded(t *testing.T) {
	h := newHarness(t, nil)
	h.ready(t)

	cfg := config.Default()
	cfg.UI.Snow = true
	cfg.UI.Theme = "light"
	h.send(ConfigReloadedMsg{Config: cfg})

	assert.True(t, h.m.SnowEnabled())
	assert.Equal(t, "light", h.m.Theme().Name)

	h.send(ConfigReloadedMsg{Err: errors.New("bad toml")})
	status, isErr := h.m.Status()
	assert.Contains(t, status, "bad toml")
	assert.True(t, isErr)
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestChatCmd(t *testing.T) {
	b := &fakeBackend{reply: "pong"}
	msg := chatCmd(context.Background(), b, "ping")()

	reply, ok := msg.(replyMsg)
	require.True(t, ok)
	assert.Equal(t, "pong", reply.Reply)
	assert.NoError(t, reply.Err)
	assert.Equal(t, []string{"ping"}, b.chats)
}

func TestLoginCmd_StopsOnLoginError(t *testing.T) {
	b := &fakeBackend{loginErr: &api.StatusError{Code: 429, Body: "too many attempts"}}
	msg := loginCmd(context.Background(), b, "u", "p", "")()

	result := msg.(loginResultMsg)
	assert.False(t, api.IsUnauthorized(result.Err))
	assert.Error(t, result.Err)
	assert.Empty(t, result.Token)
}

func TestView_Renders(t *testing.T) {
	h := newHarness(t, nil)
	assert.Contains(t, h.m.View(), "StarMind")

	h.ready(t)
	view := h.m.View()
	assert.Contains(t, view, "StarMind")
	assert.Contains(t, view, "历史对话")
}
