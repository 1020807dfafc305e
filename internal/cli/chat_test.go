// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/starmind/starmind-tui/internal/api"
	"github.com/starmind/starmind-tui/internal/conversation"
	"github.com/starmind/starmind-tui/internal/render"
	"github.com/starmind/starmind-tui/internal/storage"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeBackend struct {
	loggedIn bool
	password string
	chatErr  error
	sent     []string
	clears   int
	logouts  int
}

func (b *fakeBackend) Me(context.Context) error {
	if !b.loggedIn {
		return &api.StatusError{Code: http.StatusUnauthorized, Body: "unauthorized"}
	}
	return nil
}

func (b *fakeBackend) Login(_ context.Context, user, password, _ string) (*api.LoginResponse, error) {
	if password != b.password {
		return nil, &api.StatusError{Code: http.StatusUnauthorized, Body: "invalid credentials"}
	}
	b.loggedIn = true
	return &api.LoginResponse{OK: true, ExpiresIn: 86400}, nil
}

func (b *fakeBackend) Chat(_ context.Context, message string) (string, error) {
	b.sent = append(b.sent, message)
	if b.chatErr != nil {
		return "", b.chatErr
	}
	return "reply: " + message, nil
}

func (b *fakeBackend) Clear(context.Context) error {
	b.clears++
	return nil
}

func (b *fakeBackend) Logout(context.Context) error {
	b.logouts++
	b.loggedIn = false
	return nil
}

func (b *fakeBackend) Token() string {
	if b.loggedIn {
		return "tok"
	}
	return ""
}

type fakeTokens struct {
	saved []string
}

func (f *fakeTokens) SetToken(_ context.Context, token string) error {
	f.saved = append(f.saved, token)
	return nil
}

// scriptPrompter answers prompts from a fixed script, then reports EOF.
type scriptPrompter struct {
	answers []string
	asked   []string
}

func (s *scriptPrompter) next(prompt string) (string, error) {
	s.asked = append(s.asked, prompt)
	if len(s.answers) == 0 {
		return "", io.EOF
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *scriptPrompter) Prompt(prompt string) (string, error)         { return s.next(prompt) }
func (s *scriptPrompter) PasswordPrompt(prompt string) (string, error) { return s.next(prompt) }

type syncTasks struct{}

func (syncTasks) Go(_ string, fn func(ctx context.Context) error) {
	_ = fn(context.Background())
}

type replFixture struct {
	repl    *chatREPL
	backend *fakeBackend
	tokens  *fakeTokens
	prompt  *scriptPrompter
	out     *bytes.Buffer
}

func newREPL(t *testing.T, loggedIn bool, answers ...string) *replFixture {
	t.Helper()
	f := &replFixture{
		backend: &fakeBackend{loggedIn: loggedIn, password: "secret"},
		tokens:  &fakeTokens{},
		prompt:  &scriptPrompter{answers: answers},
		out:     &bytes.Buffer{},
	}
	painter := &replPainter{out: f.out, render: render.Plain}
	store := conversation.New(conversation.Options{
		Persister: storage.NewPersister(storage.NewMemoryStore()),
		Painter:   painter,
		Remote:    f.backend,
		Tasks:     syncTasks{},
	})
	f.repl = &chatREPL{
		ctx:     context.Background(),
		out:     f.out,
		store:   store,
		backend: f.backend,
		tokens:  f.tokens,
		painter: painter,
		prompt:  f.prompt,
		log:     zap.NewNop(),
	}
	return f
}

func (f *replFixture) current(t *testing.T) conversation.Conversation {
	t.Helper()
	conv, ok := f.repl.store.Current()
	require.True(t, ok)
	return conv
}

// =============================================================================
// TESTS
// =============================================================================

func TestChatREPL_StartCreatesConversation(t *testing.T) {
	f := newREPL(t, true)
	require.NoError(t, f.repl.start())

	assert.Equal(t, 1, f.repl.store.Len())
	assert.Equal(t, conversation.PlaceholderTitle, f.current(t).Title)
	assert.Contains(t, f.out.String(), conversation.WelcomeText)
	assert.Empty(t, f.prompt.asked)
}

func TestChatREPL_StartLogsIn(t *testing.T) {
	f := newREPL(t, false,
		"alice", "wrong", "",
		"", "", "",
		"alice", "secret", "123456",
	)
	require.NoError(t, f.repl.start())

	out := f.out.String()
	assert.Contains(t, out, "登录失败：invalid credentials")
	assert.Contains(t, out, "请输入用户名和密码")
	assert.Contains(t, out, "登录成功")
	assert.Equal(t, []string{"tok"}, f.tokens.saved)
	assert.Len(t, f.prompt.asked, 9)
}

func TestChatREPL_LoginGivesUp(t *testing.T) {
	f := newREPL(t, false,
		"alice", "x", "",
		"alice", "y", "",
		"alice", "z", "",
	)
	err := f.repl.start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed after 3 attempts")
	assert.Empty(t, f.tokens.saved)
}

func TestChatREPL_LoginAbortedByEOF(t *testing.T) {
	f := newREPL(t, false)
	assert.ErrorIs(t, f.repl.start(), errQuit)
}

func TestChatREPL_Offline(t *testing.T) {
	f := newREPL(t, true)
	f.repl.backend = &offlineBackend{fakeBackend: f.backend}

	require.NoError(t, f.repl.start())
	assert.Contains(t, f.out.String(), "无法连接到服务器，历史记录仍可浏览")
	assert.Equal(t, 1, f.repl.store.Len())
}

type offlineBackend struct {
	*fakeBackend
}

func (offlineBackend) Me(context.Context) error {
	return fmt.Errorf("GET /api/me: %w", api.ErrUnreachable)
}

func TestChatREPL_Send(t *testing.T) {
	f := newREPL(t, true)
	require.NoError(t, f.repl.start())

	require.NoError(t, f.repl.handleLine("  你好，今天天气怎么样  "))

	conv := f.current(t)
	assert.Equal(t, "你好，今天天气怎么样", conv.Title)
	assert.Equal(t, []conversation.Message{
		{Role: conversation.RoleUser, Content: "你好，今天天气怎么样"},
		{Role: conversation.RoleAssistant, Content: "reply: 你好，今天天气怎么样"},
	}, conv.Messages)
	assert.Contains(t, f.out.String(), "StarMind 正在思考...")
	assert.Contains(t, f.out.String(), "reply: 你好，今天天气怎么样")

	require.NoError(t, f.repl.handleLine("   "))
	assert.Len(t, f.backend.sent, 1)
}

func TestChatREPL_ReplyFailures(t *testing.T) {
	f := newREPL(t, true)
	require.NoError(t, f.repl.start())

	f.backend.chatErr = &api.StatusError{Code: http.StatusBadGateway, Body: "llm request failed: timeout"}
	require.NoError(t, f.repl.handleLine("one"))
	msgs := f.current(t).Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "错误：llm request failed: timeout", msgs[1].Content)

	f.backend.chatErr = fmt.Errorf("POST /api/chat: %w", api.ErrUnreachable)
	require.NoError(t, f.repl.handleLine("two"))
	msgs = f.current(t).Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, conversation.RoleUser, msgs[2].Role)
	assert.Contains(t, f.out.String(), "无法连接到服务器")
}

func TestChatREPL_Commands(t *testing.T) {
	f := newREPL(t, true, "y")
	require.NoError(t, f.repl.start())

	require.NoError(t, f.repl.handleLine("first"))
	firstID := f.repl.store.CurrentID()

	require.NoError(t, f.repl.handleLine("/new"))
	require.NoError(t, f.repl.handleLine("second"))
	secondID := f.repl.store.CurrentID()
	require.NotEqual(t, firstID, secondID)

	f.out.Reset()
	require.NoError(t, f.repl.handleLine("/list"))
	assert.Contains(t, f.out.String(), " 1. second")
	assert.Contains(t, f.out.String(), " 2. first")

	require.NoError(t, f.repl.handleLine("/switch 2"))
	assert.Equal(t, firstID, f.repl.store.CurrentID())

	require.NoError(t, f.repl.handleLine("/s "+secondID))
	assert.Equal(t, secondID, f.repl.store.CurrentID())

	require.NoError(t, f.repl.handleLine("/rename Weekend plans"))
	assert.Equal(t, "Weekend plans", f.current(t).Title)

	require.NoError(t, f.repl.handleLine("/delete"))
	assert.Equal(t, 1, f.repl.store.Len())
	assert.Equal(t, firstID, f.repl.store.CurrentID())

	// The script is exhausted, so the confirmation reads EOF and nothing
	// is deleted.
	require.NoError(t, f.repl.handleLine("/rm 1"))
	assert.Equal(t, 1, f.repl.store.Len())

	clearsBefore := f.backend.clears
	require.NoError(t, f.repl.handleLine("/clear"))
	assert.Equal(t, clearsBefore+1, f.backend.clears)

	f.out.Reset()
	require.NoError(t, f.repl.handleLine("/help"))
	assert.Contains(t, f.out.String(), "/switch <n|id>")

	assert.ErrorIs(t, f.repl.handleLine("/quit"), errQuit)
	assert.ErrorIs(t, f.repl.handleLine("exit"), errQuit)
}

func TestChatREPL_CommandErrors(t *testing.T) {
	f := newREPL(t, true)
	require.NoError(t, f.repl.start())

	assert.Equal(t, ExitUsage, ExitCode(f.repl.handleLine("/bogus")))
	assert.Equal(t, ExitUsage, ExitCode(f.repl.handleLine("/switch")))
	assert.Equal(t, ExitUsage, ExitCode(f.repl.handleLine("/rename")))

	var notFound *NotFoundError
	require.ErrorAs(t, f.repl.handleLine("/switch 9"), &notFound)
	require.ErrorAs(t, f.repl.handleLine("/switch conv_missing"), &notFound)
	assert.Equal(t, "conv_missing", notFound.ID)
}

func TestChatREPL_Logout(t *testing.T) {
	f := newREPL(t, true, "alice", "secret", "")
	require.NoError(t, f.repl.start())

	require.NoError(t, f.repl.handleLine("/logout"))
	assert.Equal(t, 1, f.backend.logouts)
	assert.Equal(t, []string{"", "tok"}, f.tokens.saved)
	assert.Contains(t, f.out.String(), "已退出登录")
	assert.Contains(t, f.out.String(), "登录成功")
}
