// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/starmind/starmind-tui/internal/api"
	"github.com/starmind/starmind-tui/internal/config"
	"github.com/starmind/starmind-tui/internal/conversation"
	"github.com/starmind/starmind-tui/internal/render"
	"github.com/starmind/starmind-tui/internal/tasks"
	"github.com/starmind/starmind-tui/internal/telemetry"
	"github.com/starmind/starmind-tui/internal/ui/chat"
)

// errQuit ends the REPL loop.
var errQuit = errors.New("quit")

// maxLoginAttempts bounds the interactive login loop.
const maxLoginAttempts = 3

const replHelp = `Commands:
  /new               Start a new conversation
  /list              List conversations
  /switch <n|id>     Switch to a conversation by list number or id
  /rename <title>    Rename the current conversation
  /delete [n|id]     Delete a conversation (default: current)
  /clear             Reset the server-side context of this session
  /logout            Log out and log in again
  /help              Show this help
  /quit              Exit (also Ctrl+D)`

// =============================================================================
// PAINTER
// =============================================================================

// replPainter prints store output as scrollback.
type replPainter struct {
	out    io.Writer
	render render.Func
}

func (p *replPainter) ClearMessages() {
	fmt.Fprintln(p.out, hintStyle.Render(strings.Repeat("─", 40)))
}

func (p *replPainter) PaintWelcome(text string) {
	fmt.Fprintln(p.out, hintStyle.Render(text))
}

func (p *replPainter) PaintMessage(msg conversation.Message) {
	label := botLabel
	if msg.Role == conversation.RoleUser {
		label = userLabel
	}
	fmt.Fprintln(p.out, label.Render(chat.RoleLabel(msg.Role)))
	if msg.Role == conversation.RoleUser {
		fmt.Fprintln(p.out, msg.Content)
		return
	}
	fmt.Fprintln(p.out, strings.TrimRight(p.render(msg.Content), "\n"))
}

// PaintHistory is a no-op; /list prints on demand.
func (p *replPainter) PaintHistory([]conversation.Conversation, string) {}

func (p *replPainter) SetStatus(text string, isError bool) {
	if text == "" {
		return
	}
	if isError {
		fmt.Fprintln(p.out, errStyle.Render(text))
		return
	}
	fmt.Fprintln(p.out, noteStyle.Render(text))
}

// =============================================================================
// REPL
// =============================================================================

// prompter reads a line, optionally without echo. *liner.State satisfies it.
type prompter interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
}

// chatREPL holds the state of one chat session. Input is handled one line
// at a time by handleLine.
type chatREPL struct {
	ctx     context.Context
	out     io.Writer
	store   *conversation.Store
	backend chat.Backend
	tokens  chat.TokenStore
	painter *replPainter
	prompt  prompter
	log     *zap.Logger
}

// start checks the session, logging in when the server asks for it, then
// loads history and shows the current conversation.
func (r *chatREPL) start() error {
	err := r.backend.Me(r.ctx)
	var status *api.StatusError
	switch {
	case err == nil:
	case errors.As(err, &status):
		if err := r.login(); err != nil {
			return err
		}
	default:
		r.log.Warn("session check failed", zap.Error(err))
		r.painter.SetStatus("无法连接到服务器，历史记录仍可浏览", true)
	}

	r.store.Load(r.ctx)
	if r.store.Len() == 0 {
		r.store.Create(r.ctx)
		return nil
	}
	r.store.Repaint()
	return nil
}

// login prompts for credentials until the server accepts them.
func (r *chatREPL) login() error {
	for attempt := 0; attempt < maxLoginAttempts; attempt++ {
		user, err := r.prompt.Prompt("用户名: ")
		if err != nil {
			return errQuit
		}
		password, err := r.prompt.PasswordPrompt("密码: ")
		if err != nil {
			return errQuit
		}
		code, err := r.prompt.Prompt("验证码 (可选): ")
		if err != nil {
			return errQuit
		}

		user, code = strings.TrimSpace(user), strings.TrimSpace(code)
		if user == "" || password == "" {
			r.painter.SetStatus("请输入用户名和密码", true)
			continue
		}

		if _, err = r.backend.Login(r.ctx, user, password, code); err == nil {
			err = r.backend.Me(r.ctx)
		}
		if err != nil {
			r.painter.SetStatus("登录失败："+loginFailureText(err), true)
			continue
		}

		if err := r.tokens.SetToken(r.ctx, r.backend.Token()); err != nil {
			r.log.Warn("failed to save session token", zap.Error(err))
		}
		r.painter.SetStatus("登录成功", false)
		return nil
	}
	return fmt.Errorf("login failed after %d attempts", maxLoginAttempts)
}

func loginFailureText(err error) string {
	var status *api.StatusError
	if errors.As(err, &status) {
		return status.Text()
	}
	return err.Error()
}

// handleLine processes one input line. It returns errQuit to end the
// session; other errors are reported and the loop continues.
func (r *chatREPL) handleLine(line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit"):
		return errQuit
	case strings.HasPrefix(line, "/"):
		return r.handleCommand(line)
	default:
		r.send(line)
		return nil
	}
}

// send appends the user message, waits for the reply and records it.
func (r *chatREPL) send(text string) {
	if r.store.CurrentID() == "" {
		r.store.Create(r.ctx)
	}
	r.store.AppendMessage(r.ctx, conversation.RoleUser, text)

	fmt.Fprintln(r.out, hintStyle.Render("StarMind 正在思考..."))
	reply, err := r.backend.Chat(r.ctx, text)
	stored, status := chat.ReplyOutcome(reply, err)
	if status != "" {
		r.log.Warn("chat request failed", zap.Error(err))
		r.painter.SetStatus(status, true)
	}
	if stored != "" {
		msg := conversation.Message{Role: conversation.RoleAssistant, Content: stored}
		r.painter.PaintMessage(msg)
		r.store.AppendMessage(r.ctx, msg.Role, msg.Content)
	}
}

func (r *chatREPL) handleCommand(line string) error {
	fields := strings.Fields(line)
	cmd, rest := strings.ToLower(fields[0]), strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch cmd {
	case "/new", "/n":
		r.store.Create(r.ctx)
	case "/list", "/ls", "/l":
		r.printList()
	case "/switch", "/s":
		if rest == "" {
			return &UsageError{Msg: "usage: /switch <n|id>"}
		}
		id, err := r.resolve(rest)
		if err != nil {
			return err
		}
		if !r.store.SwitchTo(r.ctx, id) {
			r.painter.SetStatus("已是当前对话", false)
		}
	case "/rename":
		if rest == "" {
			return &UsageError{Msg: "usage: /rename <title>"}
		}
		if r.store.Rename(r.ctx, r.store.CurrentID(), rest) {
			r.painter.SetStatus("已重命名为 "+rest, false)
		}
	case "/delete", "/rm":
		return r.delete(rest)
	case "/clear":
		if err := r.backend.Clear(r.ctx); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		r.painter.SetStatus("已清除服务器端上下文", false)
	case "/logout":
		return r.logout()
	case "/help", "/h", "/?":
		fmt.Fprintln(r.out, replHelp)
	case "/quit", "/q", "/exit":
		return errQuit
	default:
		return &UsageError{Msg: "unknown command " + cmd + " (try /help)"}
	}
	return nil
}

func (r *chatREPL) delete(target string) error {
	id := r.store.CurrentID()
	if target != "" {
		var err error
		if id, err = r.resolve(target); err != nil {
			return err
		}
	}
	if id == "" {
		return nil
	}

	answer, err := r.prompt.Prompt("确定要删除这个对话吗？ [y/N] ")
	if err != nil {
		return nil
	}
	if ok, _ := ParseBoolString(answer); !ok {
		return nil
	}
	r.store.Delete(r.ctx, id)
	r.painter.SetStatus("已删除", false)
	return nil
}

func (r *chatREPL) logout() error {
	if err := r.backend.Logout(r.ctx); err != nil {
		r.log.Warn("logout request failed", zap.Error(err))
	}
	if err := r.tokens.SetToken(r.ctx, ""); err != nil {
		r.log.Warn("failed to clear session token", zap.Error(err))
	}
	r.painter.SetStatus("已退出登录", false)
	return r.login()
}

// resolve maps a 1-based list number or a conversation id to an id.
func (r *chatREPL) resolve(ref string) (string, error) {
	convs := r.store.Conversations()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(convs) {
			return "", &NotFoundError{Resource: "conversation", ID: ref}
		}
		return convs[n-1].ID, nil
	}
	if _, ok := r.store.Get(ref); !ok {
		return "", &NotFoundError{Resource: "conversation", ID: ref}
	}
	return ref, nil
}

func (r *chatREPL) printList() {
	current := r.store.CurrentID()
	for i, c := range r.store.Conversations() {
		mark := " "
		if c.ID == current {
			mark = marker.Sprint("●")
		}
		fmt.Fprintf(r.out, "%s %2d. %s %s\n", mark, i+1, c.Title,
			dim.Sprintf("(%d 条消息)", len(c.Messages)))
	}
}

// =============================================================================
// COMMAND
// =============================================================================

// runChat runs the line-oriented client.
func (a *App) runChat(ctx context.Context, cfg *config.Config, args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	log, closeLog := a.newLogger(cfg, false)
	defer closeLog()

	if shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, Version); err != nil {
		log.Warn("telemetry disabled", zap.Error(err))
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	kv, persister, err := openStore(ctx, cfg.Storage, args.Parser.BoolFlag("ephemeral"))
	if err != nil {
		return err
	}
	defer kv.Close()

	client, err := newClient(ctx, cfg, persister, log)
	if err != nil {
		return err
	}

	runner := tasks.NewRunner(tasks.Options{Logger: log})
	defer stopTasks(runner, log)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	historyFile := loadLineHistory(line)
	defer saveLineHistory(line, historyFile, log)

	renderer := render.NewTerminal(cfg.UI.Theme)
	painter := &replPainter{out: a.Stdout, render: renderer.Func(TerminalWidth())}
	store := conversation.New(conversation.Options{
		Persister: persister,
		Painter:   painter,
		Remote:    client,
		Tasks:     runner,
		Logger:    log,
	})

	repl := &chatREPL{
		ctx:     ctx,
		out:     a.Stdout,
		store:   store,
		backend: client,
		tokens:  persister,
		painter: painter,
		prompt:  line,
		log:     log,
	}

	fmt.Fprintln(a.Stdout, bannerStyle.Render("✦ StarMind")+" "+hintStyle.Render(client.BaseURL()))
	fmt.Fprintln(a.Stdout, hintStyle.Render("输入消息开始对话，/help 查看命令，Ctrl+D 退出"))
	if err := repl.start(); err != nil {
		if errors.Is(err, errQuit) {
			return nil
		}
		return err
	}

	for ctx.Err() == nil {
		input, err := line.Prompt("starmind> ")
		if err != nil {
			// Ctrl+C, Ctrl+D or a closed stdin
			fmt.Fprintln(a.Stdout)
			return nil
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		err = repl.handleLine(input)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			fmt.Fprintf(a.Stdout, "%s %v\n", errorLabel.Sprint("Error:"), err)
		}
	}
	return nil
}

// loadLineHistory restores liner history from the config directory and
// returns the file path, or "" when the directory is unknown.
func loadLineHistory(line *liner.State) string {
	dir, err := config.Dir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, "chat_history")
	if f, err := os.Open(path); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return path
}

// saveLineHistory writes liner history with owner-only permissions.
func saveLineHistory(line *liner.State, path string, log *zap.Logger) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		log.Debug("failed to create history directory", zap.Error(err))
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		log.Debug("failed to save line history", zap.Error(err))
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}
