// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"math/rand"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/starmind/starmind-tui/internal/api"
	"github.com/starmind/starmind-tui/internal/config"
	"github.com/starmind/starmind-tui/internal/conversation"
	"github.com/starmind/starmind-tui/internal/render"
	"github.com/starmind/starmind-tui/internal/storage"
	"github.com/starmind/starmind-tui/internal/ui/snow"
	"github.com/starmind/starmind-tui/internal/ui/styles"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Backend is the part of the API client the chat view uses.
type Backend interface {
	Me(ctx context.Context) error
	Login(ctx context.Context, user, password, code string) (*api.LoginResponse, error)
	Chat(ctx context.Context, message string) (string, error)
	Clear(ctx context.Context) error
	Logout(ctx context.Context) error
	Token() string
}

// TokenStore persists the session token between runs.
type TokenStore interface {
	SetToken(ctx context.Context, token string) error
}

// Options wires the chat view. Backend is required; a nil Persister keeps
// history in memory.
type Options struct {
	Backend   Backend
	Persister conversation.Persister
	Tokens    TokenStore
	Tasks     conversation.TaskRunner
	Config    *config.Config
	Renderer  *render.Terminal
	Logger    *zap.Logger

	// Clipboard copies text; defaults to the system clipboard.
	Clipboard func(string) error

	// Rand seeds the snow field.
	Rand *rand.Rand
}

// =============================================================================
// CHAT STATE
// =============================================================================

// Screen is the top-level view being shown.
type Screen int

const (
	ScreenConnecting Screen = iota // waiting for the session check
	ScreenLogin                    // credentials form
	ScreenChat                     // conversation view
)

// dialog is a modal prompt over the chat screen.
type dialog int

const (
	dialogNone dialog = iota
	dialogConfirmNew
	dialogConfirmDelete
	dialogRename
)

// Prompts shown in confirm dialogs.
const (
	confirmNewText    = "确定要开始新对话吗？"
	confirmDeleteText = "确定要删除这个对话吗？"
	thinkingText      = "StarMind 正在思考..."
	emptyReplyText    = "（收到空回复）"
	unreachableText   = "无法连接到服务器"
	errorPrefix       = "错误："
)

// statusTTL is how long transient status messages stay visible.
const statusTTL = 4 * time.Second

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the StarMind client.
type Model struct {
	ctx    context.Context
	cfg    *config.Config
	theme  *styles.Theme
	keys   KeyMap
	log    *zap.Logger
	render *render.Terminal

	backend   Backend
	tokens    TokenStore
	store     *conversation.Store
	pane      *pane
	clipboard func(string) error

	// Components
	history  list.Model
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	rename   textinput.Model
	login    *loginForm
	snow     *snow.Field

	// State
	screen        Screen
	dialog        dialog
	pendingDelete string
	pendingRename string
	loading       bool
	loggingIn     bool
	loaded        bool
	showSidebar   bool
	sidebarFocus  *bool
	snowOn        bool
	snowGen       int

	// Dimensions
	width  int
	height int
}

// New creates the chat model.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.NewTerminal(cfg.UI.Theme)
	}
	copyFn := opts.Clipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}

	persister := opts.Persister
	if persister == nil {
		persister = storage.NewPersister(storage.NewMemoryStore())
	}

	theme := styles.NewTheme(cfg.UI.Theme)
	p := newPane()
	focus := new(bool)

	m := Model{
		ctx:       context.Background(),
		cfg:       cfg,
		theme:     theme,
		keys:      DefaultKeyMap(),
		log:       log,
		render:    renderer,
		backend:   opts.Backend,
		tokens:    opts.Tokens,
		pane:      p,
		clipboard: copyFn,

		history:  newHistoryList(theme, focus),
		viewport: viewport.New(80, 20),
		input:    newInput(),
		spinner:  newSpinner(theme),
		rename:   newRenameInput(),
		login:    newLoginForm(),
		snow:     snow.NewField(80, 24, opts.Rand),

		screen:       ScreenConnecting,
		showSidebar:  true,
		sidebarFocus: focus,
		snowOn:       cfg.UI.Snow,
		width:        80,
		height:       24,
	}

	var remote conversation.RemoteSession
	if opts.Backend != nil {
		remote = opts.Backend
	}
	m.store = conversation.New(conversation.Options{
		Persister: persister,
		Painter:   p,
		Remote:    remote,
		Tasks:     opts.Tasks,
		Logger:    log.Named("store"),
	})
	return m
}

func newInput() textarea.Model {
	ta := textarea.New()
	ta.Placeholder = "输入消息，Enter 发送，Alt+Enter 换行"
	ta.ShowLineNumbers = false
	ta.Prompt = "┃ "
	ta.CharLimit = 8000
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.Focus()
	return ta
}

func newSpinner(theme *styles.Theme) spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: styles.ThinkingSpinner.Frames,
		FPS:    styles.ThinkingSpinner.Duration(),
	}
	s.Style = theme.Spinner
	return s
}

func newRenameInput() textinput.Model {
	ti := textinput.New()
	ti.Prompt = "新标题：" + " "
	ti.CharLimit = 80
	return ti
}

// Init starts the session check.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{checkSessionCmd(m.ctx, m.backend), textarea.Blink}
	if m.snowOn {
		cmds = append(cmds, snowFrameCmd(m.snowGen))
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Screen returns the active screen.
func (m Model) Screen() Screen { return m.screen }

// Store exposes the conversation store.
func (m Model) Store() *conversation.Store { return m.store }

// Loading reports whether a chat request is in flight.
func (m Model) Loading() bool { return m.loading }

// Status returns the status line text and whether it is an error.
func (m Model) Status() (string, bool) { return m.pane.status, m.pane.statusError }

// SnowEnabled reports whether the snow overlay is on.
func (m Model) SnowEnabled() bool { return m.snowOn }

// SidebarVisible reports whether the history sidebar is shown.
func (m Model) SidebarVisible() bool { return m.showSidebar && m.width >= sidebarMinTotal }

// Theme returns the active theme.
func (m Model) Theme() *styles.Theme { return m.theme }
