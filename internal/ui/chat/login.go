// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starmind/starmind-tui/internal/ui/styles"
)

// =============================================================================
// LOGIN FORM
// =============================================================================

const (
	fieldUser = iota
	fieldPassword
	fieldCode
	fieldCount
)

// loginForm collects credentials: user, password and an optional one-time
// code.
type loginForm struct {
	inputs  [fieldCount]textinput.Model
	focused int
}

func newLoginForm() *loginForm {
	f := &loginForm{}

	user := textinput.New()
	user.Prompt = "用户名   "
	user.CharLimit = 64

	password := textinput.New()
	password.Prompt = "密码     "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	code := textinput.New()
	code.Prompt = "验证码   "
	code.Placeholder = "可选"
	code.CharLimit = 8

	f.inputs = [fieldCount]textinput.Model{user, password, code}
	f.focus(fieldUser)
	return f
}

func (f *loginForm) focus(i int) tea.Cmd {
	f.focused = (i + fieldCount) % fieldCount
	var cmd tea.Cmd
	for j := range f.inputs {
		if j == f.focused {
			cmd = f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return cmd
}

// values returns the trimmed user and code and the raw password.
func (f *loginForm) values() (user, password, code string) {
	return strings.TrimSpace(f.inputs[fieldUser].Value()),
		f.inputs[fieldPassword].Value(),
		strings.TrimSpace(f.inputs[fieldCode].Value())
}

// reset clears the password and code, keeping the user name.
func (f *loginForm) reset() {
	f.inputs[fieldPassword].SetValue("")
	f.inputs[fieldCode].SetValue("")
	f.focus(fieldPassword)
}

// update handles field navigation and forwards other keys to the focused
// input. submit is true when enter was pressed on the last field or any
// field with user and password filled.
func (f *loginForm) update(msg tea.KeyMsg) (submit bool, cmd tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		return false, f.focus(f.focused + 1)
	case "shift+tab", "up":
		return false, f.focus(f.focused - 1)
	case "enter":
		user, password, _ := f.values()
		if user != "" && password != "" {
			return true, nil
		}
		return false, f.focus(f.focused + 1)
	}

	f.inputs[f.focused], cmd = f.inputs[f.focused].Update(msg)
	return false, cmd
}

func (f *loginForm) view(theme *styles.Theme, status string, statusError bool, width int) string {
	lines := []string{
		theme.DialogTitle.Render("✦ 登录 StarMind"),
		"",
	}
	for i := range f.inputs {
		lines = append(lines, f.inputs[i].View())
	}
	lines = append(lines, "", theme.Shortcut("Enter", "登录")+"  "+theme.Shortcut("Tab", "切换")+"  "+theme.Shortcut("C-c", "退出"))
	if status != "" {
		style := theme.Status
		if statusError {
			style = theme.StatusError
		}
		lines = append(lines, "", style.Render(status))
	}

	box := theme.Dialog.Render(strings.Join(lines, "\n"))
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, box)
}
