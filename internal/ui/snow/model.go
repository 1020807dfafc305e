// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package snow

import (
	"math/rand"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FPS is the animation frame rate.
const FPS = 30

// TickMsg advances the animation by one frame.
type TickMsg time.Time

// Tick schedules the next frame.
func Tick() tea.Cmd {
	return tea.Tick(time.Second/FPS, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Model is a full screen snowfall program. q, esc and ctrl+c quit.
type Model struct {
	field  *Field
	shade  func(alpha float64) lipgloss.Style
	frames int
}

// NewModel creates a snowfall model. shade may be nil.
func NewModel(shade func(alpha float64) lipgloss.Style, rng *rand.Rand) Model {
	return Model{
		field: NewField(80, 24, rng),
		shade: shade,
	}
}

// Field exposes the underlying flakes.
func (m Model) Field() *Field {
	return m.field
}

// Frames returns how many frames have been drawn.
func (m Model) Frames() int {
	return m.frames
}

// Init starts the animation.
func (m Model) Init() tea.Cmd {
	return Tick()
}

// Update handles resize, tick and quit keys.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.field.Resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case TickMsg:
		m.field.Step()
		m.frames++
		return m, Tick()
	}
	return m, nil
}

// View renders the field.
func (m Model) View() string {
	return m.field.Render(m.shade)
}
