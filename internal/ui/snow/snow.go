// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package snow animates falling snow in the terminal, either full screen or
// drawn over the blank cells of another view.
package snow

import (
	"math/rand"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

const (
	// DefaultCount is the flake count for a large terminal.
	DefaultCount = 200

	// DefaultSpeed scales flake velocity from pixels to cells per frame.
	DefaultSpeed = 0.12

	// cellsPerFlake sets the density on small terminals.
	cellsPerFlake = 12
)

// Flake is one snowflake. Position is in cells.
type Flake struct {
	X, Y   float64
	VX, VY float64
	Radius float64
	Alpha  float64
}

// Field is a set of flakes in a W by H cell area.
type Field struct {
	W, H   int
	Speed  float64
	Flakes []Flake

	rng *rand.Rand
}

// NewField creates a field sized for w by h, with flakes spread over it.
// rng may be nil.
func NewField(w, h int, rng *rand.Rand) *Field {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	f := &Field{Speed: DefaultSpeed, rng: rng}
	f.Resize(w, h)
	return f
}

// CountFor returns how many flakes fit a w by h area.
func CountFor(w, h int) int {
	n := w * h / cellsPerFlake
	if n > DefaultCount {
		n = DefaultCount
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Resize changes the field size, adding or dropping flakes to match the
// new area. Flakes outside the new bounds are moved inside.
func (f *Field) Resize(w, h int) {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	f.W, f.H = w, h

	want := CountFor(w, h)
	if len(f.Flakes) > want {
		f.Flakes = f.Flakes[:want]
	}
	for len(f.Flakes) < want {
		f.Flakes = append(f.Flakes, f.newFlake())
	}
	for i := range f.Flakes {
		fl := &f.Flakes[i]
		if fl.X >= float64(w) {
			fl.X = f.rng.Float64() * float64(w)
		}
		if fl.Y >= float64(h) {
			fl.Y = f.rng.Float64() * float64(h)
		}
	}
}

func (f *Field) newFlake() Flake {
	return Flake{
		X:      f.rng.Float64() * float64(f.W),
		Y:      f.rng.Float64() * float64(f.H),
		VX:     f.rng.Float64() - 0.5,
		VY:     f.rng.Float64()*2 + 1,
		Radius: f.rng.Float64()*3 + 1,
		Alpha:  f.rng.Float64()*0.5 + 0.3,
	}
}

// Step advances every flake by one frame. A flake that falls past the
// bottom respawns just above the top at a random column; flakes wrap
// horizontally.
func (f *Field) Step() {
	w, h := float64(f.W), float64(f.H)
	for i := range f.Flakes {
		fl := &f.Flakes[i]
		fl.X += fl.VX * f.Speed
		fl.Y += fl.VY * f.Speed

		if fl.Y > h {
			fl.Y = -1
			fl.X = f.rng.Float64() * w
		}
		if fl.X >= w {
			fl.X -= w
		}
		if fl.X < 0 {
			fl.X += w
		}
	}
}

// Glyph returns the character drawn for a flake of radius r.
func Glyph(r float64) string {
	switch {
	case r < 2:
		return "."
	case r < 3:
		return "*"
	default:
		return "❄"
	}
}

// cells maps visible flakes to their (row, col). Larger flakes win.
func (f *Field) cells() map[[2]int]Flake {
	out := make(map[[2]int]Flake, len(f.Flakes))
	for _, fl := range f.Flakes {
		row, col := int(fl.Y), int(fl.X)
		if fl.Y < 0 || row >= f.H || col < 0 || col >= f.W {
			continue
		}
		key := [2]int{row, col}
		if cur, ok := out[key]; !ok || fl.Radius > cur.Radius {
			out[key] = fl
		}
	}
	return out
}

// Render draws the field as H lines of W cells. shade styles a flake by
// alpha; nil draws plain glyphs.
func (f *Field) Render(shade func(alpha float64) lipgloss.Style) string {
	cells := f.cells()
	var sb strings.Builder
	for row := 0; row < f.H; row++ {
		if row > 0 {
			sb.WriteByte('\n')
		}
		for col := 0; col < f.W; col++ {
			fl, ok := cells[[2]int{row, col}]
			if !ok {
				sb.WriteByte(' ')
				continue
			}
			sb.WriteString(paint(fl, shade))
		}
	}
	return sb.String()
}

// Overlay draws flakes over base, only on cells that are blank in base so
// text is never covered.
func (f *Field) Overlay(base string, shade func(alpha float64) lipgloss.Style) string {
	lines := strings.Split(base, "\n")
	byRow := make(map[int][]int)
	cells := f.cells()
	for key := range cells {
		byRow[key[0]] = append(byRow[key[0]], key[1])
	}

	for row, cols := range byRow {
		if row >= len(lines) {
			continue
		}
		line := lines[row]
		for _, col := range cols {
			fl := cells[[2]int{row, col}]
			glyph := Glyph(fl.Radius)
			if runewidth.StringWidth(glyph) != 1 {
				glyph = "*"
			}
			if !blankAt(line, col) {
				continue
			}
			width := ansi.StringWidth(line)
			if width <= col {
				line += strings.Repeat(" ", col-width)
				line += paintGlyph(glyph, fl, shade)
				continue
			}
			line = ansi.Truncate(line, col, "") + paintGlyph(glyph, fl, shade) + ansi.TruncateLeft(line, col+1, "")
		}
		lines[row] = line
	}
	return strings.Join(lines, "\n")
}

// blankAt reports whether the visible cell at col is a space or past the
// end of the line.
func blankAt(line string, col int) bool {
	pos := 0
	for _, r := range ansi.Strip(line) {
		w := runewidth.RuneWidth(r)
		if col < pos+w {
			return r == ' '
		}
		pos += w
	}
	return true
}

func paint(fl Flake, shade func(alpha float64) lipgloss.Style) string {
	return paintGlyph(Glyph(fl.Radius), fl, shade)
}

func paintGlyph(glyph string, fl Flake, shade func(alpha float64) lipgloss.Style) string {
	if shade == nil {
		return glyph
	}
	return shade(fl.Alpha).Render(glyph)
}
