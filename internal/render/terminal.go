// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/patrickmn/go-cache"
)

const (
	// DefaultWidth is used when the pane width is unknown.
	DefaultWidth = 80

	cacheTTL     = 10 * time.Minute
	cacheCleanup = 5 * time.Minute
	minWidth     = 20
)

// =============================================================================
// TERMINAL RENDERER
// =============================================================================

// Terminal renders markdown with glamour. Output is cached per width and
// content so repainting a long conversation stays cheap.
type Terminal struct {
	mu        sync.Mutex
	theme     string
	renderers map[int]*glamour.TermRenderer
	cache     *cache.Cache
}

// NewTerminal creates a renderer for theme: auto, dark or light.
func NewTerminal(theme string) *Terminal {
	return &Terminal{
		theme:     normalizeTheme(theme),
		renderers: make(map[int]*glamour.TermRenderer),
		cache:     cache.New(cacheTTL, cacheCleanup),
	}
}

// SetTheme switches the glamour style and drops cached output.
func (t *Terminal) SetTheme(theme string) {
	theme = normalizeTheme(theme)

	t.mu.Lock()
	defer t.mu.Unlock()
	if theme == t.theme {
		return
	}
	t.theme = theme
	t.renderers = make(map[int]*glamour.TermRenderer)
	t.cache.Flush()
}

// Theme returns the active theme name.
func (t *Terminal) Theme() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.theme
}

// Render renders content wrapped to width columns.
func (t *Terminal) Render(content string, width int) string {
	if width < minWidth {
		width = DefaultWidth
	}
	safe := StripUnsafe(content)

	t.mu.Lock()
	defer t.mu.Unlock()

	key := cacheKey(t.theme, width, safe)
	if out, ok := t.cache.Get(key); ok {
		return out.(string)
	}

	out := safe
	if r := t.renderer(width); r != nil {
		if rendered, err := r.Render(safe); err == nil {
			out = strings.Trim(rendered, "\n")
		}
	}
	t.cache.Set(key, out, cache.DefaultExpiration)
	return out
}

// Func binds the renderer to a width.
func (t *Terminal) Func(width int) Func {
	return func(content string) string {
		return t.Render(content, width)
	}
}

// renderer returns the glamour renderer for width, or nil when glamour
// cannot be initialized. Callers hold t.mu.
func (t *Terminal) renderer(width int) *glamour.TermRenderer {
	if r, ok := t.renderers[width]; ok {
		return r
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if t.theme == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(t.theme))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		r = nil
	}
	t.renderers[width] = r
	return r
}

func normalizeTheme(theme string) string {
	switch strings.ToLower(strings.TrimSpace(theme)) {
	case "dark":
		return "dark"
	case "light":
		return "light"
	default:
		return "auto"
	}
}

func cacheKey(theme string, width int, content string) string {
	sum := sha256.Sum256([]byte(content))
	return theme + ":" + strconv.Itoa(width) + ":" + hex.EncodeToString(sum[:])
}
