// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/starmind/starmind-tui/internal/conversation"
	"github.com/starmind/starmind-tui/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format.
	Export(conv *conversation.Conversation) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type of the exported format.
	MimeType() string
}

// Formats lists the names accepted by ForFormat.
var Formats = []string{"md", "html", "json"}

// ErrUnsupportedFormat is returned by ForFormat for unknown names.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// errNilConversation is returned when asked to export nothing.
var errNilConversation = errors.New("conversation is nil")

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where WriteFile saves. Default: current directory.
	OutputDir string

	// Open launches the file in the default application after writing.
	Open bool

	// IncludeMetadata adds a metadata header.
	IncludeMetadata bool

	// Theme for HTML export: "light" or "dark".
	Theme string

	// Now overrides the export timestamp.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:       ".",
		IncludeMetadata: true,
		Theme:           "dark",
	}
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// ForFormat returns the exporter for name: md (or markdown), html or json.
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// WriteFile exports conv with exporter into opts.OutputDir and returns the
// written path. The file name is the sanitized title plus the id suffix.
func WriteFile(conv *conversation.Conversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if conv == nil {
		return "", errNilConversation
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, Filename(conv, exporter.FileExtension()))
	if err := util.AtomicWriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	if opts.Open {
		// The file exists either way
		_ = openFile(path)
	}
	return path, nil
}

// ToDir exports conv in the named format into dir (the current directory
// when empty), styled for a dark or light page.
func ToDir(conv *conversation.Conversation, format, dir string, dark bool) (string, error) {
	opts := DefaultOptions()
	if dir != "" {
		opts.OutputDir = dir
	}
	if !dark {
		opts.Theme = "light"
	}
	exporter, err := ForFormat(format, opts)
	if err != nil {
		return "", err
	}
	return WriteFile(conv, exporter, opts)
}

// Filename builds "<title>_<id suffix><ext>".
func Filename(conv *conversation.Conversation, ext string) string {
	suffix := conv.ID
	if idx := strings.LastIndexByte(suffix, '_'); idx >= 0 && idx < len(suffix)-1 {
		suffix = suffix[idx+1:]
	}
	name := sanitizeFilename(conv.Title)
	if suffix != "" {
		name += "_" + sanitizeFilename(suffix)
	}
	return name + ext
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > 50 {
		runes = runes[:50]
	}

	replacer := map[rune]rune{
		'/': '-', '\\': '-', ':': '-', '*': '-', '?': '-',
		'"': '-', '<': '-', '>': '-', '|': '-',
		' ': '_', '\t': '_', '\n': '_', '\r': '_',
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	out := strings.Trim(string(result), ".")
	if out == "" {
		return "conversation"
	}
	return out
}

// openFile opens a file in the default application for the OS.
func openFile(path string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, path)
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

// roleLabel is the display name for a message author.
func roleLabel(role conversation.Role) string {
	switch role {
	case conversation.RoleUser:
		return "你"
	case conversation.RoleAssistant:
		return "StarMind"
	default:
		return string(role)
	}
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
