// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns message text into display output.
//
// Message content is untrusted: it comes from the user, the backend and the
// upstream model. Every renderer sanitizes before anything reaches the
// terminal or an HTML document.
package render

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

// Func renders one message body for display.
type Func func(content string) string

// Plain returns content with unsafe sequences removed and no formatting.
func Plain(content string) string {
	return StripUnsafe(content)
}

// StripUnsafe removes ANSI and OSC escape sequences and every control
// character except newline and tab.
func StripUnsafe(s string) string {
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
