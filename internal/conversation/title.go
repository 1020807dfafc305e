// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

// DeriveTitle builds a display title from the first user message: NFC
// normalized, trimmed, line breaks collapsed to spaces, and cut to 20
// characters with a trailing ellipsis when longer.
func DeriveTitle(content string) string {
	t := strings.TrimSpace(norm.NFC.String(content))
	t = lineBreaks.ReplaceAllString(t, " ")

	runes := []rune(t)
	if len(runes) > titleMaxRunes {
		return string(runes[:titleMaxRunes]) + titleEllipsis
	}
	return t
}

// generateID returns "conv_<millis base36>_<6 hex>".
func generateID(now time.Time) string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		// Fall back to the nanosecond clock
		return "conv_" + strconv.FormatInt(now.UnixNano(), 36)
	}
	return "conv_" + strconv.FormatInt(now.UnixMilli(), 36) + "_" + hex.EncodeToString(b)
}
