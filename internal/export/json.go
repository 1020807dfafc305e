// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/starmind/starmind-tui/internal/conversation"
)

// JSONExporter writes the persisted shape of one conversation, so an export
// can be pasted back into the stored array.
type JSONExporter struct{}

// NewJSONExporter creates a JSON exporter. Options do not affect JSON.
func NewJSONExporter(*Options) *JSONExporter {
	return &JSONExporter{}
}

// Export converts a conversation to indented JSON.
func (e *JSONExporter) Export(conv *conversation.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, errNilConversation
	}
	out := *conv
	if out.Messages == nil {
		out.Messages = []conversation.Message{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
