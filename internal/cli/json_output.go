// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// JSONResponse is the envelope for --json output.
type JSONResponse struct {
	Success   bool      `json:"success"`
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewJSONResponse wraps data for command.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Command:   command,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// NewJSONErrorResponse wraps err for command.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	return &JSONResponse{
		Success:   false,
		Command:   command,
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	}
}

// Write prints the envelope as indented JSON.
func (r *JSONResponse) Write(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// =============================================================================
// PAYLOADS
// =============================================================================

// VersionData is the --json payload of version.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// HistoryEntry is one row of history list --json.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	Current   bool      `json:"current"`
}
