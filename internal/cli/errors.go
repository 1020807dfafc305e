// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a malformed command line. It maps to ExitUsage and is
// printed with a hint to run help.
type UsageError struct {
	Msg   string
	Usage string // optional synopsis, e.g. "history show <id> [--raw]"
}

func (e *UsageError) Error() string {
	if e.Usage != "" {
		return e.Msg + "\nUsage: starmind " + e.Usage
	}
	return e.Msg
}

// NotFoundError is a missing conversation or file.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// errMissingArgument builds a UsageError for a required positional.
func errMissingArgument(name, usage string) error {
	return &UsageError{Msg: "missing " + name, Usage: usage}
}

// =============================================================================
// REPORTING
// =============================================================================

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	return ExitError
}

// DisplayError writes err to w, as a JSON envelope when jsonMode is set.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		data, _ := json.MarshalIndent(NewJSONErrorResponse(command, err), "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}
	fmt.Fprintf(w, "%s %v\n", errorLabel.Sprint("Error:"), err)
	var usage *UsageError
	if errors.As(err, &usage) {
		fmt.Fprintln(w, dim.Sprint("Run 'starmind help' for usage."))
	}
}
