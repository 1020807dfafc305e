// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a StarMind conversation to a standalone file.
//
// # Supported Formats
//
//   - md: Markdown with a YAML front matter block
//   - html: a self-contained page, rendered and sanitized through the
//     render package, with chroma CSS for highlighted code
//   - json: the persisted shape of the single conversation
//
// # Usage
//
//	exporter, err := export.ForFormat("html", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.WriteFile(conv, exporter, &export.Options{OutputDir: dir})
package export
