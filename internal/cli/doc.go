// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the starmind command line.
//
// Commands:
//
//	starmind [tui]          Full-screen chat client (default)
//	starmind chat           Line-oriented chat REPL
//	starmind serve          Bundled StarMind backend
//	starmind history ...    Inspect and manage saved conversations
//	starmind snow           Full-screen snowfall
//	starmind config ...     Show, locate or initialize the config file
//	starmind version        Print version information
//
// Every handler returns an error; App.Run maps it to an exit code with
// ExitCode.
package cli
