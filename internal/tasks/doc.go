// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks runs fire-and-forget background work for StarMind, such as
// resetting the remote session after a conversation switch.
//
// # Key Types
//
//   - Runner: bounded-concurrency executor with a per-task timeout
//   - Task: record of one submitted job and its lifecycle
//   - Result: what a finished task reports to the OnDone callback
//
// # Usage
//
//	runner := tasks.NewRunner(tasks.Options{
//	    OnDone: func(r tasks.Result) { program.Send(r) },
//	})
//	defer runner.Stop()
//
//	runner.Go("clear-remote-session", client.Clear)
//
// Failures are logged and reported through OnDone; they never reach the
// caller of Go.
package tasks
