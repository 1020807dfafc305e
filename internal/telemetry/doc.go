// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry wires OpenTelemetry tracing and metrics for StarMind and
// tracks LLM token usage on the dev backend.
//
// # Exporters
//
// Traces go to an OTLP/HTTP collector when an endpoint is configured and to
// a rotating JSON file otherwise. Metrics are always written to a rotating
// file next to the trace file by a periodic reader.
//
// # Usage
//
//	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, version)
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
//
// When telemetry is disabled Setup installs nothing and the global no-op
// providers stay in place, so instrumented code needs no checks.
//
// # Privacy
//
// Spans carry routes, status codes and durations. Message content is never
// recorded.
package telemetry
