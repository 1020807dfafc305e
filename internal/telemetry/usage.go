// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// =============================================================================
// USAGE TRACKER
// =============================================================================

// TokenCount tracks prompt and completion tokens.
type TokenCount struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// Total returns prompt plus completion tokens.
func (t TokenCount) Total() int {
	return t.Prompt + t.Completion
}

// ModelUsage aggregates calls to one model.
type ModelUsage struct {
	Model    string        `json:"model"`
	Calls    int           `json:"calls"`
	Failures int           `json:"failures"`
	Tokens   TokenCount    `json:"tokens"`
	Latency  time.Duration `json:"latency_ns"`
}

// AverageLatency returns the mean latency of successful calls.
func (m ModelUsage) AverageLatency() time.Duration {
	ok := m.Calls - m.Failures
	if ok <= 0 {
		return 0
	}
	return m.Latency / time.Duration(ok)
}

// UsageSummary is a point-in-time copy of the tracker.
type UsageSummary struct {
	Since  time.Time    `json:"since"`
	Tokens TokenCount   `json:"tokens"`
	Calls  int          `json:"calls"`
	Models []ModelUsage `json:"models"`
}

// UsageTracker accumulates LLM token usage per model and mirrors it into
// OpenTelemetry counters. Safe for concurrent use.
type UsageTracker struct {
	mu     sync.Mutex
	since  time.Time
	models map[string]*ModelUsage

	tokens   metric.Int64Counter
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewUsageTracker creates a tracker using the global meter provider.
func NewUsageTracker() *UsageTracker {
	meter := otel.Meter("github.com/starmind/starmind-tui/internal/telemetry")
	t := &UsageTracker{
		since:  time.Now(),
		models: make(map[string]*ModelUsage),
	}
	// Instrument errors leave the field nil; Record checks before use
	t.tokens, _ = meter.Int64Counter("starmind.llm.tokens",
		metric.WithDescription("LLM tokens consumed"), metric.WithUnit("{token}"))
	t.calls, _ = meter.Int64Counter("starmind.llm.calls",
		metric.WithDescription("LLM completion calls"))
	t.duration, _ = meter.Float64Histogram("starmind.llm.duration",
		metric.WithDescription("LLM completion latency"), metric.WithUnit("s"))
	return t
}

// Record adds one successful completion.
func (t *UsageTracker) Record(ctx context.Context, model string, tokens TokenCount, latency time.Duration) {
	t.mu.Lock()
	u := t.model(model)
	u.Calls++
	u.Tokens.Prompt += tokens.Prompt
	u.Tokens.Completion += tokens.Completion
	u.Latency += latency
	t.mu.Unlock()

	modelAttr := attribute.String("model", model)
	if t.tokens != nil {
		t.tokens.Add(ctx, int64(tokens.Prompt), metric.WithAttributes(modelAttr, attribute.String("kind", "prompt")))
		t.tokens.Add(ctx, int64(tokens.Completion), metric.WithAttributes(modelAttr, attribute.String("kind", "completion")))
	}
	if t.calls != nil {
		t.calls.Add(ctx, 1, metric.WithAttributes(modelAttr, attribute.Bool("ok", true)))
	}
	if t.duration != nil {
		t.duration.Record(ctx, latency.Seconds(), metric.WithAttributes(modelAttr))
	}
}

// RecordFailure adds one failed completion.
func (t *UsageTracker) RecordFailure(ctx context.Context, model string) {
	t.mu.Lock()
	u := t.model(model)
	u.Calls++
	u.Failures++
	t.mu.Unlock()

	if t.calls != nil {
		t.calls.Add(ctx, 1, metric.WithAttributes(attribute.String("model", model), attribute.Bool("ok", false)))
	}
}

// Summary returns totals with models sorted by token use, highest first.
func (t *UsageTracker) Summary() UsageSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := UsageSummary{Since: t.since, Models: make([]ModelUsage, 0, len(t.models))}
	for _, u := range t.models {
		s.Models = append(s.Models, *u)
		s.Calls += u.Calls
		s.Tokens.Prompt += u.Tokens.Prompt
		s.Tokens.Completion += u.Tokens.Completion
	}
	sort.Slice(s.Models, func(i, j int) bool {
		if s.Models[i].Tokens.Total() != s.Models[j].Tokens.Total() {
			return s.Models[i].Tokens.Total() > s.Models[j].Tokens.Total()
		}
		return s.Models[i].Model < s.Models[j].Model
	})
	return s
}

// Reset clears all totals.
func (t *UsageTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.since = time.Now()
	t.models = make(map[string]*ModelUsage)
}

func (t *UsageTracker) model(name string) *ModelUsage {
	u, ok := t.models[name]
	if !ok {
		u = &ModelUsage{Model: name}
		t.models[name] = u
	}
	return u
}
