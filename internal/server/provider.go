// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/starmind/starmind-tui/internal/config"
)

// =============================================================================
// PROVIDERS
// =============================================================================

// Provider names accepted in serve.llm.provider.
const (
	ProviderMock         = "mock"
	ProviderOpenAICompat = "openai_compat"
)

// APIKeyEnv overrides serve.llm.api_key.
const APIKeyEnv = "STARMIND_API_KEY"

// placeholderKey is the value shipped in sample configs.
const placeholderKey = "YOUR_API_KEY"

var (
	// ErrUnsupportedProvider is returned for unknown provider names.
	ErrUnsupportedProvider = errors.New("unsupported llm.provider")

	// ErrMissingAPIKey is returned when openai_compat has no usable key.
	ErrMissingAPIKey = errors.New("llm.api_key is empty (or set STARMIND_API_KEY)")
)

// Provider produces one assistant reply from history plus a new message.
type Provider interface {
	Name() string
	Complete(ctx context.Context, history []Turn, message string) (openai.ChatCompletionResponse, error)
}

// NewProvider returns the provider configured in cfg.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderMock:
		return mockProvider{now: time.Now}, nil
	case ProviderOpenAICompat:
		return newOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

// =============================================================================
// MOCK
// =============================================================================

// mockProvider echoes the message back.
type mockProvider struct {
	now func() time.Time
}

func (mockProvider) Name() string { return ProviderMock }

func (p mockProvider) Complete(_ context.Context, _ []Turn, message string) (openai.ChatCompletionResponse, error) {
	return completion("mock", ProviderMock, p.now(), "(mock) 你说："+message), nil
}

// completion builds a single-choice response.
func completion(id, model string, created time.Time, content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: created.Unix(),
		Model:   model,
		Choices: []openai.ChatCompletionChoice{{
			Index: 0,
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
			FinishReason: openai.FinishReasonStop,
		}},
	}
}

// =============================================================================
// OPENAI COMPATIBLE
// =============================================================================

// openaiProvider calls any OpenAI-compatible chat completions endpoint.
type openaiProvider struct {
	cfg config.LLMConfig
	key string
}

func newOpenAIProvider(cfg config.LLMConfig) *openaiProvider {
	key := cfg.APIKey
	if env := os.Getenv(APIKeyEnv); env != "" {
		key = env
	}
	return &openaiProvider{cfg: cfg, key: key}
}

func (p *openaiProvider) Name() string { return ProviderOpenAICompat }

func (p *openaiProvider) Complete(ctx context.Context, history []Turn, message string) (openai.ChatCompletionResponse, error) {
	if p.key == "" || p.key == placeholderKey {
		return openai.ChatCompletionResponse{}, ErrMissingAPIKey
	}

	clientCfg := openai.DefaultConfig(p.key)
	if p.cfg.APIBase != "" {
		clientCfg.BaseURL = strings.TrimRight(p.cfg.APIBase, "/")
	}
	if p.cfg.TimeoutSeconds > 0 {
		ctx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
		return p.call(ctx, openai.NewClientWithConfig(clientCfg), history, message)
	}
	return p.call(ctx, openai.NewClientWithConfig(clientCfg), history, message)
}

func (p *openaiProvider) call(ctx context.Context, client *openai.Client, history []Turn, message string) (openai.ChatCompletionResponse, error) {
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.cfg.Model,
		Messages: buildMessages(p.cfg.SystemPrompt, history, message, p.cfg.MaxHistoryMessages),
	})
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return resp, nil
}

// buildMessages assembles the system prompt, the last maxHistory turns and
// the new user message.
func buildMessages(systemPrompt string, history []Turn, message string, maxHistory int) []openai.ChatCompletionMessage {
	if maxHistory >= 0 && len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, t := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})
}

// replyContent returns the first choice's content.
func replyContent(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}
