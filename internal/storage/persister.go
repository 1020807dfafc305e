// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starmind/starmind-tui/internal/conversation"
)

// Keys under which client state is stored.
const (
	KeyConversations = "starmind_conversations"
	KeyCurrentID     = "starmind_current_id"
	KeyToken         = "starmind_token"
)

// ErrMalformed is returned when a stored value does not have the expected
// shape. The conversation store treats it as "start empty".
var ErrMalformed = errors.New("storage: malformed conversation data")

// Persister adapts a KV to conversation.Persister.
type Persister struct {
	kv KV
}

// NewPersister wraps kv.
func NewPersister(kv KV) *Persister {
	return &Persister{kv: kv}
}

// Load reads both entries. Missing entries give an empty snapshot.
func (p *Persister) Load(ctx context.Context) (conversation.Snapshot, error) {
	raw, found, err := p.kv.Get(ctx, KeyConversations)
	if err != nil {
		return conversation.Snapshot{}, err
	}

	var snap conversation.Snapshot
	if found {
		convs, err := decodeConversations(raw)
		if err != nil {
			return conversation.Snapshot{}, err
		}
		snap.Conversations = convs
	}

	current, _, err := p.kv.Get(ctx, KeyCurrentID)
	if err != nil {
		return conversation.Snapshot{}, err
	}
	snap.CurrentID = current
	return snap, nil
}

// Save overwrites both entries.
func (p *Persister) Save(ctx context.Context, snap conversation.Snapshot) error {
	convs := snap.Conversations
	if convs == nil {
		convs = []conversation.Conversation{}
	}
	data, err := json.Marshal(convs)
	if err != nil {
		return fmt.Errorf("encode conversations: %w", err)
	}
	if err := p.kv.Set(ctx, KeyConversations, string(data)); err != nil {
		return err
	}
	return p.kv.Set(ctx, KeyCurrentID, snap.CurrentID)
}

// Token returns the stored auth cookie value, if any.
func (p *Persister) Token(ctx context.Context) (string, error) {
	v, _, err := p.kv.Get(ctx, KeyToken)
	return v, err
}

// SetToken stores the auth cookie value. An empty token deletes it.
func (p *Persister) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return p.kv.Delete(ctx, KeyToken)
	}
	return p.kv.Set(ctx, KeyToken, token)
}

// decodeConversations accepts only a JSON array of objects. Anything else,
// including a bare object or null, is foreign-shaped.
func decodeConversations(raw string) ([]conversation.Conversation, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrMalformed
	}
	var convs []conversation.Conversation
	if err := json.Unmarshal(trimmed, &convs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return convs, nil
}
