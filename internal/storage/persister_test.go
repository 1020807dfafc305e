// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starmind/starmind-tui/internal/conversation"
)

func TestPersister_EmptyStore(t *testing.T) {
	p := NewPersister(NewMemoryStore())

	snap, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Conversations)
	assert.Empty(t, snap.CurrentID)
}

func TestPersister_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	p := NewPersister(kv)

	want := conversation.Snapshot{
		Conversations: []conversation.Conversation{
			{ID: "conv_b", Title: "Second", Timestamp: 2, Messages: []conversation.Message{
				{Role: conversation.RoleUser, Content: "<script>alert(1)</script>"},
				{Role: conversation.RoleAssistant, Content: "多行\n回复"},
			}},
			{ID: "conv_a", Title: conversation.PlaceholderTitle, Timestamp: 1, Messages: []conversation.Message{}},
		},
		CurrentID: "conv_b",
	}
	require.NoError(t, p.Save(ctx, want))

	got, err := NewPersister(kv).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPersister_WireShape(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	p := NewPersister(kv)

	require.NoError(t, p.Save(ctx, conversation.Snapshot{
		Conversations: []conversation.Conversation{{
			ID: "conv_x", Title: "t", Timestamp: 1700000000000,
			Messages: []conversation.Message{{Role: conversation.RoleUser, Content: "hi"}},
		}},
		CurrentID: "conv_x",
	}))

	raw, _, _ := kv.Get(ctx, KeyConversations)
	assert.JSONEq(t,
		`[{"id":"conv_x","title":"t","messages":[{"role":"user","content":"hi"}],"timestamp":1700000000000}]`,
		raw)
	current, _, _ := kv.Get(ctx, KeyCurrentID)
	assert.Equal(t, "conv_x", current)
}

func TestPersister_ForeignShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{{{"},
		{"object", `{"id":"conv_a"}`},
		{"null", "null"},
		{"string", `"conversations"`},
		{"wrong element type", `[1,2,3]`},
		{"wrong field type", `[{"id":"a","messages":"nope"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := NewMemoryStore()
			require.NoError(t, kv.Set(ctx, KeyConversations, tt.raw))

			_, err := NewPersister(kv).Load(ctx)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestPersister_StoreFallsBackOnForeignShape(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	require.NoError(t, kv.Set(ctx, KeyConversations, `{"legacy":true}`))
	require.NoError(t, kv.Set(ctx, KeyCurrentID, "conv_legacy"))

	store := conversation.New(conversation.Options{Persister: NewPersister(kv)})
	store.Load(ctx)

	assert.Equal(t, 0, store.Len())
	assert.Empty(t, store.CurrentID())
}

func TestPersister_Token(t *testing.T) {
	ctx := context.Background()
	p := NewPersister(NewMemoryStore())

	require.NoError(t, p.SetToken(ctx, "abc"))
	tok, err := p.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	require.NoError(t, p.SetToken(ctx, ""))
	tok, err = p.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}
