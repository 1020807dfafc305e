// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// =============================================================================
// SESSIONS
// =============================================================================

// Turn is one message of server-side chat history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// session is the history of one token.
type session struct {
	mu    sync.Mutex
	turns []Turn
}

// SessionStore keeps per-token chat history with the token's lifetime.
type SessionStore struct {
	mu    sync.Mutex
	items *cache.Cache
	ttl   time.Duration
}

// NewSessionStore creates a store whose entries expire after ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		items: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (s *SessionStore) getOrCreate(token string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.items.Get(token); ok {
		return v.(*session)
	}
	sess := &session{}
	s.items.Set(token, sess, s.ttl)
	return sess
}

// Create starts an empty history for token if none exists.
func (s *SessionStore) Create(token string) {
	s.getOrCreate(token)
}

// History returns a copy of the last max turns (all when max <= 0).
func (s *SessionStore) History(token string, max int) []Turn {
	sess := s.getOrCreate(token)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	turns := sess.turns
	if max > 0 && len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Append adds turns to token's history.
func (s *SessionStore) Append(token string, turns ...Turn) {
	sess := s.getOrCreate(token)
	sess.mu.Lock()
	sess.turns = append(sess.turns, turns...)
	sess.mu.Unlock()
}

// Clear empties token's history but keeps the session.
func (s *SessionStore) Clear(token string) {
	sess := s.getOrCreate(token)
	sess.mu.Lock()
	sess.turns = nil
	sess.mu.Unlock()
}

// Erase drops the session entirely.
func (s *SessionStore) Erase(token string) {
	s.mu.Lock()
	s.items.Delete(token)
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	return s.items.ItemCount()
}
