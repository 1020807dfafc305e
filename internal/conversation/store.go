// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// =============================================================================
// STORE
// =============================================================================

// Options configures a Store. Persister is required; every other field has
// a usable default.
type Options struct {
	Persister Persister
	Painter   Painter
	Remote    RemoteSession
	Tasks     TaskRunner
	Logger    *zap.Logger

	// Now overrides the clock used for ids and timestamps.
	Now func() time.Time
}

// Store owns the conversation set and the current id. It is the only
// mutator of persisted history.
//
// Store is not safe for concurrent use. It is driven from a single event
// loop; asynchronous work reports back through that loop and never touches
// the store directly.
type Store struct {
	convs     []Conversation
	currentID string

	persister Persister
	painter   Painter
	remote    RemoteSession
	tasks     TaskRunner
	log       *zap.Logger
	now       func() time.Time

	persistFailures metric.Int64Counter
}

// New creates a store. The set is empty until Load is called.
func New(opts Options) *Store {
	s := &Store{
		persister: opts.Persister,
		painter:   opts.Painter,
		remote:    opts.Remote,
		tasks:     opts.Tasks,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if s.painter == nil {
		s.painter = nopPainter{}
	}
	if s.tasks == nil {
		s.tasks = goRunner{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}

	meter := otel.Meter("github.com/starmind/starmind-tui/internal/conversation")
	counter, err := meter.Int64Counter("starmind.store.persist_failures",
		metric.WithDescription("Conversation set writes that failed"))
	if err == nil {
		s.persistFailures = counter
	}
	return s
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Conversations returns a copy of the set, newest first.
func (s *Store) Conversations() []Conversation {
	return cloneAll(s.convs)
}

// CurrentID returns the active conversation id, or "" when the set is empty.
func (s *Store) CurrentID() string {
	return s.currentID
}

// Current returns a copy of the active conversation.
func (s *Store) Current() (Conversation, bool) {
	return s.Get(s.currentID)
}

// Get returns a copy of the conversation with the given id.
func (s *Store) Get(id string) (Conversation, bool) {
	idx := s.indexOf(id)
	if idx < 0 {
		return Conversation{}, false
	}
	return s.convs[idx].clone(), true
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	return len(s.convs)
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Load replaces the in-memory state with what the persister holds. Missing
// or malformed data yields an empty set; the error is never surfaced.
func (s *Store) Load(ctx context.Context) {
	snap, err := s.persister.Load(ctx)
	if err != nil {
		s.log.Debug("discarding persisted conversations", zap.Error(err))
		s.convs = nil
		s.currentID = ""
		return
	}

	s.convs = normalize(snap.Conversations)
	s.currentID = snap.CurrentID
	switch {
	case len(s.convs) == 0:
		s.currentID = ""
	case s.indexOf(s.currentID) < 0:
		s.currentID = s.convs[0].ID
	}
	s.log.Debug("conversations loaded",
		zap.Int("count", len(s.convs)),
		zap.String("current", s.currentID))
}

// Repaint redraws the history list and the active conversation without
// touching persisted state.
func (s *Store) Repaint() {
	s.painter.ClearMessages()
	if idx := s.indexOf(s.currentID); idx >= 0 {
		s.paintConversation(s.convs[idx])
	}
	s.paintHistory()
}

// Create starts a new empty conversation, makes it current and resets the
// remote session without waiting for it.
func (s *Store) Create(ctx context.Context) Conversation {
	id := generateID(s.now())
	for s.indexOf(id) >= 0 {
		id = generateID(s.now())
	}

	conv := Conversation{
		ID:        id,
		Title:     PlaceholderTitle,
		Messages:  []Message{},
		Timestamp: s.now().UnixMilli(),
	}
	s.convs = append([]Conversation{conv}, s.convs...)
	s.currentID = id
	s.persist(ctx)

	s.painter.ClearMessages()
	s.painter.PaintWelcome(WelcomeText)
	s.paintHistory()
	s.clearRemote()

	s.log.Info("conversation created", zap.String("id", id))
	return conv.clone()
}

// SwitchTo makes id the current conversation and repaints the pane with
// its messages. Switching to the current or an unknown id does nothing.
func (s *Store) SwitchTo(ctx context.Context, id string) bool {
	if id == s.currentID {
		return false
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}

	s.currentID = id
	s.persist(ctx)
	s.painter.ClearMessages()
	s.clearRemote()
	s.paintConversation(s.convs[idx])
	s.paintHistory()
	return true
}

// AppendMessage adds a message to the current conversation. The first user
// message of a conversation that still has the placeholder title also names
// it. Returns false when there is no current conversation.
func (s *Store) AppendMessage(ctx context.Context, role Role, content string) bool {
	idx := s.indexOf(s.currentID)
	if idx < 0 {
		return false
	}

	conv := &s.convs[idx]
	if role == RoleUser && conv.Title == PlaceholderTitle && !conv.HasUserMessage() {
		if title := DeriveTitle(content); title != "" {
			conv.Title = title
		}
	}
	conv.Messages = append(conv.Messages, Message{Role: role, Content: content})

	s.persist(ctx)
	s.paintHistory()
	return true
}

// Rename sets the title of id. Blank titles and unknown ids are ignored.
func (s *Store) Rename(ctx context.Context, id, title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}

	s.convs[idx].Title = title
	s.persist(ctx)
	s.paintHistory()
	return true
}

// Delete removes id. Deleting the current conversation moves to the next
// newest one, or starts a fresh conversation when none remain.
func (s *Store) Delete(ctx context.Context, id string) {
	idx := s.indexOf(id)
	wasCurrent := idx >= 0 && id == s.currentID
	if idx >= 0 {
		s.convs = append(s.convs[:idx], s.convs[idx+1:]...)
		s.log.Info("conversation deleted", zap.String("id", id))
	}

	if wasCurrent {
		s.currentID = ""
		if len(s.convs) > 0 {
			s.SwitchTo(ctx, s.convs[0].ID)
		} else {
			s.Create(ctx)
		}
		return
	}

	s.persist(ctx)
	s.paintHistory()
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.convs {
		if s.convs[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persist(ctx context.Context) {
	snap := Snapshot{Conversations: cloneAll(s.convs), CurrentID: s.currentID}
	if err := s.persister.Save(ctx, snap); err != nil {
		if s.persistFailures != nil {
			s.persistFailures.Add(ctx, 1)
		}
		s.log.Warn("failed to persist conversations", zap.Error(err))
		s.painter.SetStatus("保存失败："+err.Error(), true)
	}
}

func (s *Store) paintConversation(conv Conversation) {
	if len(conv.Messages) == 0 {
		s.painter.PaintWelcome(WelcomeText)
		return
	}
	for _, m := range conv.Messages {
		s.painter.PaintMessage(m)
	}
}

func (s *Store) paintHistory() {
	s.painter.PaintHistory(cloneAll(s.convs), s.currentID)
}

func (s *Store) clearRemote() {
	if s.remote == nil {
		return
	}
	s.tasks.Go("clear-remote-session", s.remote.Clear)
}

// normalize drops entries that cannot be addressed or rendered: blank or
// duplicate ids and messages with unknown roles.
func normalize(in []Conversation) []Conversation {
	out := make([]Conversation, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true

		msgs := make([]Message, 0, len(c.Messages))
		for _, m := range c.Messages {
			if m.Role.Valid() {
				msgs = append(msgs, m)
			}
		}
		c.Messages = msgs
		if c.Title == "" {
			c.Title = PlaceholderTitle
		}
		out = append(out, c)
	}
	return out
}
