// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	"github.com/jeranaias/mcpchat/internal/model"
)

// =============================================================================
// STORE
// =============================================================================

// Store is the conversation store. It is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	conversations []*model.Conversation // newest first
	activeID      string
	view          []*model.Message // active message view, independent copies

	// Session streaming state.
	streaming  bool
	inflightID string

	subsMu  sync.Mutex
	subs    map[int]func()
	nextSub int
}

// NewStore creates an empty store with no conversations.
func NewStore() *Store {
	return &Store{
		view: make([]*model.Message, 0),
		subs: make(map[int]func()),
	}
}

// MessageOption sets optional fields on a message created by AddMessage.
type MessageOption func(*model.Message)

// WithStreaming marks the new message as streaming.
func WithStreaming(streaming bool) MessageOption {
	return func(m *model.Message) {
		m.Streaming = streaming
	}
}

// WithToolCalls sets the initial tool-call display names.
func WithToolCalls(names ...string) MessageOption {
	return func(m *model.Message) {
		m.ToolCalls = append([]string{}, names...)
	}
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// CreateConversation inserts a new conversation at the front of the list,
// makes it active and clears the message view.
func (s *Store) CreateConversation(title string) *model.Conversation {
	s.mu.Lock()
	conv := s.createLocked(title)
	out := conv.Clone()
	s.mu.Unlock()

	s.notify()
	return out
}

func (s *Store) createLocked(title string) *model.Conversation {
	conv := model.NewConversation(title)
	s.conversations = append([]*model.Conversation{conv}, s.conversations...)
	s.activeID = conv.ID
	s.view = make([]*model.Message, 0)
	return conv
}

// SwitchConversation makes the conversation active and replaces the view
// with a copy of its messages. Unknown IDs are ignored.
func (s *Store) SwitchConversation(id string) {
	s.mu.Lock()
	ok := s.switchLocked(id)
	s.mu.Unlock()

	if ok {
		s.notify()
	}
}

func (s *Store) switchLocked(id string) bool {
	conv := s.findLocked(id)
	if conv == nil {
		return false
	}
	s.activeID = conv.ID
	s.view = model.CloneMessages(conv.Messages)
	return true
}

// DeleteConversation removes the conversation. Deleting the active one
// switches to the new first conversation, or creates a fresh one when none
// remain. Unknown IDs are ignored.
func (s *Store) DeleteConversation(id string) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}

	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	if s.activeID == id {
		if len(s.conversations) > 0 {
			s.switchLocked(s.conversations[0].ID)
		} else {
			s.createLocked("")
		}
	}
	s.mu.Unlock()

	s.notify()
}

// Rename sets a conversation's title. Unknown IDs are ignored.
func (s *Store) Rename(id, title string) {
	s.mu.Lock()
	conv := s.findLocked(id)
	if conv == nil {
		s.mu.Unlock()
		return
	}
	conv.Title = title
	conv.UpdatedAt = time.Now()
	s.mu.Unlock()

	s.notify()
}

// Restore replaces the whole conversation list, typically with what the
// local store loaded. The first conversation becomes active; an empty list
// gets one fresh conversation.
func (s *Store) Restore(convs []*model.Conversation) {
	s.mu.Lock()
	s.conversations = make([]*model.Conversation, 0, len(convs))
	for _, c := range convs {
		if c != nil {
			s.conversations = append(s.conversations, c.Clone())
		}
	}
	s.streaming = false
	s.inflightID = ""
	if len(s.conversations) > 0 {
		s.switchLocked(s.conversations[0].ID)
	} else {
		s.createLocked("")
	}
	s.mu.Unlock()

	s.notify()
}

// =============================================================================
// MESSAGES
// =============================================================================

// AddMessage appends a message with a fresh ID to the view and mirrors the
// view into the active conversation. The first message of a conversation,
// when sent by the user, becomes its title. Returns a copy of the message.
func (s *Store) AddMessage(role model.Role, content string, opts ...MessageOption) *model.Message {
	msg := model.NewMessage(role, content)
	for _, opt := range opts {
		opt(msg)
	}

	s.mu.Lock()
	s.view = append(s.view, msg)
	if conv := s.activeLocked(); conv != nil {
		conv.Messages = model.CloneMessages(s.view)
		conv.UpdatedAt = time.Now()
		if len(conv.Messages) == 1 && role == model.RoleUser {
			conv.Title = model.DeriveTitle(content)
		}
	}
	out := msg.Clone()
	s.mu.Unlock()

	s.notify()
	return out
}

// UpdateMessage replaces a message's content and bumps its timestamp in the
// view and in the stored conversation. Unknown IDs are ignored.
func (s *Store) UpdateMessage(id, content string) {
	s.mutateMessage(id, func(m *model.Message, now time.Time) {
		m.Content = content
		m.Timestamp = now
	})
}

// UpdateToolCalls replaces a message's tool-call display names. names may
// be a []string or a []any of strings; anything else clears the list.
func (s *Store) UpdateToolCalls(id string, names any) {
	list := coerceNames(names)
	s.mutateMessage(id, func(m *model.Message, now time.Time) {
		m.ToolCalls = append(make([]string, 0, len(list)), list...)
		m.Timestamp = now
	})
}

// FinishStreaming clears the message's streaming flag if it exists and
// always clears the session's streaming state. Safe to call repeatedly.
func (s *Store) FinishStreaming(id string) {
	s.mu.Lock()
	if m := s.viewMessageLocked(id); m != nil {
		m.Streaming = false
	}
	if m := s.storedMessageLocked(id); m != nil {
		m.Streaming = false
	}
	s.streaming = false
	s.inflightID = ""
	s.mu.Unlock()

	s.notify()
}

// BeginStreaming marks the session as streaming into the given message.
func (s *Store) BeginStreaming(id string) {
	s.mu.Lock()
	s.streaming = true
	s.inflightID = id
	s.mu.Unlock()

	s.notify()
}

// UpdateStreaming writes content, and tools when non-nil, to a message that
// is still streaming. An empty non-nil tools clears the list. It reports
// false, writing nothing, once the message has finished or is unknown.
func (s *Store) UpdateStreaming(id, content string, tools []string) bool {
	now := time.Now()

	s.mu.Lock()
	view, stored := s.viewMessageLocked(id), s.storedMessageLocked(id)
	live := (view != nil && view.Streaming) || (view == nil && stored != nil && stored.Streaming)
	if live {
		for _, m := range []*model.Message{view, stored} {
			if m == nil {
				continue
			}
			m.Content = content
			if tools != nil {
				m.ToolCalls = append(make([]string, 0, len(tools)), tools...)
			}
			m.Timestamp = now
		}
	}
	s.mu.Unlock()

	if live {
		s.notify()
	}
	return live
}

// StopStreaming finishes a message and clears its tool calls in one step,
// so no UpdateStreaming lands between the two. Safe to call repeatedly.
func (s *Store) StopStreaming(id string) {
	s.mu.Lock()
	for _, m := range []*model.Message{s.viewMessageLocked(id), s.storedMessageLocked(id)} {
		if m == nil {
			continue
		}
		m.Streaming = false
		m.ToolCalls = []string{}
	}
	s.streaming = false
	s.inflightID = ""
	s.mu.Unlock()

	s.notify()
}

func (s *Store) mutateMessage(id string, fn func(m *model.Message, now time.Time)) {
	now := time.Now()

	s.mu.Lock()
	found := false
	if m := s.viewMessageLocked(id); m != nil {
		fn(m, now)
		found = true
	}
	if m := s.storedMessageLocked(id); m != nil {
		fn(m, now)
		found = true
	}
	s.mu.Unlock()

	if found {
		s.notify()
	}
}

func coerceNames(names any) []string {
	switch v := names.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if name, ok := item.(string); ok {
				out = append(out, name)
			}
		}
		return out
	default:
		return nil
	}
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Conversations returns copies of all conversations, newest first.
func (s *Store) Conversations() []*model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	return out
}

// Conversation returns a copy of the conversation with the given ID, or nil.
func (s *Store) Conversation(id string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(id).Clone()
}

// Active returns a copy of the active conversation, or nil.
func (s *Store) Active() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked().Clone()
}

// ActiveID returns the active conversation's ID.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Messages returns a copy of the active message view.
func (s *Store) Messages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneMessages(s.view)
}

// Message returns a copy of a message in the active view, or nil.
func (s *Store) Message(id string) *model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewMessageLocked(id).Clone()
}

// IsStreaming reports whether a reply is being streamed.
func (s *Store) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// InFlight returns a copy of the message currently being streamed, or nil.
func (s *Store) InFlight() *model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflightID == "" {
		return nil
	}
	if m := s.viewMessageLocked(s.inflightID); m != nil {
		return m.Clone()
	}
	return s.storedMessageLocked(s.inflightID).Clone()
}

// InFlightID returns the ID of the message being streamed, or "".
func (s *Store) InFlightID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflightID
}

// =============================================================================
// CHANGE NOTIFICATION
// =============================================================================

// Subscribe registers fn to run after every mutation. fn runs outside the
// store lock and may read the store. The returned func unsubscribes.
func (s *Store) Subscribe(fn func()) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subsMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// =============================================================================
// LOOKUP HELPERS (caller holds s.mu)
// =============================================================================

func (s *Store) indexLocked(id string) int {
	for i, c := range s.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) findLocked(id string) *model.Conversation {
	if i := s.indexLocked(id); i >= 0 {
		return s.conversations[i]
	}
	return nil
}

func (s *Store) activeLocked() *model.Conversation {
	return s.findLocked(s.activeID)
}

func (s *Store) viewMessageLocked(id string) *model.Message {
	for _, m := range s.view {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// storedMessageLocked finds the stored copy of a message. The active
// conversation is checked first; a reply that is still streaming after the
// user switched away keeps updating the conversation that owns it.
func (s *Store) storedMessageLocked(id string) *model.Message {
	if conv := s.activeLocked(); conv != nil {
		if m := conv.MessageByID(id); m != nil {
			return m
		}
	}
	for _, conv := range s.conversations {
		if conv.ID == s.activeID {
			continue
		}
		if m := conv.MessageByID(id); m != nil {
			return m
		}
	}
	return nil
}
