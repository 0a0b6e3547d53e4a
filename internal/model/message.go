// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole converts s into a Role, rejecting anything outside the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown message role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// UnmarshalText rejects unknown roles when reviving stored history.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Streaming stays true from creation until the stream is finalized.
	Streaming bool `json:"streaming"`

	// ToolCalls holds display names of tools running for this turn. It is
	// transient UI state but persisted as-is.
	ToolCalls []string `json:"toolCalls"`
}

// NewMessage creates a message with a fresh ID and the current time.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        NewMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		ToolCalls: []string{},
	}
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.ToolCalls = append(make([]string, 0, len(m.ToolCalls)), m.ToolCalls...)
	return &c
}

// Preview returns content cut to maxLen runes with the ellipsis inside the limit.
func (m *Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return m.Content == ""
}

// =============================================================================
// IDS
// =============================================================================

// NewMessageID returns a process-unique message ID.
func NewMessageID() string {
	return "msg_" + newID()
}

// NewConversationID returns a process-unique conversation ID.
func NewConversationID() string {
	return "conv_" + newID()
}

// newID uses UUIDv7: time ordered, with random bits so rapid creation
// cannot collide.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
