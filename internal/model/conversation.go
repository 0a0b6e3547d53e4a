// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/jeranaias/mcpchat/internal/util"
)

const (
	// DefaultTitle is used for conversations created without a title.
	DefaultTitle = "New Chat"

	// TitleMaxRunes is how much of the first user message becomes the title.
	TitleMaxRunes = 30
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a complete chat conversation with history and metadata.
type Conversation struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Messages  []*Message `json:"messages"`
}

// NewConversation creates an empty conversation. An empty title falls back
// to DefaultTitle.
func NewConversation(title string) *Conversation {
	if title == "" {
		title = DefaultTitle
	}
	now := time.Now()
	return &Conversation{
		ID:        NewConversationID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
	}
}

// DeriveTitle builds a title from the first user message.
func DeriveTitle(content string) string {
	return util.PrefixRunes(content, TitleMaxRunes)
}

// MessageByID returns the message with the given ID, or nil.
func (c *Conversation) MessageByID(id string) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// LastAssistantMessage returns the most recent assistant message.
func (c *Conversation) LastAssistantMessage() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return c.Messages[i]
		}
	}
	return nil
}

// Preview returns a short preview of the first user message.
func (c *Conversation) Preview(maxLen int) string {
	for _, msg := range c.Messages {
		if msg.Role == RoleUser && msg.Content != "" {
			return msg.Preview(maxLen)
		}
	}
	return "Empty conversation"
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Messages = CloneMessages(c.Messages)
	return &clone
}

// CloneMessages deep-copies a message list.
func CloneMessages(msgs []*Message) []*Message {
	out := make([]*Message, len(msgs))
	for i, msg := range msgs {
		out[i] = msg.Clone()
	}
	return out
}
