// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Conversation: ordered messages plus title and timestamps
//   - Message: one turn with role, content, streaming flag and tool-call names
//   - Role: closed set of message senders (user, assistant, system)
//
// The JSON tags on these types are the on-disk history format, so renaming a
// field is a storage migration.
//
// # Usage
//
//	conv := model.NewConversation("")
//	msg := model.NewMessage(model.RoleUser, "Hello!")
//	conv.Messages = append(conv.Messages, msg)
package model
