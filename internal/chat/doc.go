// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the in-memory conversation state shared by every front
// end: the conversation list, which one is active, and the active message
// view the UI renders.
//
// The active view and each conversation's stored message list are separate
// copies. Every mutation updates both under one lock, so a reader (the UI,
// or a persistence write) never observes them out of sync.
//
// Unknown conversation or message IDs are silently ignored: this is UI
// state, and a stale ID from a closed view is not an error.
//
// # Usage
//
//	store := chat.NewStore()
//	store.CreateConversation("")
//	msg := store.AddMessage(model.RoleUser, "Hello")
//	store.UpdateMessage(msg.ID, "Hello!")
package chat
