// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen chat interface.
//
// The Model never owns conversation state. It renders snapshots of a
// chat.Store and re-reads the store whenever it signals a change. Replies
// are streamed by a session.Controller running in a tea.Cmd goroutine, so
// the UI keeps drawing while a reply arrives.
//
// # Layout
//
//	+-------------+--------------------------------------+
//	| sidebar     | header (title, streaming spinner)    |
//	| 1 New Chat  | messages (viewport)                  |
//	| 2 Research  |                                      |
//	|             | > input                              |
//	|             | status line / latest toast           |
//	+-------------+--------------------------------------+
//
// # Store Changes
//
// Store subscribers run inside the controller's critical section, so the
// subscriber installed here only does a non-blocking send on a one-slot
// channel. A waiting tea.Cmd turns that signal into a storeChangedMsg.
package chat
