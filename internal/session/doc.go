// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session streams assistant replies from the chat endpoint into a
// conversation store.
//
// A Controller owns at most one open stream. Send appends the user message
// and a streaming assistant placeholder, then applies each server-sent
// event to the placeholder as it arrives: text deltas grow the content,
// tool-call lists replace the running-tools display, and tool results are
// spliced into the content once their escapes are normalized.
//
// # Outcomes
//
//   - Stream exhausted: streaming finished, OnComplete called, full text returned
//   - Stop or context canceled: content kept, accumulated text returned, no error
//   - Any other failure: content replaced by FailureNotice, OnError called,
//     error returned
//
// # Usage
//
//	ctrl := session.NewController(store, session.WithLogger(log))
//	go func() {
//	    text, err := ctrl.Send(ctx, "what is 6x7?", session.SendOptions{
//	        OnChunk: func(delta, full string) { fmt.Print(delta) },
//	    })
//	}()
//	...
//	ctrl.Stop()
package session
