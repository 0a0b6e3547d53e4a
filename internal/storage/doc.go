// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides local conversation persistence for mcpchat.
//
// The whole conversation list is saved as one unit, either as a single
// JSON document or in a SQLite database, after a short quiet period
// following the last change.
//
// # Key Types
//
//   - Store: Load/Save contract implemented by FileStore and SQLiteStore
//   - Scheduler: debounced writer that coalesces bursts of changes
//
// # Usage
//
//	st, err := storage.OpenStore(storage.Options{Backend: "json", Path: path})
//	storage.LoadInto(st, chatStore, log)
//
//	sched := storage.NewScheduler(st, chatStore.Conversations, time.Second, log)
//	unsubscribe := chatStore.Subscribe(sched.Schedule)
//	defer sched.Stop()
//
// # Storage Location
//
// By default history lives in ~/.mcpchat/conversations.json (or
// conversations.db for the sqlite backend).
package storage
