// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify provides the toast and confirmation services shared by
// the mcpchat front ends.
//
// Both are plain service objects: the command wiring creates one Bus and
// one Confirmer and hands them to whoever needs them.
//
// # Key Types
//
//   - Bus: short-lived toasts with auto-dismiss and bounded subscribers
//   - Confirmer: asks the user to confirm a destructive action
//   - PromptConfirmer: line-prompt confirmation for the REPL
//   - Dialog: confirmation answered asynchronously by the TUI
//   - StaticConfirmer: fixed answer for scripts and --yes
package notify
