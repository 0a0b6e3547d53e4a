// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the mcpchat command tree.
//
// Every command shares one App: configuration, logger, conversation store,
// persistence scheduler and streaming controller, wired in NewApp and torn
// down by Close, which flushes any pending history write.
//
// # Commands
//
//	mcpchat                     Full-screen chat (same as "mcpchat tui")
//	mcpchat chat                Line-mode chat with history and slash commands
//	mcpchat ask <text>          One question, answer on stdout
//	mcpchat history list        Saved conversations
//	mcpchat history show N      Print one conversation
//	mcpchat history delete N    Remove a conversation
//	mcpchat history export N    Markdown or JSON export
//	mcpchat history search Q    Find conversations containing Q
//	mcpchat config show|path|init|get|set
//	mcpchat serve               Local echo backend on the default endpoint
//
// # Global Flags
//
//	--config PATH     Config file (default ~/.mcpchat/config.toml)
//	--api-url URL     Chat endpoint override
//	--log-level LVL   trace, debug, info, warn, error
//	--storage NAME    History backend: json or sqlite
//
// Conversation numbers (N) are 1-based positions in "history list", newest
// first.
package cli
