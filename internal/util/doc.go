// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across mcpchat.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//   - PrefixRunes: rune-safe prefix with an ellipsis marker (conversation titles)
//   - TruncateRunes: rune-safe truncation that fits the marker inside the limit
//
// # Usage
//
//	title := util.PrefixRunes(content, 30)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
