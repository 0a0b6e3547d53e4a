// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders saved conversations as files.
//
// # Supported Formats
//
//   - md:   Markdown, optionally with YAML frontmatter
//   - json: The history file format, readable back as a conversation
//   - html: A standalone page with embedded CSS
//
// # Usage
//
//	exporter, err := export.ForFormat("html", export.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	data, err := exporter.Export(conv)
//
// Export into a directory under a generated name:
//
//	path, err := export.ExportToDir(conv, exporter, ".")
package export
