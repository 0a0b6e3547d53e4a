// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/mcpchat/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter writes a conversation in the history file format, so the
// output can be read back as a saved conversation. Options do not apply.
type JSONExporter struct{}

// NewJSONExporter creates a new JSON exporter. The options parameter is
// accepted for symmetry with the other exporters.
func NewJSONExporter(*Options) *JSONExporter {
	return &JSONExporter{}
}

// Export converts a conversation to indented JSON with a trailing newline.
func (e *JSONExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, errNilConversation
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
