// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/mcpchat/internal/model"
	"github.com/jeranaias/mcpchat/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a conversation into one file format.
type Exporter interface {
	Export(conv *model.Conversation) ([]byte, error)
	// FileExtension includes the leading dot.
	FileExtension() string
	MimeType() string
}

// Format names accepted by ForFormat.
const (
	FormatMarkdown = "md"
	FormatJSON     = "json"
	FormatHTML     = "html"
)

// ErrUnknownFormat is returned by ForFormat for an unsupported name.
var ErrUnknownFormat = errors.New("unknown export format")

// errNilConversation is returned when exporting nothing.
var errNilConversation = errors.New("conversation is nil")

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options controls what the exporters include.
type Options struct {
	// IncludeMetadata adds creation details up front (YAML frontmatter in
	// Markdown) and an "Exported from" footer.
	IncludeMetadata bool
	// IncludeTimestamps stamps each message heading with its time.
	IncludeTimestamps bool
	// Theme picks the HTML palette, "light" or "dark".
	Theme string
}

// DefaultOptions keeps per-message times and the dark HTML palette.
func DefaultOptions() *Options {
	return &Options{IncludeTimestamps: true, Theme: "dark"}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ForFormat returns the exporter for a format name. "markdown" and "htm"
// are accepted as aliases, case-insensitively.
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FormatMarkdown, "markdown":
		return NewMarkdownExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(opts), nil
	case FormatHTML, "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("%w %q (want md, json or html)", ErrUnknownFormat, name)
	}
}

// Filename builds a default file name for conv, stamped with now.
func Filename(conv *model.Conversation, exporter Exporter, now time.Time) string {
	return fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(conv.Title),
		now.Format("20060102_150405"),
		exporter.FileExtension(),
	)
}

// ExportToDir writes conv into dir under Filename and returns the path.
func ExportToDir(conv *model.Conversation, exporter Exporter, dir string) (string, error) {
	data, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", exporter.FileExtension(), err)
	}
	path := filepath.Join(dir, Filename(conv, exporter, time.Now()))
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// =============================================================================
// NAMES AND TIMES
// =============================================================================

const maxFilenameTitle = 50

// sanitizeFilename turns a title into a file name fragment. Whitespace
// becomes '_'. Reserved path characters and control characters become '-'.
func sanitizeFilename(title string) string {
	runes := []rune(strings.TrimSpace(title))
	if len(runes) == 0 {
		return "conversation"
	}
	if len(runes) > maxFilenameTitle {
		runes = runes[:maxFilenameTitle]
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			return '_'
		case r < 0x20 || r == 0x7f || strings.ContainsRune(`/\:*?"<>|`, r):
			return '-'
		}
		return r
	}, string(runes))
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
