// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/mcpchat/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders a conversation as Markdown. With metadata on the document
// opens with YAML frontmatter, otherwise with the title heading.
func (e *MarkdownExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, errNilConversation
	}

	var b strings.Builder
	if e.options.IncludeMetadata {
		writeFrontmatter(&b, conv)
	}
	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(conv.Title))
	if e.options.IncludeMetadata {
		fmt.Fprintf(&b, "- **Created**: %s\n- **Last Updated**: %s\n- **Messages**: %d\n\n---\n\n",
			formatTimestamp(conv.CreatedAt), formatTimestamp(conv.UpdatedAt), len(conv.Messages))
	}

	for i, msg := range conv.Messages {
		if i > 0 {
			b.WriteString("---\n\n")
		}
		e.writeMessage(&b, msg)
	}

	if e.options.IncludeMetadata {
		fmt.Fprintf(&b, "---\n\n*Exported from mcpchat on %s*\n", time.Now().Format("January 2, 2006 at 3:04 PM"))
	}
	return []byte(b.String()), nil
}

func writeFrontmatter(b *strings.Builder, conv *model.Conversation) {
	b.WriteString("---\n")
	fmt.Fprintf(b, "title: %s\n", escapeYAML(conv.Title))
	fmt.Fprintf(b, "id: %s\n", escapeYAML(conv.ID))
	fmt.Fprintf(b, "date: %s\n", conv.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(b, "updated: %s\n", conv.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(b, "messages: %d\n", len(conv.Messages))
	b.WriteString("generator: mcpchat\n---\n\n")
}

// writeMessage writes the role heading, the tool line if any, and the body.
func (e *MarkdownExporter) writeMessage(b *strings.Builder, msg *model.Message) {
	heading := msg.Role.DisplayName()
	if e.options.IncludeTimestamps {
		heading += " <sub>" + formatShortTimestamp(msg.Timestamp) + "</sub>"
	}
	fmt.Fprintf(b, "### %s\n\n", heading)
	if len(msg.ToolCalls) > 0 {
		fmt.Fprintf(b, "_Tools: %s_\n\n", strings.Join(msg.ToolCalls, ", "))
	}
	b.WriteString(formatMessageContent(msg))
	b.WriteString("\n\n")
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatMessageContent trims the content. Replies are already Markdown.
func formatMessageContent(msg *model.Message) string {
	content := strings.TrimSpace(msg.Content)
	if content == "" && msg.Streaming {
		return "_(no reply yet)_"
	}
	return content
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// markdownEscaper escapes what would break a heading line.
var markdownEscaper = strings.NewReplacer(
	"#", `\#`,
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// escapeYAML double-quotes a frontmatter value when YAML would read it as
// anything but a plain string.
func escapeYAML(s string) string {
	plain := !strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") &&
		strings.TrimSpace(s) == s
	if plain {
		return s
	}
	return `"` + yamlEscaper.Replace(s) + `"`
}

var yamlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
)
