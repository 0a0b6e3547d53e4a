// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/mcpchat/internal/model"
)

var (
	codeBlockRegex  = regexp.MustCompile("```([a-zA-Z0-9_+-]*)\n([\\s\\S]*?)```")
	inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// pageView is the data behind pageTemplate.
type pageView struct {
	Title    string
	Theme    string
	Metadata bool
	Created  string
	Exported string
	Messages []messageView
}

type messageView struct {
	Class string
	Role  string
	Time  string
	Tools []string
	Body  template.HTML
}

// Export renders a conversation as a single HTML page with inline styles.
func (e *HTMLExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, errNilConversation
	}

	view := pageView{
		Title:    conv.Title,
		Theme:    e.theme(),
		Metadata: e.options.IncludeMetadata,
		Created:  formatTimestamp(conv.CreatedAt),
		Exported: time.Now().Format("January 2, 2006 at 3:04 PM"),
		Messages: make([]messageView, 0, len(conv.Messages)),
	}
	for _, msg := range conv.Messages {
		mv := messageView{
			Class: roleClass(msg.Role),
			Role:  msg.Role.DisplayName(),
			Tools: msg.ToolCalls,
			// formatContent escapes before adding markup.
			Body: template.HTML(formatContent(formatMessageContent(msg))),
		}
		if e.options.IncludeTimestamps {
			mv.Time = formatShortTimestamp(msg.Timestamp)
		}
		view.Messages = append(view.Messages, mv)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// theme returns the body theme. Anything but "light" renders dark.
func (e *HTMLExporter) theme() string {
	if e.options.Theme == "light" {
		return "light"
	}
	return "dark"
}

// =============================================================================
// PAGE TEMPLATE
// =============================================================================

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta name="generator" content="mcpchat">
    <title>{{.Title}}</title>
` + htmlCSS + `</head>
<body class="{{.Theme}}-theme">
    <div class="container">
        <header class="header">
            <h1>{{.Title}}</h1>
{{- if .Metadata}}
            <div class="metadata">
                <span><strong>Created:</strong> {{.Created}}</span>
                <span><strong>Messages:</strong> {{len .Messages}}</span>
            </div>
{{- end}}
        </header>
        <main class="conversation">
{{- range .Messages}}
            <div class="message {{.Class}}-message">
                <div class="message-header">
                    <span class="role-label">{{.Role}}</span>
{{- if .Time}}
                    <span class="timestamp">{{.Time}}</span>
{{- end}}
                </div>
{{- if .Tools}}
                <div class="tools">Tools: {{range $i, $t := .Tools}}{{if $i}}, {{end}}<code>{{$t}}</code>{{end}}</div>
{{- end}}
                <div class="message-content">
{{.Body}}
                </div>
            </div>
{{- end}}
        </main>
{{- if .Metadata}}
        <footer class="footer">
            <p>Exported from <strong>mcpchat</strong> on {{.Exported}}</p>
        </footer>
{{- end}}
    </div>
</body>
</html>
`))

// roleClass maps a role to its CSS class prefix.
func roleClass(r model.Role) string {
	if r.Valid() {
		return string(r)
	}
	return "unknown"
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

// formatContent escapes message text, turns fenced and inline code into
// markup and wraps the remaining lines in paragraphs.
func formatContent(content string) string {
	content = html.EscapeString(content)

	// The language name was escaped with the rest of the content.
	content = codeBlockRegex.ReplaceAllStringFunc(content, func(match string) string {
		parts := codeBlockRegex.FindStringSubmatch(match)
		lang, code := parts[1], parts[2]

		langLabel := ""
		if lang != "" {
			langLabel = fmt.Sprintf("<div class=\"code-lang\">%s</div>", lang)
		}
		code = strings.ReplaceAll(strings.TrimSpace(code), "\n", "&#10;")
		return fmt.Sprintf("\n<div class=\"code-block\">%s<pre><code class=\"language-%s\">%s</code></pre></div>\n",
			langLabel, lang, code)
	})

	var formatted []string
	inParagraph := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, "<div class=\"code-block\">") {
			if inParagraph {
				formatted = append(formatted, "</p>")
				inParagraph = false
			}
			formatted = append(formatted, line)
			continue
		}

		if line == "" {
			if inParagraph {
				formatted = append(formatted, "</p>")
				inParagraph = false
			}
			continue
		}

		line = inlineCodeRegex.ReplaceAllString(line, "<code class=\"inline-code\">$1</code>")
		if !inParagraph {
			formatted = append(formatted, "<p>"+line)
			inParagraph = true
		} else {
			formatted = append(formatted, "<br>"+line)
		}
	}

	if inParagraph {
		formatted = append(formatted, "</p>")
	}

	return strings.Join(formatted, "\n")
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

// htmlCSS mirrors the terminal palette in ui/styles.
const htmlCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font: 15px/1.6 system-ui, sans-serif; padding: 24px; background: var(--surface); color: var(--text); }
        code, pre { font-family: ui-monospace, "SF Mono", Menlo, monospace; }

        .dark-theme  { --surface: #1E1E2E; --panel: #181825; --overlay: #313244; --text: #CDD6F4; --muted: #6C7086; --user: #22D3EE; --assistant: #A78BFA; --system: #FBBF24; }
        .light-theme { --surface: #FFFFFF; --panel: #F5F5F5; --overlay: #E5E5E5; --text: #1F2937; --muted: #9CA3AF; --user: #0891B2; --assistant: #7C3AED; --system: #D97706; }

        .container { max-width: 880px; margin: 0 auto; background: var(--panel); border-radius: 10px; overflow: hidden; }
        .header { padding: 24px 28px; background: var(--overlay); }
        .header h1 { font-size: 24px; margin-bottom: 6px; }
        .metadata { display: flex; gap: 16px; font-size: 13px; color: var(--muted); }
        .conversation { padding: 20px 28px; }

        .message { margin-bottom: 18px; padding: 12px 16px; border-left: 3px solid var(--assistant); }
        .user-message { border-left-color: var(--user); }
        .system-message, .unknown-message { border-left-color: var(--system); }
        .message-header { display: flex; justify-content: space-between; margin-bottom: 6px; }
        .role-label { font-weight: 600; }
        .user-message .role-label { color: var(--user); }
        .assistant-message .role-label { color: var(--assistant); }
        .system-message .role-label { color: var(--system); }
        .timestamp, .tools, .footer { font-size: 12px; color: var(--muted); }
        .message-content p { margin-bottom: 10px; }

        .code-block { margin: 10px 0; background: var(--surface); border-radius: 6px; overflow-x: auto; }
        .code-lang { padding: 4px 12px; font-size: 11px; color: var(--muted); border-bottom: 1px solid var(--overlay); }
        .code-block pre { padding: 10px 12px; white-space: pre; }
        .inline-code { background: var(--overlay); padding: 1px 5px; border-radius: 4px; }
        .footer { padding: 14px 28px; }

        @media (max-width: 720px) { body { padding: 8px; } .header, .conversation, .footer { padding: 14px; } }
    </style>
`
