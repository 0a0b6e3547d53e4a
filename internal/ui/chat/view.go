// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	msgmodel "github.com/jeranaias/mcpchat/internal/model"
	"github.com/jeranaias/mcpchat/internal/ui/styles"
)

// View renders the screen.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderInput(),
		m.renderStatusBar(),
	)
	body = m.theme.Main.Render(body)

	screen := body
	if m.sidebarVisible() {
		sidebar := m.theme.Sidebar.
			Height(m.height).
			Render(renderSidebar(m.theme, m.convs, m.activeID, sidebarWidth, m.height))
		screen = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, body)
	}

	if m.pending != nil {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.renderDialog(), lipgloss.WithWhitespaceChars(" "))
	}
	return screen
}

func (m Model) renderHeader() string {
	title := msgmodel.DefaultTitle
	for _, c := range m.convs {
		if c.ID == m.activeID {
			title = c.Title
			break
		}
	}
	left := m.theme.HeaderTitle.Render("mcpchat") + "  " + fitWidth(title, m.mainWidth()-24)
	if m.streaming {
		left += "  " + m.spinner.View() + " streaming"
	}
	return m.theme.Header.Width(max(m.mainWidth(), 1)).Render(left)
}

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(max(m.mainWidth(), 1)).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	if m.toast != nil {
		level := string(m.toast.Level)
		return m.theme.Toast(level).Render(styles.LevelIndicator(level) + " " + fitWidth(m.toast.Message, m.mainWidth()-6))
	}
	return m.theme.Hint.Render(fitWidth(helpLine(m.keyMap), m.mainWidth()))
}

func (m Model) renderDialog() string {
	req := *m.pending
	var b strings.Builder
	b.WriteString(m.theme.DialogTitle.Render(req.Title))
	b.WriteString("\n\n")
	if req.Message != "" {
		b.WriteString(req.Message)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "[y] %s    [n] %s", req.ConfirmText, req.CancelText)
	return m.theme.Dialog.Render(b.String())
}

// helpLine lists the short help bindings.
func helpLine(k KeyMap) string {
	parts := make([]string, 0, len(k.ShortHelp()))
	for _, b := range k.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

// =============================================================================
// SIDEBAR
// =============================================================================

// renderSidebar lists conversations newest first, numbered, with the
// active one highlighted. Rows that do not fit in height are dropped from
// the bottom, keeping the active row visible.
func renderSidebar(theme *styles.Theme, convs []*msgmodel.Conversation, activeID string, width, height int) string {
	if len(convs) == 0 {
		return theme.SidebarMeta.Render(fitWidth("No conversations", width))
	}

	rows := make([]string, 0, len(convs))
	activeRow := 0
	for i, c := range convs {
		label := fitWidth(fmt.Sprintf("%d %s", i+1, c.Title), width)
		if c.ID == activeID {
			activeRow = i
			rows = append(rows, theme.SidebarSelected.Render(label))
			continue
		}
		rows = append(rows, theme.SidebarItem.Render(label))
	}

	if height > 0 && len(rows) > height {
		start := 0
		if activeRow >= height {
			start = activeRow - height + 1
		}
		rows = rows[start : start+height]
	}
	return strings.Join(rows, "\n")
}

// fitWidth truncates s to width cells and pads it to exactly width.
func fitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "...")
	}
	return runewidth.FillRight(s, width)
}

// =============================================================================
// MESSAGES
// =============================================================================

func (m Model) renderMessages(width int) string {
	return renderMessages(m.theme, m.messages, width, m.markdown, m.rendered)
}

// renderMessages draws the active message view. Finished assistant answers
// go through markdown when enabled; streaming ones are shown as plain text
// so partial markdown does not jump around.
func renderMessages(theme *styles.Theme, msgs []*msgmodel.Message, width int, markdown bool, cache *renderCache) string {
	if len(msgs) == 0 {
		return theme.Empty.Render("Send a message to start.")
	}
	if width < 10 {
		width = 10
	}

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}

		label := theme.SystemLabel
		switch msg.Role {
		case msgmodel.RoleUser:
			label = theme.UserLabel
		case msgmodel.RoleAssistant:
			label = theme.AssistantLabel
		}
		b.WriteString(label.Render(msg.Role.DisplayName()))
		b.WriteString(" ")
		b.WriteString(theme.Timestamp.Render(msg.Timestamp.Format("15:04")))
		b.WriteString("\n")

		if len(msg.ToolCalls) > 0 {
			b.WriteString(theme.ToolLine.Render("[tools] " + strings.Join(msg.ToolCalls, ", ")))
			b.WriteString("\n")
		}

		switch {
		case msg.Streaming && msg.Content == "":
			b.WriteString(theme.Empty.Render("thinking..."))
		case markdown && msg.Role == msgmodel.RoleAssistant && !msg.Streaming:
			b.WriteString(cache.render(msg, width, theme.IsDark))
		default:
			b.WriteString(theme.MessageBody.Width(width).Render(msg.Content))
		}
	}
	return b.String()
}

// lastAnswer returns the newest non-empty assistant content.
func lastAnswer(msgs []*msgmodel.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == msgmodel.RoleAssistant && msgs[i].Content != "" {
			return msgs[i].Content
		}
	}
	return ""
}

// =============================================================================
// RENDER CACHE
// =============================================================================

// renderCache keeps markdown output per message so redraws during another
// stream do not re-render every finished answer.
type renderCache struct {
	mu      sync.Mutex
	entries map[string]renderEntry
}

type renderEntry struct {
	content string
	width   int
	dark    bool
	out     string
}

func newRenderCache() *renderCache {
	return &renderCache{entries: make(map[string]renderEntry)}
}

func (c *renderCache) render(msg *msgmodel.Message, width int, dark bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[msg.ID]; ok && e.content == msg.Content && e.width == width && e.dark == dark {
		return e.out
	}
	out := styles.Markdown(msg.Content, styles.MarkdownOptions{Dark: dark, Width: width})
	c.entries[msg.ID] = renderEntry{content: msg.Content, width: width, dark: dark, out: out}
	return out
}
