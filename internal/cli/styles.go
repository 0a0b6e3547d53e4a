// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styles for line-mode commands.

package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles and headers.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// PromptStyle colors the chat prompt.
	PromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	// RoleStyle labels message authors.
	RoleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")). // Purple
			Bold(true)

	// SuccessStyle is used for success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	// WarningStyle is used for warnings and cancellations.
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// DimStyle is used for hints, timestamps and tool lines.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	// SeparatorStyle is used for visual separators.
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// =============================================================================
// HELPERS
// =============================================================================

// Painter renders styles only when the destination supports color.
type Painter struct {
	color bool
}

// NewPainter returns a Painter for w.
func NewPainter(w io.Writer) Painter {
	return Painter{color: ColorsEnabled(w)}
}

// Render applies style when colors are on.
func (p Painter) Render(style lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return style.Render(text)
}

// Separator renders a horizontal rule of the given width.
func (p Painter) Separator(width int) string {
	if width <= 0 {
		width = 40
	}
	return p.Render(SeparatorStyle, strings.Repeat("─", width))
}
