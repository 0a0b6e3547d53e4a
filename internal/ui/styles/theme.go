// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds all the styled components for the application.
type Theme struct {
	Name         string
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// LAYOUT
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	Sidebar     lipgloss.Style
	Main        lipgloss.Style

	// ==========================================================================
	// SIDEBAR
	// ==========================================================================

	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style
	SidebarMeta     lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	MessageBody    lipgloss.Style
	Timestamp      lipgloss.Style
	ToolLine       lipgloss.Style
	Empty          lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	StatusBar      lipgloss.Style
	Hint           lipgloss.Style
	Spinner        lipgloss.Style
	Dialog         lipgloss.Style
	DialogTitle    lipgloss.Style
}

// ResolveDark reports whether name means a dark background. Unknown names
// are treated as auto.
func ResolveDark(name string) bool {
	switch name {
	case ThemeDark:
		return true
	case ThemeLight:
		return false
	default:
		return termenv.HasDarkBackground()
	}
}

// NewTheme creates a theme for name. It also tells lipgloss which
// background to resolve adaptive colors against, so a forced theme wins
// over detection.
func NewTheme(name string) *Theme {
	if name == "" {
		name = ThemeAuto
	}
	isDark := ResolveDark(name)
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		Name:         name,
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	// Layout
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)

	t.Main = lipgloss.NewStyle().
		PaddingLeft(1)

	// Sidebar
	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.SidebarSelected = lipgloss.NewStyle().
		Foreground(Purple).
		Background(SelectionBg).
		Bold(true)

	t.SidebarMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.AssistantLabel = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.SystemLabel = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.ToolLine = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	t.Empty = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Input and status
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.Hint = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.Dialog = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 2)

	t.DialogTitle = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)
}

// Toast returns the status-line style for a toast level.
func (t *Theme) Toast(level string) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(LevelColor(level)).
		Bold(level == "error")
}
