// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

// =============================================================================
// THEME TESTS
// =============================================================================

func TestNewTheme_ForcedBackgrounds(t *testing.T) {
	dark := NewTheme(ThemeDark)
	if !dark.IsDark {
		t.Error("dark theme should report IsDark")
	}
	light := NewTheme(ThemeLight)
	if light.IsDark {
		t.Error("light theme should not report IsDark")
	}
}

func TestNewTheme_EmptyNameIsAuto(t *testing.T) {
	theme := NewTheme("")
	if theme.Name != ThemeAuto {
		t.Errorf("Name = %q, want %q", theme.Name, ThemeAuto)
	}
}

func TestNewTheme_StylesRender(t *testing.T) {
	theme := NewTheme(ThemeDark)
	for want, got := range map[string]string{
		"You":       theme.UserLabel.Render("You"),
		"Assistant": theme.AssistantLabel.Render("Assistant"),
		"search":    theme.ToolLine.Render("search"),
		"Delete?":   theme.Dialog.Render("Delete?"),
	} {
		if !strings.Contains(stripANSI(got), want) {
			t.Errorf("rendered %q does not contain %q", got, want)
		}
	}
}

func TestLevelIndicator(t *testing.T) {
	tests := map[string]string{
		"success": "[OK]",
		"warning": "[!]",
		"error":   "[X]",
		"info":    "[i]",
		"":        "[i]",
	}
	for level, want := range tests {
		if got := LevelIndicator(level); got != want {
			t.Errorf("LevelIndicator(%q) = %q, want %q", level, got, want)
		}
	}
}

func TestLevelColor(t *testing.T) {
	if LevelColor("error") != Rose {
		t.Error("error toasts should use Rose")
	}
	if LevelColor("success") != Emerald {
		t.Error("success toasts should use Emerald")
	}
	if LevelColor("anything") != Cyan {
		t.Error("unknown levels should use Cyan")
	}
}

// =============================================================================
// MARKDOWN TESTS
// =============================================================================

func TestMarkdown_NoColorKeepsText(t *testing.T) {
	out := Markdown("# Title\n\nSome **bold** text.", MarkdownOptions{NoColor: true, Width: 60})

	if !strings.Contains(out, "Title") {
		t.Errorf("heading missing from %q", out)
	}
	if !strings.Contains(out, "bold") {
		t.Errorf("body missing from %q", out)
	}
	if strings.HasPrefix(out, "\n") || strings.HasSuffix(out, "\n") {
		t.Errorf("output should be trimmed, got %q", out)
	}
}

func TestMarkdown_ReusesRenderers(t *testing.T) {
	opts := MarkdownOptions{Dark: true, Width: 40}
	Markdown("a", opts)
	Markdown("b", opts)

	renderersMu.Lock()
	defer renderersMu.Unlock()
	if _, ok := renderers[rendererKey{dark: true, width: 40}]; !ok {
		t.Error("renderer should be cached by options")
	}
}

func TestTrimRendered(t *testing.T) {
	got := trimRendered("\n\n  hello   \n  world  \n\n")
	if got != "  hello\n  world" {
		t.Errorf("trimRendered = %q", got)
	}
}

// stripANSI removes SGR sequences for assertions on rendered text.
func stripANSI(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc && r == 'm':
			inEsc = false
		case !inEsc:
			b.WriteRune(r)
		}
	}
	return b.String()
}
