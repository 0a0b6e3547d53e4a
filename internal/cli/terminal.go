// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection for mcpchat commands.
//
// Colors and markdown rendering are only used when stdout is a terminal.
// NO_COLOR disables colors; FORCE_COLOR enables them for pipes.

package cli

import (
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// DefaultTerminalWidth is used when the width cannot be detected.
const DefaultTerminalWidth = 80

// fder is satisfied by *os.File.
type fder interface {
	Fd() uintptr
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(fder)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of w, or DefaultTerminalWidth.
func TerminalWidth(w io.Writer) int {
	f, ok := w.(fder)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return width
}

// ColorsEnabled reports whether colored output should go to w.
// See https://no-color.org/.
func ColorsEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	return IsTerminal(w)
}

// ColorProfile returns the termenv profile to render w with.
func ColorProfile(w io.Writer) termenv.Profile {
	if !ColorsEnabled(w) {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}
