// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// MarkdownOptions controls markdown rendering.
type MarkdownOptions struct {
	// Dark selects glamour's dark style, otherwise light.
	Dark bool
	// NoColor renders without ANSI color.
	NoColor bool
	// Width wraps at this many columns (0 = glamour default).
	Width int
}

type rendererKey struct {
	dark    bool
	noColor bool
	width   int
}

var (
	renderersMu sync.Mutex
	renderers   = make(map[rendererKey]*glamour.TermRenderer)
)

// Markdown renders md for the terminal. On any rendering error it returns
// md unchanged.
func Markdown(md string, opts MarkdownOptions) string {
	// Renderers keep per-render state, so rendering holds the cache lock.
	renderersMu.Lock()
	defer renderersMu.Unlock()

	r, err := rendererLocked(opts)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return trimRendered(out)
}

func rendererLocked(opts MarkdownOptions) (*glamour.TermRenderer, error) {
	key := rendererKey{dark: opts.Dark, noColor: opts.NoColor, width: opts.Width}
	if r, ok := renderers[key]; ok {
		return r, nil
	}

	options := []glamour.TermRendererOption{}
	switch {
	case opts.NoColor:
		options = append(options,
			glamour.WithStandardStyle("notty"),
			glamour.WithColorProfile(termenv.Ascii),
		)
	case opts.Dark:
		options = append(options, glamour.WithStandardStyle("dark"))
	default:
		options = append(options, glamour.WithStandardStyle("light"))
	}
	if opts.Width > 0 {
		options = append(options, glamour.WithWordWrap(opts.Width))
	}

	r, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return nil, err
	}
	renderers[key] = r
	return r, nil
}

// trimRendered drops glamour's surrounding blank lines and trailing padding.
func trimRendered(s string) string {
	s = strings.Trim(s, "\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.Join(lines, "\n")
}
