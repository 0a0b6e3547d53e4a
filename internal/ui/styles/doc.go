// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the mcpchat TUI.

# Color System (colors.go)

All colors are Lip Gloss AdaptiveColor values, so they follow the terminal's
light or dark background:

  - Purple - assistant messages, the selected conversation
  - Cyan - brand, user messages, prompts
  - Emerald - success toasts
  - Amber - warnings, tool activity
  - Rose - errors, the confirm dialog border

# Theme (theme.go)

NewTheme builds every style the TUI uses for a theme name: "dark", "light"
or "auto". Auto asks termenv whether the background is dark.

# Markdown (markdown.go)

Markdown renders a finished assistant answer through glamour, matching the
theme's background. Rendering errors fall back to the raw text.
*/
package styles
