// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

// Ellipsis is appended to text that was cut short.
const Ellipsis = "..."

// PrefixRunes returns the first n runes of s followed by Ellipsis when s is
// longer than n runes, and s unchanged otherwise. The marker is added on top
// of the n runes, so the result can be n+3 runes long.
func PrefixRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + Ellipsis
}

// TruncateRunes truncates s to at most maxRunes runes, with the ellipsis
// counted inside the limit.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= len(Ellipsis) {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-len(Ellipsis)]) + Ellipsis
}

// RuneLen returns the number of runes in s.
func RuneLen(s string) int {
	return len([]rune(s))
}
