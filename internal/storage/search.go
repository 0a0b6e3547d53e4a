// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strings"

	"github.com/jeranaias/mcpchat/internal/model"
)

// =============================================================================
// SEARCH
// =============================================================================

// Match is a search hit.
type Match struct {
	Index        int // position in the searched list
	Conversation *model.Conversation
	Snippet      string // first matching message, or the title
}

// Search returns conversations whose title or any message content
// contains query, case-insensitively, in list order. An empty query
// matches everything.
func Search(convs []*model.Conversation, query string) []Match {
	query = strings.ToLower(strings.TrimSpace(query))
	var results []Match

	for i, c := range convs {
		if query == "" || strings.Contains(strings.ToLower(c.Title), query) {
			results = append(results, Match{Index: i, Conversation: c, Snippet: c.Title})
			continue
		}
		for _, msg := range c.Messages {
			if strings.Contains(strings.ToLower(msg.Content), query) {
				results = append(results, Match{Index: i, Conversation: c, Snippet: snippet(msg.Content, query)})
				break
			}
		}
	}

	return results
}

// snippet returns up to 60 runes of content around the first match.
func snippet(content, query string) string {
	const width = 60
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	lower := []rune(strings.ToLower(content))

	at := indexRunes(lower, []rune(query))
	if at < 0 || len(runes) <= width {
		if len(runes) > width {
			return string(runes[:width-3]) + "..."
		}
		return content
	}

	start := at - width/3
	if start < 0 {
		start = 0
	}
	end := start + width
	if end > len(runes) {
		end = len(runes)
		if end-width >= 0 {
			start = end - width
		}
	}

	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
