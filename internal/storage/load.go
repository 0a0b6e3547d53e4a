// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"github.com/rs/zerolog"

	"github.com/jeranaias/mcpchat/internal/chat"
	"github.com/jeranaias/mcpchat/internal/model"
)

// LoadInto restores saved history into cs. A load failure is logged and
// leaves cs with one fresh conversation. Messages saved mid-stream are
// revived as finished. Returns the number of conversations restored.
func LoadInto(st Store, cs *chat.Store, log zerolog.Logger) int {
	log = log.With().Str("component", "storage").Logger()

	convs, err := st.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load conversations, starting fresh")
		cs.Restore(nil)
		return 0
	}

	for _, c := range convs {
		revive(c)
	}
	cs.Restore(convs)
	log.Debug().Int("conversations", len(convs)).Msg("conversations loaded")
	return len(convs)
}

func revive(c *model.Conversation) {
	if c.Title == "" {
		c.Title = model.DefaultTitle
	}
	if c.Messages == nil {
		c.Messages = make([]*model.Message, 0)
	}
	for _, m := range c.Messages {
		m.Streaming = false
		if m.ToolCalls == nil {
			m.ToolCalls = []string{}
		}
	}
}
