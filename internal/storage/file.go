// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/mcpchat/internal/model"
	"github.com/jeranaias/mcpchat/internal/util"
)

// FileStore keeps the whole conversation list in one JSON document.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path. The file and
// its directory are created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document. A missing file is an empty history.
func (s *FileStore) Load() ([]*model.Conversation, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*model.Conversation{}, nil
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var convs []*model.Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return compact(convs), nil
}

// Save writes the list atomically with owner-only permissions.
func (s *FileStore) Save(convs []*model.Conversation) error {
	if convs == nil {
		convs = []*model.Conversation{}
	}
	data, err := json.Marshal(convs)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// Close is a no-op; the file is not held open.
func (s *FileStore) Close() error {
	return nil
}

// compact drops null entries and fills nil slices so loaded data has the
// same shape as freshly created data.
func compact(convs []*model.Conversation) []*model.Conversation {
	out := make([]*model.Conversation, 0, len(convs))
	for _, c := range convs {
		if c == nil {
			continue
		}
		msgs := make([]*model.Message, 0, len(c.Messages))
		for _, m := range c.Messages {
			if m == nil {
				continue
			}
			if m.ToolCalls == nil {
				m.ToolCalls = []string{}
			}
			msgs = append(msgs, m)
		}
		c.Messages = msgs
		out = append(out, c)
	}
	return out
}
