// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/mcpchat/internal/model"
)

// =============================================================================
// SCHEMA
// =============================================================================

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	position   INTEGER NOT NULL,
	title      TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT NOT NULL,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	timestamp       TEXT NOT NULL,
	streaming       INTEGER NOT NULL DEFAULT 0,
	tool_calls      TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (conversation_id, id)
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, position);
`

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore keeps the conversation list in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Load reads every conversation in saved order with its messages.
func (s *SQLiteStore) Load() ([]*model.Conversation, error) {
	rows, err := s.db.Query(`SELECT id, title, created_at, updated_at FROM conversations ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	convs := make([]*model.Conversation, 0)
	byID := make(map[string]*model.Conversation)
	for rows.Next() {
		var (
			c                model.Conversation
			created, updated string
		)
		if err := rows.Scan(&c.ID, &c.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		c.Messages = make([]*model.Message, 0)
		convs = append(convs, &c)
		byID[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}

	msgRows, err := s.db.Query(`SELECT conversation_id, id, role, content, timestamp, streaming, tool_calls
		FROM messages ORDER BY conversation_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var (
			convID, role, ts, toolCalls string
			streaming                   int
			m                           model.Message
		)
		if err := msgRows.Scan(&convID, &m.ID, &role, &m.Content, &ts, &streaming, &toolCalls); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if m.Role, err = model.ParseRole(role); err != nil {
			return nil, err
		}
		if m.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		m.Streaming = streaming != 0
		m.ToolCalls = []string{}
		if err := json.Unmarshal([]byte(toolCalls), &m.ToolCalls); err != nil {
			return nil, fmt.Errorf("failed to decode tool calls for %s: %w", m.ID, err)
		}
		if m.ToolCalls == nil {
			m.ToolCalls = []string{}
		}
		if conv := byID[convID]; conv != nil {
			conv.Messages = append(conv.Messages, &m)
		}
	}
	if err := msgRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return convs, nil
}

// Save replaces the stored list in a single transaction.
func (s *SQLiteStore) Save(convs []*model.Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages"); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM conversations"); err != nil {
		return fmt.Errorf("failed to clear conversations: %w", err)
	}

	convStmt, err := tx.Prepare(`INSERT INTO conversations (id, position, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer convStmt.Close()

	msgStmt, err := tx.Prepare(`INSERT INTO messages (id, conversation_id, position, role, content, timestamp, streaming, tool_calls)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer msgStmt.Close()

	for i, c := range convs {
		if c == nil {
			continue
		}
		if _, err := convStmt.Exec(c.ID, i, c.Title, formatTime(c.CreatedAt), formatTime(c.UpdatedAt)); err != nil {
			return fmt.Errorf("failed to insert conversation %s: %w", c.ID, err)
		}
		for j, m := range c.Messages {
			if m == nil {
				continue
			}
			names := m.ToolCalls
			if names == nil {
				names = []string{}
			}
			toolCalls, err := json.Marshal(names)
			if err != nil {
				return fmt.Errorf("failed to encode tool calls: %w", err)
			}
			streaming := 0
			if m.Streaming {
				streaming = 1
			}
			if _, err := msgStmt.Exec(m.ID, c.ID, j, string(m.Role), m.Content, formatTime(m.Timestamp), streaming, string(toolCalls)); err != nil {
				return fmt.Errorf("failed to insert message %s: %w", m.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
