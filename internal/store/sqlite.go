// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sbarlow/emberchat/internal/model"
)

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore persists sessions in a single SQLite database file. It is an
// alternative Gateway backend for users who prefer one file over a directory
// of JSON documents.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	maxChats int
}

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	chat_id   TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	id        TEXT NOT NULL,
	role      TEXT NOT NULL,
	content   TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	PRIMARY KEY (chat_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_chats_updated ON chats(updated_at DESC);
`

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string, maxChats int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc.org/sqlite is a single-writer driver; serialize access.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path, maxChats: maxChats}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// GATEWAY IMPLEMENTATION
// =============================================================================

// ListChats returns metadata for every stored session, most recently
// updated first.
func (s *SQLiteStore) ListChats(ctx context.Context) ([]model.SessionMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.updated_at, COUNT(m.seq)
		FROM chats c LEFT JOIN messages m ON m.chat_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metas := []model.SessionMeta{}
	for rows.Next() {
		var meta model.SessionMeta
		var updatedNs int64
		if err := rows.Scan(&meta.ID, &meta.Name, &updatedNs, &meta.MessageCount); err != nil {
			return nil, err
		}
		meta.UpdatedAt = time.Unix(0, updatedNs)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// LoadChat returns the ordered message log for a session.
func (s *SQLiteStore) LoadChat(ctx context.Context, id string) ([]model.Message, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM chats WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, timestamp
		FROM messages WHERE chat_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var msg model.Message
		var role string
		var tsNs int64
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &tsNs); err != nil {
			return nil, err
		}
		msg.Role = model.Role(role)
		msg.Timestamp = time.Unix(0, tsNs)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SaveChat replaces the stored message log for a session in one transaction.
func (s *SQLiteStore) SaveChat(ctx context.Context, id string, messages []model.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		id, model.PlaceholderSessionName, now, now)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, id); err != nil {
		return err
	}
	for seq, msg := range messages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (chat_id, seq, id, role, content, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, seq, msg.ID, string(msg.Role), msg.Content, msg.Timestamp.UnixNano())
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if s.maxChats > 0 {
		s.enforceLimit(ctx)
	}
	return nil
}

// RenameChat sets the session's display name, creating the record if it does
// not exist yet.
func (s *SQLiteStore) RenameChat(ctx context.Context, id, name string) error {
	now := time.Now().UnixNano()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		id, name, now, now)
	return err
}

// DeleteChat removes a session and its messages.
func (s *SQLiteStore) DeleteChat(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// Reveal opens the directory containing the database file.
func (s *SQLiteStore) Reveal() error {
	return openInFileManager(filepath.Dir(s.path))
}

// enforceLimit removes the oldest sessions when over maxChats. Best effort.
func (s *SQLiteStore) enforceLimit(ctx context.Context) {
	s.db.ExecContext(ctx, `
		DELETE FROM chats WHERE id IN (
			SELECT id FROM chats ORDER BY updated_at DESC LIMIT -1 OFFSET ?
		)`, s.maxChats)
}
