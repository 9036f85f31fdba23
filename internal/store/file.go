// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sbarlow/emberchat/internal/model"
	"github.com/sbarlow/emberchat/internal/util"
)

// =============================================================================
// STORED CHAT FORMAT
// =============================================================================

// storedChat is the on-disk JSON document, one file per session.
type storedChat struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []model.Message `json:"messages"`
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore persists each session as a JSON file in a directory.
// Writes are atomic (temp file + rename), so a crash mid-save leaves either
// the previous log or the complete new one.
type FileStore struct {
	// BaseDir is the directory holding one <id>.json per session.
	BaseDir string

	// MaxChats limits stored sessions; oldest are pruned past the limit
	// (0 = unlimited).
	MaxChats int
}

// NewFileStore creates a file store rooted at baseDir, creating the
// directory if needed.
func NewFileStore(baseDir string, maxChats int) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{BaseDir: baseDir, MaxChats: maxChats}, nil
}

// =============================================================================
// GATEWAY IMPLEMENTATION
// =============================================================================

// ListChats returns metadata for every stored session, most recently
// updated first. Corrupted files are skipped rather than failing the whole
// listing.
func (s *FileStore) ListChats(ctx context.Context) ([]model.SessionMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.SessionMeta{}, nil
		}
		return nil, err
	}

	metas := make([]model.SessionMeta, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		chat, err := s.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		metas = append(metas, model.SessionMeta{
			ID:           chat.ID,
			Name:         chat.Name,
			MessageCount: len(chat.Messages),
			UpdatedAt:    chat.UpdatedAt,
		})
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// LoadChat returns the ordered message log for a session.
func (s *FileStore) LoadChat(ctx context.Context, id string) ([]model.Message, error) {
	chat, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if chat.Messages == nil {
		return []model.Message{}, nil
	}
	return chat.Messages, nil
}

// SaveChat replaces the stored message log for a session. The session record
// is created on first save; an existing name and creation time are preserved.
func (s *FileStore) SaveChat(ctx context.Context, id string, messages []model.Message) error {
	chat, err := s.read(id)
	if err != nil {
		chat = &storedChat{
			ID:        id,
			Name:      model.PlaceholderSessionName,
			CreatedAt: time.Now(),
		}
	}
	chat.Messages = messages
	chat.UpdatedAt = time.Now()

	if err := s.write(chat); err != nil {
		return err
	}
	if s.MaxChats > 0 {
		s.enforceLimit(ctx)
	}
	return nil
}

// RenameChat sets the session's display name, creating the record if it does
// not exist yet.
func (s *FileStore) RenameChat(ctx context.Context, id, name string) error {
	chat, err := s.read(id)
	if err != nil {
		now := time.Now()
		chat = &storedChat{ID: id, CreatedAt: now, UpdatedAt: now}
	}
	chat.Name = name
	return s.write(chat)
}

// DeleteChat removes a session file.
func (s *FileStore) DeleteChat(ctx context.Context, id string) error {
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrChatNotFound
		}
		return err
	}
	return nil
}

// Reveal opens the storage directory in the desktop file manager.
func (s *FileStore) Reveal() error {
	return openInFileManager(s.BaseDir)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *FileStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

func (s *FileStore) read(id string) (*storedChat, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	var chat storedChat
	if err := json.Unmarshal(data, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *FileStore) write(chat *storedChat) error {
	data, err := json.MarshalIndent(chat, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.filePath(chat.ID), data, 0644)
}

// enforceLimit removes the oldest sessions when over MaxChats. Best effort;
// pruning failures are ignored.
func (s *FileStore) enforceLimit(ctx context.Context) {
	metas, err := s.ListChats(ctx)
	if err != nil || len(metas) <= s.MaxChats {
		return
	}
	// ListChats is most-recent-first, so prune from the tail.
	for _, meta := range metas[s.MaxChats:] {
		s.DeleteChat(ctx, meta.ID)
	}
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders a stored session as a Markdown document.
func (s *FileStore) ExportMarkdown(id string) (string, error) {
	chat, err := s.read(id)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# " + chat.Name + "\n\n")
	sb.WriteString("Created: " + chat.CreatedAt.Format(time.RFC3339) + "\n\n---\n\n")
	for _, msg := range chat.Messages {
		sb.WriteString("**" + msg.Role.DisplayName() + "** (" + msg.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String(), nil
}
