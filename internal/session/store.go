// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

// Package session maintains the in-memory session list.
//
// The list is the UI's source of truth between refreshes. Mutations apply
// in memory first and mirror to the persistence gateway in the background;
// a mirror failure is reported as a warning, never rolled back.
package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sbarlow/emberchat/internal/model"
	"github.com/sbarlow/emberchat/internal/store"
)

// Store is the ordered in-memory session list, most recently updated first.
// Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	gateway  store.Gateway
	sessions []model.Session

	// Warnf receives non-fatal mirror failures. Defaults to stderr.
	Warnf func(format string, args ...any)

	wg sync.WaitGroup
}

// NewStore creates a session list backed by gateway.
func NewStore(gateway store.Gateway) *Store {
	return &Store{
		gateway: gateway,
		Warnf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		},
	}
}

// Refresh replaces the in-memory list with the persisted one.
func (s *Store) Refresh(ctx context.Context) error {
	metas, err := s.gateway.ListChats(ctx)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}

	sessions := make([]model.Session, len(metas))
	for i, meta := range metas {
		sessions[i] = model.Session{ID: meta.ID, Name: meta.Name}
	}

	s.mu.Lock()
	s.sessions = sessions
	s.mu.Unlock()
	return nil
}

// Sessions returns a copy of the current list.
func (s *Store) Sessions() []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Get returns the session with the given ID.
func (s *Store) Get(id string) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return model.Session{}, false
}

// Len returns the number of sessions in the list.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Add creates a new session with a fresh ID, prepends it to the list, and
// mirrors the record to the gateway in the background.
func (s *Store) Add(name string) model.Session {
	sess := model.Session{ID: model.NewSessionID(), Name: name}

	s.mu.Lock()
	s.sessions = append([]model.Session{sess}, s.sessions...)
	s.mu.Unlock()

	s.mirror("create chat "+sess.ID, func(ctx context.Context) error {
		return s.gateway.RenameChat(ctx, sess.ID, sess.Name)
	})
	return sess
}

// Rename updates a session's name in memory and mirrors it to the gateway.
func (s *Store) Rename(id, name string) error {
	s.mu.Lock()
	found := false
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			s.sessions[i].Name = name
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return store.ErrChatNotFound
	}
	s.mirror("rename chat "+id, func(ctx context.Context) error {
		return s.gateway.RenameChat(ctx, id, name)
	})
	return nil
}

// Remove deletes a session from the list and mirrors the deletion.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			idx = i
			break
		}
	}
	if idx >= 0 {
		s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	}
	s.mu.Unlock()

	if idx < 0 {
		return store.ErrChatNotFound
	}
	s.mirror("delete chat "+id, func(ctx context.Context) error {
		return s.gateway.DeleteChat(ctx, id)
	})
	return nil
}

// mirror runs a gateway write in the background, reporting failure as a
// warning. The in-memory list stays authoritative either way.
func (s *Store) mirror(what string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(context.Background()); err != nil {
			s.Warnf("%s: %v", what, err)
		}
	}()
}

// Flush waits for in-flight background mirrors to finish.
func (s *Store) Flush() {
	s.wg.Wait()
}
