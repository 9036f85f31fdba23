// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

// Package store provides durable per-session chat persistence.
//
// The Gateway interface is the system of record for sessions and their
// message logs. Callers treat each operation as an atomic, independently
// failing remote call; there is no transactional grouping across operations.
package store

import (
	"context"
	"errors"

	"github.com/sbarlow/emberchat/internal/model"
)

// ErrChatNotFound is returned when the requested session does not exist.
var ErrChatNotFound = errors.New("chat not found")

// Gateway is the persistence contract for chat sessions.
type Gateway interface {
	// ListChats returns all stored sessions, most recently updated first.
	ListChats(ctx context.Context) ([]model.SessionMeta, error)

	// LoadChat returns the ordered message log for a session.
	LoadChat(ctx context.Context, id string) ([]model.Message, error)

	// SaveChat replaces the entire stored message log for a session.
	// Full-overwrite semantics: a failure can lose only the delta since the
	// last successful save, never older history.
	SaveChat(ctx context.Context, id string, messages []model.Message) error

	// RenameChat sets the display name of a session, creating the record if
	// it does not exist yet (a new session is named before its first save).
	RenameChat(ctx context.Context, id, name string) error

	// DeleteChat removes a session and its messages.
	DeleteChat(ctx context.Context, id string) error

	// Reveal opens the storage location in the host environment.
	Reveal() error
}
