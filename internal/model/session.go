// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

package model

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sbarlow/emberchat/internal/util"
)

// MaxSessionNameRunes bounds auto-derived session names.
const MaxSessionNameRunes = 40

// PlaceholderSessionName is the name a session carries until the first user
// message provides a better one.
const PlaceholderSessionName = "New chat"

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is the lightweight identity of one persisted conversation thread.
// The ID is immutable; the Name may change via rename.
type Session struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionMeta extends Session with listing metadata reported by the
// persistence gateway.
type SessionMeta struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewSessionID generates a session ID. ULIDs encode their creation time in the
// leading bits, so lexicographic order is creation order.
func NewSessionID() string {
	return "chat_" + ulid.Make().String()
}

// =============================================================================
// NAME DERIVATION
// =============================================================================

// DeriveSessionName builds a session name from the first user message: the
// input is trimmed, line breaks become spaces, and the result is cut to
// MaxSessionNameRunes characters. Returns "" when nothing usable remains,
// in which case the caller should keep the current name.
func DeriveSessionName(input string) string {
	name := strings.TrimSpace(input)
	name = util.CollapseNewlines(name)
	name = util.TruncateRunesNoEllipsis(name, MaxSessionNameRunes)
	return strings.TrimSpace(name)
}
