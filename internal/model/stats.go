// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

package model

// Stats holds derived performance figures for the active conversation. They
// are recomputed after each completed exchange and never persisted; the zero
// value is the "no exchange yet" state.
type Stats struct {
	// TotalTokens is the estimated token count of the whole conversation log.
	TotalTokens int

	// TokensPerSecond is the estimated generation speed of the most recent
	// assistant reply, rounded to the nearest whole token.
	TokensPerSecond int

	// ContextTokens approximates how much of the model's context window the
	// request for the latest exchange consumed.
	ContextTokens int
}
