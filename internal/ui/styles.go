// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

// Package ui implements the terminal interface.
package ui

import "github.com/charmbracelet/lipgloss"

// Theme holds the styled components for the application.
type Theme struct {
	// =========================================================================
	// HEADER STYLES
	// =========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderModel lipgloss.Style

	// =========================================================================
	// MESSAGE STYLES
	// =========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageTime    lipgloss.Style
	SentinelText   lipgloss.Style
	Notice         lipgloss.Style

	// =========================================================================
	// INPUT AND STATUS STYLES
	// =========================================================================

	InputContainer lipgloss.Style
	StatusBar      lipgloss.Style
	StatusWarning  lipgloss.Style
	StatusStats    lipgloss.Style
	Spinner        lipgloss.Style

	// =========================================================================
	// SESSION LIST STYLES
	// =========================================================================

	SessionItem   lipgloss.Style
	SessionActive lipgloss.Style
}

// NewTheme builds the default theme using adaptive colors so it stays
// readable on both light and dark terminals.
func NewTheme() *Theme {
	accent := lipgloss.AdaptiveColor{Light: "#D35400", Dark: "#E67E22"}
	dim := lipgloss.AdaptiveColor{Light: "#888888", Dark: "#666666"}
	warn := lipgloss.AdaptiveColor{Light: "#B03A2E", Dark: "#E74C3C"}

	return &Theme{
		Header:      lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(dim),
		HeaderTitle: lipgloss.NewStyle().Bold(true).Foreground(accent),
		HeaderModel: lipgloss.NewStyle().Foreground(dim),

		UserLabel:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#2471A3", Dark: "#5DADE2"}),
		AssistantLabel: lipgloss.NewStyle().Bold(true).Foreground(accent),
		MessageTime:    lipgloss.NewStyle().Foreground(dim),
		SentinelText:   lipgloss.NewStyle().Foreground(warn).Italic(true),
		Notice:         lipgloss.NewStyle().Foreground(dim).Italic(true),

		InputContainer: lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderTop(true).BorderForeground(dim),
		StatusBar:      lipgloss.NewStyle().Foreground(dim),
		StatusWarning:  lipgloss.NewStyle().Foreground(warn),
		StatusStats:    lipgloss.NewStyle().Foreground(dim),
		Spinner:        lipgloss.NewStyle().Foreground(accent),

		SessionItem:   lipgloss.NewStyle().Foreground(dim),
		SessionActive: lipgloss.NewStyle().Bold(true).Foreground(accent),
	}
}
