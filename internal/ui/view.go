// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"

	"github.com/sbarlow/emberchat/internal/controller"
	"github.com/sbarlow/emberchat/internal/model"
)

// View renders the full screen: header, log viewport, input, status bar.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.theme.InputContainer.Width(m.width).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) renderHeader() string {
	title := "emberchat"
	if active, ok := m.opts.Controller.Active(); ok {
		title = runewidth.Truncate(active.Name, m.width/2, "...")
	}
	left := m.theme.HeaderTitle.Render(title)
	right := m.theme.HeaderModel.Render(m.opts.Controller.Model())

	gap := m.width - runewidth.StringWidth(title) - runewidth.StringWidth(m.opts.Controller.Model())
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderStatusBar() string {
	if m.opts.Controller.Pending() {
		return m.spinner.View() + m.theme.StatusBar.Render(" waiting for reply...")
	}

	stats := m.opts.Controller.Stats()
	if stats == (model.Stats{}) {
		return m.theme.StatusBar.Render("enter to send • /help for commands • ctrl+c to quit")
	}
	return m.theme.StatusStats.Render(fmt.Sprintf(
		"tokens: %d • tok/s: %d • context: %d",
		stats.TotalTokens, stats.TokensPerSecond, stats.ContextTokens,
	))
}

// refreshViewport re-renders the log into the viewport.
func (m *Model) refreshViewport(gotoBottom bool) {
	if !m.ready {
		return
	}

	content := renderLog(m.opts.Controller.Log(), m.theme, m.renderer)
	if len(m.notices) > 0 {
		content += "\n" + strings.Join(m.notices, "\n")
	}
	m.viewport.SetContent(content)
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}

// renderLog formats the message log for display. Assistant messages render
// as Markdown when a renderer is available; sentinel messages render as
// warnings instead.
func renderLog(log []model.Message, theme *Theme, renderer *glamour.TermRenderer) string {
	if len(log) == 0 {
		return theme.Notice.Render("No messages yet. Say something.")
	}

	var b strings.Builder
	for i, msg := range log {
		if i > 0 {
			b.WriteString("\n")
		}
		label := theme.UserLabel.Render(msg.Role.DisplayName())
		if msg.Role == model.RoleAssistant {
			label = theme.AssistantLabel.Render(msg.Role.DisplayName())
		}
		b.WriteString(label)
		b.WriteString(theme.MessageTime.Render("  " + msg.Timestamp.Format("15:04")))
		b.WriteString("\n")
		b.WriteString(renderContent(msg, theme, renderer))
		b.WriteString("\n")
	}
	return b.String()
}

func renderContent(msg model.Message, theme *Theme, renderer *glamour.TermRenderer) string {
	if isSentinel(msg.Content) {
		return theme.SentinelText.Render(msg.Content)
	}
	if msg.Role == model.RoleAssistant && renderer != nil {
		if out, err := renderer.Render(msg.Content); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return msg.Content
}

// isSentinel reports whether content is one of the error placeholders the
// exchange records in place of a real reply.
func isSentinel(content string) bool {
	return content == controller.NoMessageSentinel || content == controller.FetchFailedSentinel
}
