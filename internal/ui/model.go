// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"

	"github.com/sbarlow/emberchat/internal/controller"
	"github.com/sbarlow/emberchat/internal/model"
	"github.com/sbarlow/emberchat/internal/ollama"
	"github.com/sbarlow/emberchat/internal/session"
	"github.com/sbarlow/emberchat/internal/store"
)

// =============================================================================
// MESSAGES
// =============================================================================

type exchangeDoneMsg struct {
	reply model.Message
	err   error
}

type modelsListedMsg struct {
	models []ollama.ModelInfo
	err    error
}

type storageChangedMsg struct{}

// =============================================================================
// MODEL
// =============================================================================

// Options carries the wiring for the UI.
type Options struct {
	Controller *controller.Controller
	Sessions   *session.Store
	Ollama     *ollama.Client

	// FileStore enables /export when the file backend is in use.
	FileStore *store.FileStore

	// Watcher, if set, refreshes the session list on external changes.
	Watcher *store.Watcher
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	theme *Theme
	opts  Options

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	// notices are transient lines shown below the log (command output,
	// warnings). Cleared on the next submit.
	notices []string

	// listed freezes the numbering from the last /sessions output so
	// /switch <n> stays stable even if the list refreshes in between.
	listed []model.Session

	renderer *glamour.TermRenderer
}

// New creates the chat screen model.
func New(opts Options) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Type a message, or /help"
	input.CharLimit = 8192
	input.Focus()

	theme := NewTheme()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	return Model{
		theme:   theme,
		opts:    opts,
		input:   input,
		spinner: sp,
	}
}

// Init starts the watcher pump, if configured.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.opts.Watcher != nil {
		cmds = append(cmds, m.waitForStorageChange())
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// UPDATE
// =============================================================================

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg), nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyCtrlN:
			m.newSession()
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		}

	case spinner.TickMsg:
		if m.opts.Controller.Pending() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case exchangeDoneMsg:
		if msg.err != nil {
			m.notices = append(m.notices, m.theme.StatusWarning.Render(describeChatError(msg.err)))
		}
		m.refreshViewport(true)
		return m, nil

	case modelsListedMsg:
		if msg.err != nil {
			m.notices = append(m.notices, m.theme.StatusWarning.Render("list models: "+msg.err.Error()))
		} else {
			names := make([]string, len(msg.models))
			for i, info := range msg.models {
				names[i] = "  " + info.Name
			}
			m.notices = append(m.notices, "Available models:\n"+strings.Join(names, "\n"))
		}
		m.refreshViewport(false)
		return m, nil

	case storageChangedMsg:
		// Another process touched the storage directory; re-sync the list.
		if err := m.opts.Sessions.Refresh(context.Background()); err != nil {
			m.notices = append(m.notices, m.theme.StatusWarning.Render("refresh sessions: "+err.Error()))
		}
		return m, m.waitForStorageChange()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) resize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 2
	footerHeight := 3
	vpHeight := msg.Height - headerHeight - footerHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.input.Width = msg.Width - 4

	if r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(min(msg.Width-2, 100)),
	); err == nil {
		m.renderer = r
	}
	m.refreshViewport(false)
	return m
}

// submit handles Enter: either a slash command or a chat message.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}
	m.notices = nil

	if cmd, ok := parseCommand(text); ok {
		m.input.Reset()
		return m.runCommand(cmd)
	}

	if _, err := m.opts.Controller.Post(text); err != nil {
		m.notices = append(m.notices, m.theme.StatusWarning.Render(describePostError(err)))
		m.refreshViewport(false)
		return m, nil
	}
	m.input.Reset()
	m.refreshViewport(true)

	return m, tea.Batch(m.spinner.Tick, m.completeExchange())
}

// =============================================================================
// COMMANDS (tea.Cmd)
// =============================================================================

func (m Model) completeExchange() tea.Cmd {
	return func() tea.Msg {
		reply, err := m.opts.Controller.CompleteExchange(context.Background())
		return exchangeDoneMsg{reply: reply, err: err}
	}
}

func (m Model) listModels() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		models, err := m.opts.Ollama.ListModels(ctx)
		return modelsListedMsg{models: models, err: err}
	}
}

func (m Model) waitForStorageChange() tea.Cmd {
	return func() tea.Msg {
		<-m.opts.Watcher.Changed()
		return storageChangedMsg{}
	}
}

// =============================================================================
// SLASH COMMAND DISPATCH
// =============================================================================

func (m *Model) newSession() {
	sess := m.opts.Controller.NewSession()
	m.notices = append(m.notices, m.theme.Notice.Render("Started "+sess.Name))
	m.refreshViewport(false)
}

func (m Model) runCommand(cmd Command) (tea.Model, tea.Cmd) {
	switch cmd.Name {
	case "quit", "q", "exit":
		return m, tea.Quit

	case "help":
		m.notices = append(m.notices, helpText)

	case "new":
		m.newSession()
		return m, nil

	case "sessions":
		m.listed = m.opts.Sessions.Sessions()
		if len(m.listed) == 0 {
			m.notices = append(m.notices, "No chats yet. Type a message to start one.")
			break
		}
		active, _ := m.opts.Controller.Active()
		lines := make([]string, len(m.listed))
		for i, sess := range m.listed {
			label := fmt.Sprintf("  %d. %s", i+1, runewidth.Truncate(sess.Name, 50, "..."))
			if sess.ID == active.ID {
				label = m.theme.SessionActive.Render(label + " (current)")
			} else {
				label = m.theme.SessionItem.Render(label)
			}
			lines[i] = label
		}
		m.notices = append(m.notices, strings.Join(lines, "\n"))

	case "switch":
		n, err := strconv.Atoi(cmd.Args)
		if err != nil || n < 1 || n > len(m.listed) {
			m.notices = append(m.notices, m.theme.StatusWarning.Render("Usage: /sessions, then /switch <n>"))
			break
		}
		target := m.listed[n-1]
		if err := m.opts.Controller.Switch(context.Background(), target.ID); err != nil {
			m.notices = append(m.notices, m.theme.StatusWarning.Render("Switched, but the log could not be loaded: "+err.Error()))
		}

	case "rename":
		active, ok := m.opts.Controller.Active()
		if !ok {
			m.notices = append(m.notices, m.theme.StatusWarning.Render("No active chat."))
			break
		}
		if err := m.opts.Controller.Rename(active.ID, cmd.Args); err != nil {
			m.notices = append(m.notices, m.theme.StatusWarning.Render("Rename failed: "+err.Error()))
		}

	case "delete":
		active, ok := m.opts.Controller.Active()
		if !ok {
			m.notices = append(m.notices, m.theme.StatusWarning.Render("No active chat."))
			break
		}
		if err := m.opts.Controller.Delete(active.ID); err != nil {
			m.notices = append(m.notices, m.theme.StatusWarning.Render("Delete failed: "+err.Error()))
		} else {
			m.notices = append(m.notices, m.theme.Notice.Render("Deleted "+active.Name))
		}

	case "export":
		m.exportActive()

	case "models":
		return m, m.listModels()

	case "reveal":
		if err := m.opts.Controller.Reveal(); err != nil {
			m.notices = append(m.notices, m.theme.StatusWarning.Render("Reveal failed: "+err.Error()))
		}

	default:
		m.notices = append(m.notices, m.theme.StatusWarning.Render("Unknown command /"+cmd.Name+" (try /help)"))
	}

	m.refreshViewport(false)
	return m, nil
}

func (m *Model) exportActive() {
	active, ok := m.opts.Controller.Active()
	if !ok {
		m.notices = append(m.notices, m.theme.StatusWarning.Render("No active chat."))
		return
	}
	if m.opts.FileStore == nil {
		m.notices = append(m.notices, m.theme.StatusWarning.Render("/export needs the file storage backend."))
		return
	}

	md, err := m.opts.FileStore.ExportMarkdown(active.ID)
	if err != nil {
		m.notices = append(m.notices, m.theme.StatusWarning.Render("Export failed: "+err.Error()))
		return
	}
	path := filepath.Join(m.opts.FileStore.BaseDir, active.ID+".md")
	if err := os.WriteFile(path, []byte(md), 0644); err != nil {
		m.notices = append(m.notices, m.theme.StatusWarning.Render("Export failed: "+err.Error()))
		return
	}
	m.notices = append(m.notices, m.theme.Notice.Render("Exported to "+path))
}

// =============================================================================
// ERROR PRESENTATION
// =============================================================================

func describePostError(err error) string {
	switch {
	case err == controller.ErrNoActiveSession:
		return "No active chat. Use /new or just keep typing after /new."
	case err == controller.ErrExchangeInFlight:
		return "Still waiting for the previous reply."
	case err == controller.ErrEmptyMessage:
		return "Nothing to send."
	default:
		return err.Error()
	}
}

func describeChatError(err error) string {
	switch {
	case ollama.IsNotRunning(err):
		return "Ollama is not running. Start it with: ollama serve"
	case ollama.IsTimeout(err):
		return "The model took too long to respond."
	case ollama.IsModelNotFound(err):
		return "Model not found. Pull it with: ollama pull <model>"
	default:
		return err.Error()
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
