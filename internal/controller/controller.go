// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

// Package controller coordinates the active chat session: the message log,
// the inference round-trip, exchange statistics, and persistence.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sbarlow/emberchat/internal/model"
	"github.com/sbarlow/emberchat/internal/ollama"
	"github.com/sbarlow/emberchat/internal/session"
	"github.com/sbarlow/emberchat/internal/store"
	"github.com/sbarlow/emberchat/internal/token"
)

// =============================================================================
// ERRORS AND SENTINELS
// =============================================================================

var (
	// ErrNoActiveSession is returned when an operation needs an active
	// session and none is selected.
	ErrNoActiveSession = errors.New("no active session")

	// ErrEmptyMessage is returned when the user input is blank after
	// trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrEmptyName is returned when a rename target is blank after trimming.
	ErrEmptyName = errors.New("name is empty")

	// ErrExchangeInFlight is returned when a send is attempted while a
	// previous exchange has not completed. One exchange at a time.
	ErrExchangeInFlight = errors.New("an exchange is already in flight")
)

// Sentinel assistant messages recorded in the log when an exchange cannot
// produce a real reply. They are ordinary messages: persisted, displayed,
// and included in later request histories.
const (
	// NoMessageSentinel marks a successful round-trip that carried no
	// assistant content. Statistics are still computed for the exchange.
	NoMessageSentinel = "[Error: No message returned]"

	// FetchFailedSentinel marks a failed round-trip (server unreachable,
	// timeout, HTTP error). Statistics are left unchanged.
	FetchFailedSentinel = "[Error: Unable to fetch response]"
)

// =============================================================================
// CHAT CLIENT INTERFACE
// =============================================================================

// ChatClient is the inference backend contract, satisfied by *ollama.Client.
type ChatClient interface {
	Chat(ctx context.Context, messages []ollama.Message) (*ollama.ChatResponse, error)
	Model() string
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the active session state. All methods are safe for
// concurrent use; at most one exchange runs at a time.
type Controller struct {
	mu       sync.Mutex
	sessions *session.Store
	gateway  store.Gateway
	chat     ChatClient

	active  *model.Session
	log     []model.Message
	stats   model.Stats
	pending bool

	// exchange bookkeeping, valid while pending
	exchangeSession string
	exchangeStart   time.Time

	// Warnf receives non-fatal persistence failures. Defaults to stderr.
	Warnf func(format string, args ...any)

	// now is swappable for tests.
	now func() time.Time
}

// New creates a controller over the given session list, persistence gateway,
// and inference client.
func New(sessions *session.Store, gateway store.Gateway, chat ChatClient) *Controller {
	return &Controller{
		sessions: sessions,
		gateway:  gateway,
		chat:     chat,
		Warnf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		},
		now: time.Now,
	}
}

// =============================================================================
// SNAPSHOT ACCESSORS
// =============================================================================

// Active returns the active session, if any.
func (c *Controller) Active() (model.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return model.Session{}, false
	}
	return *c.active, true
}

// Log returns a copy of the active session's message log.
func (c *Controller) Log() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Message, len(c.log))
	copy(out, c.log)
	return out
}

// Stats returns the statistics from the most recent completed exchange.
// The zero value means no exchange has completed yet.
func (c *Controller) Stats() model.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Pending reports whether an exchange is currently in flight.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Model returns the configured model identifier.
func (c *Controller) Model() string {
	return c.chat.Model()
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// NewSession creates a fresh placeholder-named session and makes it active
// with an empty log.
func (c *Controller) NewSession() model.Session {
	sess := c.sessions.Add(model.PlaceholderSessionName)

	c.mu.Lock()
	c.active = &sess
	c.log = nil
	c.stats = model.Stats{}
	c.mu.Unlock()

	return sess
}

// Switch makes the given session active and loads its log. On a load
// failure the session still becomes active with an empty log, and the error
// is returned so the caller can surface it.
func (c *Controller) Switch(ctx context.Context, id string) error {
	sess, ok := c.sessions.Get(id)
	if !ok {
		return store.ErrChatNotFound
	}

	log, err := c.gateway.LoadChat(ctx, id)
	if err != nil && !errors.Is(err, store.ErrChatNotFound) {
		// Activate with an empty log anyway; the user asked for this
		// session and can still continue it.
		c.mu.Lock()
		c.active = &sess
		c.log = nil
		c.stats = model.Stats{}
		c.mu.Unlock()
		return fmt.Errorf("load chat %s: %w", id, err)
	}

	c.mu.Lock()
	c.active = &sess
	c.log = log
	c.stats = model.Stats{}
	c.mu.Unlock()
	return nil
}

// Rename sets the active-list name of a session.
func (c *Controller) Rename(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if err := c.sessions.Rename(id, name); err != nil {
		return err
	}

	c.mu.Lock()
	if c.active != nil && c.active.ID == id {
		c.active.Name = name
	}
	c.mu.Unlock()
	return nil
}

// Delete removes a session. Deleting the active session clears the active
// state; it does not auto-select another session.
func (c *Controller) Delete(id string) error {
	if err := c.sessions.Remove(id); err != nil {
		return err
	}

	c.mu.Lock()
	if c.active != nil && c.active.ID == id {
		c.active = nil
		c.log = nil
		c.stats = model.Stats{}
	}
	c.mu.Unlock()
	return nil
}

// Reveal opens the storage location.
func (c *Controller) Reveal() error {
	return c.gateway.Reveal()
}

// =============================================================================
// SEND PROTOCOL
// =============================================================================

// Post validates and appends the user's message, marks the exchange as in
// flight, and performs the first-send auto-rename. The returned message is
// already in the log, so the caller can render it before the (slow)
// inference round-trip. CompleteExchange must follow.
func (c *Controller) Post(text string) (model.Message, error) {
	trimmed := strings.TrimSpace(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return model.Message{}, ErrNoActiveSession
	}
	if trimmed == "" {
		return model.Message{}, ErrEmptyMessage
	}
	if c.pending {
		return model.Message{}, ErrExchangeInFlight
	}

	wasEmpty := len(c.log) == 0
	msg := model.NewUserMessage(trimmed)
	c.log = append(c.log, msg)
	c.pending = true
	c.exchangeSession = c.active.ID
	c.exchangeStart = c.now()

	// First send into a placeholder-named session titles it after the
	// message. The gateway mirror is fire-and-forget.
	if wasEmpty && c.active.Name == model.PlaceholderSessionName {
		if name := model.DeriveSessionName(trimmed); name != "" {
			c.active.Name = name
			id := c.active.ID
			c.mu.Unlock()
			c.sessions.Rename(id, name)
			c.mu.Lock()
		}
	}

	return msg, nil
}

// CompleteExchange runs the inference round-trip for the posted message,
// appends the assistant reply (or a sentinel), updates statistics, and
// persists the full log. It blocks for the duration of the request.
func (c *Controller) CompleteExchange(ctx context.Context) (model.Message, error) {
	c.mu.Lock()
	if !c.pending {
		c.mu.Unlock()
		return model.Message{}, errors.New("no exchange in flight")
	}
	sessionID := c.exchangeSession
	started := c.exchangeStart
	history := make([]ollama.Message, len(c.log))
	for i, msg := range c.log {
		history[i] = ollama.Message{Role: msg.Role.String(), Content: msg.Content}
	}
	preReplyLog := make([]model.Message, len(c.log))
	copy(preReplyLog, c.log)
	c.mu.Unlock()

	resp, chatErr := c.chat.Chat(ctx, history)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false

	// The session may have been deleted or switched away from while the
	// request was in flight; drop the result rather than corrupting the
	// new active log.
	if c.active == nil || c.active.ID != sessionID {
		return model.Message{}, chatErr
	}

	var reply model.Message
	if chatErr != nil {
		reply = model.NewAssistantMessage(FetchFailedSentinel)
		c.log = append(c.log, reply)
		// Statistics stay as they were; no tokens were generated.
	} else {
		content := resp.Message.Content
		if content == "" {
			content = NoMessageSentinel
		}
		elapsed := c.now().Sub(started)
		contextTokens := estimateContext(preReplyLog)

		reply = model.NewAssistantMessage(content)
		c.log = append(c.log, reply)

		c.stats = model.Stats{
			TotalTokens:     estimateLog(c.log),
			TokensPerSecond: tokensPerSecond(content, elapsed),
			ContextTokens:   contextTokens,
		}
	}

	// Full-log overwrite on both outcomes. A persistence failure never
	// fails the exchange; the log in memory is already correct.
	logCopy := make([]model.Message, len(c.log))
	copy(logCopy, c.log)
	c.mu.Unlock()
	saveErr := c.gateway.SaveChat(ctx, sessionID, logCopy)
	c.mu.Lock()
	if saveErr != nil {
		c.Warnf("save chat %s: %v", sessionID, saveErr)
	}

	return reply, chatErr
}

// Send posts the message and completes the exchange in one blocking call.
func (c *Controller) Send(ctx context.Context, text string) (model.Message, error) {
	if _, err := c.Post(text); err != nil {
		return model.Message{}, err
	}
	return c.CompleteExchange(ctx)
}

// =============================================================================
// STATISTICS
// =============================================================================

// estimateLog estimates the token count of every message's content combined.
func estimateLog(log []model.Message) int {
	var sb strings.Builder
	for _, msg := range log {
		sb.WriteString(msg.Content)
		sb.WriteString(" ")
	}
	return token.Estimate(sb.String())
}

// estimateContext estimates the size of the request context: the serialized
// form of the log as it was sent, which is what the model actually consumed.
func estimateContext(log []model.Message) int {
	data, err := json.Marshal(log)
	if err != nil {
		return 0
	}
	return token.Estimate(string(data))
}

// tokensPerSecond estimates generation speed for the reply.
func tokensPerSecond(reply string, elapsed time.Duration) int {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(float64(token.Estimate(reply)) / seconds))
}
