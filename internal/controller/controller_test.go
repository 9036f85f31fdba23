// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sbarlow/emberchat/internal/model"
	"github.com/sbarlow/emberchat/internal/ollama"
	"github.com/sbarlow/emberchat/internal/session"
	"github.com/sbarlow/emberchat/internal/store"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeGateway struct {
	mu      sync.Mutex
	chats   map[string][]model.Message
	names   map[string]string
	saves   int
	loadErr error
	saveErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		chats: map[string][]model.Message{},
		names: map[string]string{},
	}
}

func (f *fakeGateway) ListChats(ctx context.Context) ([]model.SessionMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	metas := []model.SessionMeta{}
	for id, name := range f.names {
		metas = append(metas, model.SessionMeta{ID: id, Name: name, MessageCount: len(f.chats[id])})
	}
	return metas, nil
}

func (f *fakeGateway) LoadChat(ctx context.Context, id string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	log, ok := f.chats[id]
	if !ok {
		return nil, store.ErrChatNotFound
	}
	return log, nil
}

func (f *fakeGateway) SaveChat(ctx context.Context, id string, messages []model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.chats[id] = messages
	f.saves++
	return nil
}

func (f *fakeGateway) RenameChat(ctx context.Context, id, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names[id] = name
	return nil
}

func (f *fakeGateway) DeleteChat(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chats, id)
	delete(f.names, id)
	return nil
}

func (f *fakeGateway) Reveal() error { return nil }

func (f *fakeGateway) savedLog(id string) []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats[id]
}

// fakeChat replies with a scripted response and records request histories.
type fakeChat struct {
	mu        sync.Mutex
	reply     string
	err       error
	histories [][]ollama.Message
	onChat    func() // runs mid-request, before replying
}

func (f *fakeChat) Chat(ctx context.Context, messages []ollama.Message) (*ollama.ChatResponse, error) {
	f.mu.Lock()
	history := make([]ollama.Message, len(messages))
	copy(history, messages)
	f.histories = append(f.histories, history)
	hook := f.onChat
	reply, err := f.reply, f.err
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return &ollama.ChatResponse{
		Message: ollama.NewAssistantMessage(reply),
		Done:    true,
	}, nil
}

func (f *fakeChat) Model() string { return "test-model" }

func newTestController(gw *fakeGateway, chat *fakeChat) *Controller {
	sessions := session.NewStore(gw)
	c := New(sessions, gw, chat)
	c.Warnf = func(format string, args ...any) {}
	return c
}

// =============================================================================
// SEND PROTOCOL
// =============================================================================

func TestSend_AppendsUserAndAssistant(t *testing.T) {
	gw := newFakeGateway()
	chat := &fakeChat{reply: "hello back"}
	c := newTestController(gw, chat)
	sess := c.NewSession()

	reply, err := c.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Content != "hello back" || reply.Role != model.RoleAssistant {
		t.Errorf("reply = %+v", reply)
	}

	log := c.Log()
	if len(log) != 2 {
		t.Fatalf("log has %d messages, want 2", len(log))
	}
	if log[0].Role != model.RoleUser || log[0].Content != "hello" {
		t.Errorf("log[0] = %+v", log[0])
	}
	if log[1].Role != model.RoleAssistant || log[1].Content != "hello back" {
		t.Errorf("log[1] = %+v", log[1])
	}

	// The full log is persisted after the exchange.
	saved := gw.savedLog(sess.ID)
	if len(saved) != 2 {
		t.Errorf("persisted %d messages, want 2", len(saved))
	}
}

func TestSend_LogAlternatesOverManyTurns(t *testing.T) {
	gw := newFakeGateway()
	chat := &fakeChat{reply: "ack"}
	c := newTestController(gw, chat)
	c.NewSession()

	const turns = 5
	for i := 0; i < turns; i++ {
		if _, err := c.Send(context.Background(), "turn"); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	log := c.Log()
	if len(log) != 2*turns {
		t.Fatalf("log has %d messages, want %d", len(log), 2*turns)
	}
	for i, msg := range log {
		want := model.RoleUser
		if i%2 == 1 {
			want = model.RoleAssistant
		}
		if msg.Role != want {
			t.Errorf("log[%d].Role = %s, want %s", i, msg.Role, want)
		}
	}
}

func TestSend_FullHistoryEachTurn(t *testing.T) {
	gw := newFakeGateway()
	chat := &fakeChat{reply: "ack"}
	c := newTestController(gw, chat)
	c.NewSession()

	c.Send(context.Background(), "one")
	c.Send(context.Background(), "two")

	chat.mu.Lock()
	defer chat.mu.Unlock()
	if len(chat.histories) != 2 {
		t.Fatalf("made %d requests, want 2", len(chat.histories))
	}
	second := chat.histories[1]
	if len(second) != 3 {
		t.Fatalf("second request carried %d messages, want 3 (full history)", len(second))
	}
	wantContents := []string{"one", "ack", "two"}
	for i, want := range wantContents {
		if second[i].Content != want {
			t.Errorf("history[%d] = %q, want %q", i, second[i].Content, want)
		}
	}
}

func TestSend_TrimsInput(t *testing.T) {
	gw := newFakeGateway()
	chat := &fakeChat{reply: "ok"}
	c := newTestController(gw, chat)
	c.NewSession()

	if _, err := c.Send(context.Background(), "  padded  \n"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := c.Log()[0].Content; got != "padded" {
		t.Errorf("stored content = %q, want trimmed", got)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestPost_NoActiveSession(t *testing.T) {
	c := newTestController(newFakeGateway(), &fakeChat{})
	if _, err := c.Post("hi"); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestPost_EmptyMessage(t *testing.T) {
	c := newTestController(newFakeGateway(), &fakeChat{})
	c.NewSession()
	for _, input := range []string{"", "   ", "\n\t"} {
		if _, err := c.Post(input); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Post(%q): err = %v, want ErrEmptyMessage", input, err)
		}
	}
}

func TestPost_SingleFlight(t *testing.T) {
	c := newTestController(newFakeGateway(), &fakeChat{reply: "ok"})
	c.NewSession()

	if _, err := c.Post("first"); err != nil {
		t.Fatalf("first Post: %v", err)
	}
	if _, err := c.Post("second"); !errors.Is(err, ErrExchangeInFlight) {
		t.Errorf("err = %v, want ErrExchangeInFlight", err)
	}
	if !c.Pending() {
		t.Error("Pending = false during exchange")
	}

	if _, err := c.CompleteExchange(context.Background()); err != nil {
		t.Fatalf("CompleteExchange: %v", err)
	}
	if c.Pending() {
		t.Error("Pending = true after completion")
	}
	if _, err := c.Post("third"); err != nil {
		t.Errorf("Post after completion: %v", err)
	}
}

// =============================================================================
// AUTO-RENAME
// =============================================================================

func TestAutoRename_FirstSend(t *testing.T) {
	c := newTestController(newFakeGateway(), &fakeChat{reply: "ok"})
	c.NewSession()

	c.Send(context.Background(), "How do I tune a guitar?")

	active, _ := c.Active()
	if active.Name != "How do I tune a guitar?" {
		t.Errorf("name = %q, want the first message", active.Name)
	}
}

func TestAutoRename_TruncatesAndCollapses(t *testing.T) {
	c := newTestController(newFakeGateway(), &fakeChat{reply: "ok"})
	c.NewSession()

	c.Send(context.Background(), "first line\nsecond line that makes this message run long")

	active, _ := c.Active()
	want := model.DeriveSessionName("first line\nsecond line that makes this message run long")
	if active.Name != want {
		t.Errorf("name = %q, want %q", active.Name, want)
	}
	if len([]rune(active.Name)) > model.MaxSessionNameRunes {
		t.Errorf("name %q exceeds %d runes", active.Name, model.MaxSessionNameRunes)
	}
}

func TestAutoRename_OnlyOnce(t *testing.T) {
	c := newTestController(newFakeGateway(), &fakeChat{reply: "ok"})
	c.NewSession()

	c.Send(context.Background(), "first message")
	c.Send(context.Background(), "second message")

	active, _ := c.Active()
	if active.Name != "first message" {
		t.Errorf("name = %q, second send must not retitle", active.Name)
	}
}

func TestAutoRename_SkippedAfterManualRename(t *testing.T) {
	c := newTestController(newFakeGateway(), &fakeChat{reply: "ok"})
	sess := c.NewSession()

	if err := c.Rename(sess.ID, "my title"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	c.Send(context.Background(), "this must not become the title")

	active, _ := c.Active()
	if active.Name != "my title" {
		t.Errorf("name = %q, want the manual title to survive", active.Name)
	}
}

// =============================================================================
// FAILURE PATHS
// =============================================================================

func TestSend_TransportFailure(t *testing.T) {
	gw := newFakeGateway()
	chat := &fakeChat{reply: "ok"}
	c := newTestController(gw, chat)
	sess := c.NewSession()

	// Establish non-zero stats with one good exchange.
	c.Send(context.Background(), "warm up")
	statsBefore := c.Stats()
	if statsBefore.TotalTokens == 0 {
		t.Fatal("setup: expected non-zero stats after a good exchange")
	}

	chat.mu.Lock()
	chat.err = ollama.ErrNotRunning
	chat.mu.Unlock()

	reply, err := c.Send(context.Background(), "doomed")
	if err == nil {
		t.Fatal("expected the transport error to surface")
	}
	if reply.Content != FetchFailedSentinel {
		t.Errorf("reply = %q, want the fetch-failed sentinel", reply.Content)
	}

	log := c.Log()
	if len(log) != 4 {
		t.Fatalf("log has %d messages, want 4", len(log))
	}
	if log[3].Content != FetchFailedSentinel || log[3].Role != model.RoleAssistant {
		t.Errorf("log[3] = %+v, want sentinel assistant message", log[3])
	}

	// Stats stay exactly as they were.
	if c.Stats() != statsBefore {
		t.Errorf("stats changed on transport failure: %+v -> %+v", statsBefore, c.Stats())
	}

	// The sentinel is persisted like any other message.
	saved := gw.savedLog(sess.ID)
	if len(saved) != 4 || saved[3].Content != FetchFailedSentinel {
		t.Errorf("persisted log = %+v, want the sentinel included", saved)
	}
}

func TestSend_EmptyReply(t *testing.T) {
	gw := newFakeGateway()
	chat := &fakeChat{reply: ""}
	c := newTestController(gw, chat)
	c.NewSession()

	reply, err := c.Send(context.Background(), "hello there friend")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Content != NoMessageSentinel {
		t.Errorf("reply = %q, want the no-message sentinel", reply.Content)
	}

	// Unlike a transport failure, this exchange completed: stats update.
	stats := c.Stats()
	if stats.TotalTokens == 0 {
		t.Error("TotalTokens = 0, want stats computed for the exchange")
	}
	if stats.ContextTokens == 0 {
		t.Error("ContextTokens = 0, want stats computed for the exchange")
	}
}

func TestSend_PersistFailureIsNonFatal(t *testing.T) {
	gw := newFakeGateway()
	gw.saveErr = errors.New("disk full")
	chat := &fakeChat{reply: "ok"}
	c := newTestController(gw, chat)
	c.NewSession()

	var warned bool
	c.Warnf = func(format string, args ...any) { warned = true }

	if _, err := c.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send must not fail on a persistence error: %v", err)
	}
	if !warned {
		t.Error("expected a warning for the failed save")
	}
	if len(c.Log()) != 2 {
		t.Errorf("in-memory log lost messages: %d", len(c.Log()))
	}
}

func TestCompleteExchange_DropsResultAfterDelete(t *testing.T) {
	gw := newFakeGateway()
	chat := &fakeChat{reply: "too late"}
	c := newTestController(gw, chat)
	sess := c.NewSession()

	chat.onChat = func() { c.Delete(sess.ID) }

	if _, err := c.Post("hello"); err != nil {
		t.Fatalf("Post: %v", err)
	}
	c.CompleteExchange(context.Background())

	if _, ok := c.Active(); ok {
		t.Error("active session should be cleared by the delete")
	}
	if len(c.Log()) != 0 {
		t.Errorf("log = %+v, want the in-flight result dropped", c.Log())
	}
}

// =============================================================================
// STATISTICS
// =============================================================================

func TestStats_Values(t *testing.T) {
	gw := newFakeGateway()
	// 8 words -> round(8/0.75) = 11 tokens.
	chat := &fakeChat{reply: "one two three four five six seven eight"}
	c := newTestController(gw, chat)
	c.NewSession()

	// Fixed clock: Post stamps the start, CompleteExchange stamps the end
	// two seconds later.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	c.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(2 * time.Second)
	}

	if _, err := c.Send(context.Background(), "hi there"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	stats := c.Stats()
	// 11 reply tokens / 2s, rounded.
	if stats.TokensPerSecond != 6 {
		t.Errorf("TokensPerSecond = %d, want 6", stats.TokensPerSecond)
	}
	// "hi there" (2 words) + reply (8 words) = 10 words -> 13 tokens.
	if stats.TotalTokens != 13 {
		t.Errorf("TotalTokens = %d, want 13", stats.TotalTokens)
	}
	if stats.ContextTokens == 0 {
		t.Error("ContextTokens = 0, want an estimate of the serialized request")
	}
}

func TestStats_ZeroElapsed(t *testing.T) {
	c := newTestController(newFakeGateway(), &fakeChat{reply: "quick"})
	c.NewSession()

	base := time.Now()
	c.now = func() time.Time { return base }

	if _, err := c.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := c.Stats().TokensPerSecond; got != 0 {
		t.Errorf("TokensPerSecond = %d, want 0 for zero elapsed time", got)
	}
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

func TestNewSession(t *testing.T) {
	c := newTestController(newFakeGateway(), &fakeChat{})
	sess := c.NewSession()

	if sess.Name != model.PlaceholderSessionName {
		t.Errorf("name = %q, want the placeholder", sess.Name)
	}
	active, ok := c.Active()
	if !ok || active.ID != sess.ID {
		t.Errorf("Active = %+v, %v", active, ok)
	}
	if len(c.Log()) != 0 {
		t.Error("new session must start with an empty log")
	}
	if (c.Stats() != model.Stats{}) {
		t.Error("new session must start with zero stats")
	}
}

func TestSwitch_LoadsStoredLog(t *testing.T) {
	gw := newFakeGateway()
	chat := &fakeChat{reply: "ok"}
	c := newTestController(gw, chat)

	first := c.NewSession()
	c.Send(context.Background(), "remember me")
	second := c.NewSession()
	c.Send(context.Background(), "other chat")
	_ = second

	if err := c.Switch(context.Background(), first.ID); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	log := c.Log()
	if len(log) != 2 || log[0].Content != "remember me" {
		t.Errorf("log = %+v, want the first session's log", log)
	}
	if (c.Stats() != model.Stats{}) {
		t.Error("switch must reset stats")
	}
}

func TestSwitch_NeverSaved(t *testing.T) {
	// A session created but never sent to has no stored record; switching
	// to it yields an empty log, not an error.
	gw := newFakeGateway()
	c := newTestController(gw, &fakeChat{reply: "ok"})

	empty := c.NewSession()
	c.NewSession()

	if err := c.Switch(context.Background(), empty.ID); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if len(c.Log()) != 0 {
		t.Errorf("log = %+v, want empty", c.Log())
	}
}

func TestSwitch_Unknown(t *testing.T) {
	c := newTestController(newFakeGateway(), &fakeChat{})
	if err := c.Switch(context.Background(), "chat_missing"); !errors.Is(err, store.ErrChatNotFound) {
		t.Errorf("err = %v, want ErrChatNotFound", err)
	}
}

func TestSwitch_LoadFailure(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(gw, &fakeChat{reply: "ok"})
	sess := c.NewSession()
	c.Send(context.Background(), "stored")
	c.NewSession()

	gw.mu.Lock()
	gw.loadErr = errors.New("corrupted")
	gw.mu.Unlock()

	err := c.Switch(context.Background(), sess.ID)
	if err == nil {
		t.Fatal("expected the load failure to surface")
	}

	// The session still becomes active, with an empty log.
	active, ok := c.Active()
	if !ok || active.ID != sess.ID {
		t.Errorf("Active = %+v, %v; want the target session", active, ok)
	}
	if len(c.Log()) != 0 {
		t.Errorf("log = %+v, want empty after a failed load", c.Log())
	}
}

func TestDelete_ActiveSession(t *testing.T) {
	c := newTestController(newFakeGateway(), &fakeChat{reply: "ok"})
	sess := c.NewSession()
	c.Send(context.Background(), "bye")

	if err := c.Delete(sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := c.Active(); ok {
		t.Error("active session not cleared")
	}
	if len(c.Log()) != 0 || (c.Stats() != model.Stats{}) {
		t.Error("log and stats not cleared")
	}
}

func TestDelete_InactiveSession(t *testing.T) {
	c := newTestController(newFakeGateway(), &fakeChat{reply: "ok"})
	other := c.NewSession()
	active := c.NewSession()

	if err := c.Delete(other.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, ok := c.Active()
	if !ok || got.ID != active.ID {
		t.Errorf("Active = %+v, %v; deleting another session must not touch it", got, ok)
	}
}

func TestRename_Validation(t *testing.T) {
	c := newTestController(newFakeGateway(), &fakeChat{})
	sess := c.NewSession()

	if err := c.Rename(sess.ID, "   "); !errors.Is(err, ErrEmptyName) {
		t.Errorf("err = %v, want ErrEmptyName", err)
	}
	if err := c.Rename("chat_missing", "x"); !errors.Is(err, store.ErrChatNotFound) {
		t.Errorf("err = %v, want ErrChatNotFound", err)
	}
}
