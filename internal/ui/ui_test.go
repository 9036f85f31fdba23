// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

package ui

import (
	"strings"
	"testing"

	"github.com/sbarlow/emberchat/internal/controller"
	"github.com/sbarlow/emberchat/internal/model"
	"github.com/sbarlow/emberchat/internal/ollama"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input    string
		wantCmd  Command
		wantIsCmd bool
	}{
		{"/new", Command{Name: "new"}, true},
		{"/rename My Chat Title", Command{Name: "rename", Args: "My Chat Title"}, true},
		{"  /quit  ", Command{Name: "quit"}, true},
		{"/SWITCH 3", Command{Name: "switch", Args: "3"}, true},
		{"hello world", Command{}, false},
		{"not /a command", Command{}, false},
		{"", Command{}, false},
	}

	for _, tt := range tests {
		got, ok := parseCommand(tt.input)
		if ok != tt.wantIsCmd {
			t.Errorf("parseCommand(%q) ok = %v, want %v", tt.input, ok, tt.wantIsCmd)
			continue
		}
		if ok && got != tt.wantCmd {
			t.Errorf("parseCommand(%q) = %+v, want %+v", tt.input, got, tt.wantCmd)
		}
	}
}

func TestIsSentinel(t *testing.T) {
	if !isSentinel(controller.NoMessageSentinel) {
		t.Error("no-message sentinel not recognized")
	}
	if !isSentinel(controller.FetchFailedSentinel) {
		t.Error("fetch-failed sentinel not recognized")
	}
	if isSentinel("[Error: something else]") {
		t.Error("arbitrary bracketed text must not count as a sentinel")
	}
	if isSentinel("hello") {
		t.Error("ordinary content must not count as a sentinel")
	}
}

func TestRenderLog_Empty(t *testing.T) {
	out := renderLog(nil, NewTheme(), nil)
	if !strings.Contains(out, "No messages yet") {
		t.Errorf("empty log rendering = %q", out)
	}
}

func TestRenderLog_ShowsRolesAndContent(t *testing.T) {
	log := []model.Message{
		model.NewUserMessage("how do tides work?"),
		model.NewAssistantMessage("the moon, mostly"),
	}
	out := renderLog(log, NewTheme(), nil)
	for _, want := range []string{"You", "Assistant", "how do tides work?", "the moon, mostly"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered log missing %q:\n%s", want, out)
		}
	}
}

func TestDescribeChatError(t *testing.T) {
	if got := describeChatError(ollama.ErrNotRunning); !strings.Contains(got, "ollama serve") {
		t.Errorf("not-running message = %q, want a start hint", got)
	}
	if got := describeChatError(ollama.ErrModelNotFound); !strings.Contains(got, "ollama pull") {
		t.Errorf("model-not-found message = %q, want a pull hint", got)
	}
}

func TestDescribePostError(t *testing.T) {
	if got := describePostError(controller.ErrExchangeInFlight); !strings.Contains(got, "previous reply") {
		t.Errorf("in-flight message = %q", got)
	}
}
