// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

package ui

import "strings"

// Command is a parsed slash command.
type Command struct {
	Name string
	Args string
}

// parseCommand recognizes "/name args" input. The second return value is
// false for ordinary chat text.
func parseCommand(input string) (Command, bool) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{}, false
	}
	name, args, _ := strings.Cut(trimmed[1:], " ")
	return Command{
		Name: strings.ToLower(name),
		Args: strings.TrimSpace(args),
	}, true
}

// helpText lists the available slash commands.
const helpText = `Commands:
  /new               start a new chat
  /sessions          list chats (switch with /switch <n>)
  /switch <n>        switch to chat number n from /sessions
  /rename <name>     rename the current chat
  /delete            delete the current chat
  /export            export the current chat as Markdown
  /models            list models available on the server
  /reveal            open the chat storage location
  /help              show this help
  /quit              exit`
