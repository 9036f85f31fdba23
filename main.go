// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

// emberchat is a terminal chat client for a local Ollama server.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sbarlow/emberchat/internal/config"
	"github.com/sbarlow/emberchat/internal/controller"
	"github.com/sbarlow/emberchat/internal/ollama"
	"github.com/sbarlow/emberchat/internal/session"
	"github.com/sbarlow/emberchat/internal/store"
	"github.com/sbarlow/emberchat/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "emberchat:", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath, err := config.DefaultPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	storageDir, err := cfg.StorageDir()
	if err != nil {
		return err
	}

	opts := ui.Options{}

	// Pick the persistence backend.
	var gateway store.Gateway
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		s, err := store.NewSQLiteStore(filepath.Join(storageDir, "chats.db"), cfg.Storage.MaxChats)
		if err != nil {
			return fmt.Errorf("open chat database: %w", err)
		}
		defer s.Close()
		gateway = s
	default:
		s, err := store.NewFileStore(storageDir, cfg.Storage.MaxChats)
		if err != nil {
			return fmt.Errorf("open chat storage: %w", err)
		}
		gateway = s
		opts.FileStore = s

		// External edits to the chat files refresh the session list.
		if w, err := store.NewWatcher(storageDir); err == nil {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)
			defer w.Close()
			opts.Watcher = w
		}
	}

	sessions := session.NewStore(gateway)
	if err := sessions.Refresh(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not list chats: %v\n", err)
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL: cfg.Server.URL,
		Model:   cfg.Server.Model,
		Timeout: cfg.Timeout(),
	})

	// A quick reachability probe; the app still starts if the server is
	// down, sends just fail until it comes up.
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 2*time.Second)
	if err := client.CheckRunning(probeCtx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	cancelProbe()

	ctrl := controller.New(sessions, gateway, client)

	// Resume the most recent chat, or start fresh.
	if existing := sessions.Sessions(); len(existing) > 0 {
		if err := ctrl.Switch(context.Background(), existing[0].ID); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	} else {
		ctrl.NewSession()
	}

	opts.Controller = ctrl
	opts.Sessions = sessions
	opts.Ollama = client

	program := tea.NewProgram(ui.New(opts), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return err
	}

	// Let background session mirrors settle before exit.
	sessions.Flush()
	return nil
}
