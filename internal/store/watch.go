// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher notifies about external changes to the storage directory, so the
// session list can refresh when another process (or the user's editor)
// touches the chat files.
type Watcher struct {
	fsw     *fsnotify.Watcher
	changed chan struct{}
}

// NewWatcher starts watching dir for changes to chat files. Events are
// debounced: bursts of writes collapse into a single notification.
func NewWatcher(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{fsw: fsw, changed: make(chan struct{}, 1)}, nil
}

// Changed returns a channel that receives after external changes settle.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changed
}

// Run pumps filesystem events until ctx is cancelled. Call in a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	const settle = 250 * time.Millisecond

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(settle)
				timerC = timer.C
			} else {
				timer.Reset(settle)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			select {
			case w.changed <- struct{}{}:
			default:
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the next poll-driven refresh
			// still sees the files.
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// relevant filters out events for temp files from our own atomic writes.
func relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
		return false
	}
	name := event.Name
	return strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".db")
}
