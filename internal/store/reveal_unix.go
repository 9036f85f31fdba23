// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

//go:build linux || freebsd || openbsd || netbsd

package store

import "os/exec"

// openInFileManager opens path in the desktop file manager.
func openInFileManager(path string) error {
	return exec.Command("xdg-open", path).Start()
}
