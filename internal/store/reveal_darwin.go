// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

//go:build darwin

package store

import "os/exec"

// openInFileManager opens path in Finder.
func openInFileManager(path string) error {
	return exec.Command("open", path).Start()
}
