// Copyright (c) 2025 Sam Barlow
// SPDX-License-Identifier: MIT

//go:build windows

package store

import "os/exec"

// openInFileManager opens path in Explorer. Explorer exits non-zero even on
// success, so the error from Start is the only one worth surfacing.
func openInFileManager(path string) error {
	return exec.Command("explorer", path).Start()
}
