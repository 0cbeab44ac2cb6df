// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// Owner-only modes for everything multichat persists. Config files can hold
// an API key and exports hold transcripts.
const (
	PrivateFileMode os.FileMode = 0o600
	PrivateDirMode  os.FileMode = 0o700
)

// WritePrivateFile replaces path with data. A reader sees either the previous
// contents or all of data, never a partial write. Missing parent directories
// are created with PrivateDirMode.
func WritePrivateFile(path string, data []byte) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, PrivateDirMode); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	staged, err := stage(dir, data)
	if err != nil {
		return err
	}
	if err := os.Rename(staged, target); err != nil {
		os.Remove(staged)
		return fmt.Errorf("replace %s: %w", target, err)
	}
	return nil
}

// stage writes data to a synced, closed sibling file and returns its name.
// The sibling is removed on failure.
func stage(dir string, data []byte) (name string, err error) {
	f, err := os.CreateTemp(dir, ".multichat-*")
	if err != nil {
		return "", fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	name = f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(name)
		}
	}()

	if err = f.Chmod(PrivateFileMode); err != nil {
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err = f.Write(data); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err = f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return name, nil
}
