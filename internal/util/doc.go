// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the multichat packages.
//
// # Key Functions
//
// File Operations:
//   - WritePrivateFile: owner-only replace via a synced sibling and rename
//
// Display Helpers:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth / StringWidth / PadRight: terminal-column aware helpers
//     for CJK content in panel headers and transcript previews
//   - SingleLine: collapse newlines for one-line previews
package util
