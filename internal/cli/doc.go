// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the multichat command tree and the line-oriented chat
// session shared by the REPL and the panel grid.
//
// # Key Types
//
//   - App: the wired runtime (config, credential gate, provider client,
//     conversation store, dispatcher and prompt database)
//   - Session: slash-command interpreter and sender over an App
//   - CommandError: error with command context and an exit code
//
// # Commands Overview
//
// Chat:
//   - tui: panel grid (the default when stdout is a terminal)
//   - chat: line REPL with slash commands
//   - ask: one-shot broadcast to up to four models
//
// Management:
//   - models: catalog and remote model list
//   - key: set, clear, inspect and validate the API key
//   - prompts: custom prompt library and application history
//   - config: show, get, set and reset configuration
//   - doctor: health checks
//
// Every management command accepts --json.
package cli
