// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the local state of multichat.
//
// A single SQLite database (pure Go driver) holds the prompt library, the
// prompt usage history and the saved view state. Panel transcripts are not
// persisted; they can be exported to Markdown or JSON files instead.
//
// # Key Types
//
//   - DB: database handle with prompt, history and view state methods
//   - UIState: panel count, selection, multi-send set and panel models
//   - Transcript: exportable copy of one panel's conversation
//
// # Usage
//
//	db, err := storage.Open(cfg.Storage.DatabasePath)
//	defer db.Close()
//	p, err := db.AddPrompt(ctx, model.NewPrompt("Reviewer", "Review this code.", []string{"code"}))
//	hits, err := db.SearchPrompts(ctx, "review")
//
// # Storage Location
//
// The database lives at ~/.multichat/multichat.db and exports are written
// to ~/.multichat/transcripts/ unless configured otherwise.
package storage
