// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the domain types shared by every multichat package.
//
// # Key Types
//
//   - Message: one immutable turn in a panel transcript (user or assistant)
//   - Attachment: an in-session file or image with a session-scoped Locator
//   - Prompt: a library system prompt, bound to panels by value
//   - PromptUsage: one entry of the prompt-application history
//   - Model / Group: the static model catalog
//
// # Usage
//
// Look up a catalog entry:
//
//	m, ok := model.ByID("anthropic/claude-sonnet-4")
//	fmt.Println(model.DisplayName(m.ID), m.ContextWindow)
//
// Build a user turn:
//
//	msg := model.NewUserMessage("panel-1", model.DefaultModelID, "Hello", nil)
package model
