// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch broadcasts one user message to a set of panels.
//
// Broadcast resolves the target policy against a store snapshot, appends
// the user turn to each target, then runs one provider call per target on
// its own goroutine. Each cycle writes its reply, or an error turn, back
// through the conversation store; cycles never wait on or cancel each
// other. Every cycle is recorded in a tasks.Queue and traced with its own
// span.
package dispatch
