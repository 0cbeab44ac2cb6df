// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the panel grid view for multichat.

The grid shows one to four conversation panels side by side, each bound to
its own model, above a shared input. A message typed once is broadcast to the
panels the current target policy selects; every panel fills in
independently as its reply arrives.

# Key Components

## Model (model.go)

The Bubble Tea model. It owns one viewport per panel, the shared textarea
and a cli.Session that interprets slash commands. Panel contents are never
stored here: the model re-reads a conversation snapshot whenever the store
signals a change.

## View Rendering (view.go, render.go)

Header with target policy and key state, the panel grid, an optional notice
box holding slash-command output, the input and a status bar. Assistant
replies are rendered as markdown with glamour.

## Update Loop (update.go)

Key handling, store notifications, batch completion and window resizes.

# Keys

	Enter         send (or run a /command)
	Alt+Enter     newline
	Tab/Shift+Tab move keyboard focus between panels
	Ctrl+S        select the focused panel
	Ctrl+T        toggle the focused panel in the multi-send set
	Ctrl+R        cycle the target policy (all, selected, multi)
	Ctrl+N/Ctrl+W add or remove a panel
	F1            full help
*/
package chat
