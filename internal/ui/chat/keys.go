// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the panel grid.
type KeyMap struct {
	Send        key.Binding
	Newline     key.Binding
	Complete    key.Binding
	FocusNext   key.Binding
	FocusPrev   key.Binding
	Select      key.Binding
	ToggleMulti key.Binding
	CycleTarget key.Binding
	AddPanel    key.Binding
	RemovePanel key.Binding
	ClearPanel  key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Dismiss     key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default key bindings. None of them are plain
// printable keys, since the input always has focus.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("Alt+Enter", "newline"),
		),
		Complete: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "complete /command"),
		),
		FocusNext: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "next panel"),
		),
		FocusPrev: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-Tab", "prev panel"),
		),
		Select: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "select panel"),
		),
		ToggleMulti: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "toggle multi-send"),
		),
		CycleTarget: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "cycle target"),
		),
		AddPanel: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "add panel"),
		),
		RemovePanel: key.NewBinding(
			key.WithKeys("ctrl+w"),
			key.WithHelp("C-w", "remove panel"),
		),
		ClearPanel: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear panel"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "dismiss"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the one-line help.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.FocusNext, k.Select, k.ToggleMulti, k.CycleTarget, k.Help, k.Quit}
}

// FullHelp returns the bindings shown in the expanded help, in columns.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Newline, k.Complete, k.Dismiss},
		{k.FocusNext, k.FocusPrev, k.PageUp, k.PageDown},
		{k.Select, k.ToggleMulti, k.CycleTarget},
		{k.AddPanel, k.RemovePanel, k.ClearPanel, k.Help, k.Quit},
	}
}
