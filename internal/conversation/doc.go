// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the per-panel chat state: the active panel
// set, each panel's transcript, loading flag, model and prompt binding, and
// the selection and multi-send sets.
//
// A single *Store is shared by the dispatcher and the user interfaces.
// Presentation code only reads snapshots; observers registered with
// Subscribe are told to re-read after each mutation.
//
//	store := conversation.New(2, model.DefaultModelID)
//	c, err := store.BeginCycle("panel-1", "hello", nil)
//	...
//	store.FinishCycle(c, model.NewAssistantMessage(c.PanelID, c.ModelID, reply))
package conversation
