// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/koharyou1215/multi-chat/internal/model"
)

const panelPrefix = "panel-"

// PanelID returns the id of the panel in slot n (1-based).
func PanelID(n int) string {
	return panelPrefix + strconv.Itoa(n)
}

// PanelOrdinal parses a panel id back to its slot number.
func PanelOrdinal(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, panelPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Panel is a read-only copy of one conversation thread.
type Panel struct {
	ID       string
	ModelID  string
	Messages []model.Message
	Loading  bool

	// Prompt is the bound custom prompt, a copy taken at bind time.
	Prompt *model.Prompt
}

// SystemPrompt returns the bound prompt body, or "" when none is bound.
func (p Panel) SystemPrompt() string {
	if p.Prompt == nil {
		return ""
	}
	return p.Prompt.Content
}

// Title is the header line shown above a panel.
func (p Panel) Title() string {
	n, _ := PanelOrdinal(p.ID)
	title := fmt.Sprintf("%d · %s", n, model.DisplayName(p.ModelID))
	if p.Prompt != nil {
		title += " [" + p.Prompt.Title + "]"
	}
	return title
}

// LastMessage returns the newest turn, if any.
func (p Panel) LastMessage() (model.Message, bool) {
	if len(p.Messages) == 0 {
		return model.Message{}, false
	}
	return p.Messages[len(p.Messages)-1], true
}

func (p Panel) clone() Panel {
	p.Messages = model.CloneMessages(p.Messages)
	if p.Prompt != nil {
		pr := p.Prompt.Clone()
		p.Prompt = &pr
	}
	return p
}

// Snapshot is a consistent copy of the whole store.
type Snapshot struct {
	Panels []Panel

	// Selected is the focused panel id, "" when nothing is selected.
	Selected string

	// MultiSend lists the multi-select ids in the order they were added.
	MultiSend []string
}

// Panel looks up a panel in the snapshot.
func (s Snapshot) Panel(id string) (Panel, bool) {
	for _, p := range s.Panels {
		if p.ID == id {
			return p, true
		}
	}
	return Panel{}, false
}

// InMultiSend reports whether id is in the multi-select set.
func (s Snapshot) InMultiSend(id string) bool {
	for _, m := range s.MultiSend {
		if m == id {
			return true
		}
	}
	return false
}

// AnyLoading reports whether any panel has a cycle in flight.
func (s Snapshot) AnyLoading() bool {
	for _, p := range s.Panels {
		if p.Loading {
			return true
		}
	}
	return false
}
