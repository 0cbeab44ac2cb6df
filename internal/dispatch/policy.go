// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"fmt"
	"strings"

	"github.com/koharyou1215/multi-chat/internal/conversation"
)

// Policy selects which panels receive a broadcast.
type Policy int

const (
	// All targets every active panel.
	All Policy = iota
	// Selected targets the focused panel only.
	Selected
	// Multi targets the panels in the multi-send set.
	Multi
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case All:
		return "all"
	case Selected:
		return "selected"
	case Multi:
		return "multi"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "all", "selected" or "multi".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return All, nil
	case "selected", "one":
		return Selected, nil
	case "multi":
		return Multi, nil
	default:
		return All, fmt.Errorf("unknown target policy %q (want all, selected or multi)", s)
	}
}

// ResolveTargets returns the panels policy selects in snap, in slot order.
// Selected with no selection and Multi with an empty set resolve to nothing.
func ResolveTargets(snap conversation.Snapshot, policy Policy) []conversation.Panel {
	var out []conversation.Panel
	switch policy {
	case All:
		out = append(out, snap.Panels...)
	case Selected:
		if p, ok := snap.Panel(snap.Selected); ok && snap.Selected != "" {
			out = append(out, p)
		}
	case Multi:
		for _, p := range snap.Panels {
			if snap.InMultiSend(p.ID) {
				out = append(out, p)
			}
		}
	}
	return out
}

// PromptTargets returns the panels a prompt is applied to: the multi-send
// set when non-empty, otherwise the selected panel, otherwise every panel.
func PromptTargets(snap conversation.Snapshot) []conversation.Panel {
	if len(snap.MultiSend) > 0 {
		if targets := ResolveTargets(snap, Multi); len(targets) > 0 {
			return targets
		}
	}
	if targets := ResolveTargets(snap, Selected); len(targets) > 0 {
		return targets
	}
	return ResolveTargets(snap, All)
}
