// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/koharyou1215/multi-chat/internal/cli"
	"github.com/koharyou1215/multi-chat/internal/conversation"
	"github.com/koharyou1215/multi-chat/internal/dispatch"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if v := m.focusedView(); v != nil {
			var cmd tea.Cmd
			v.viewport, cmd = v.viewport.Update(msg)
			v.follow = v.viewport.AtBottom()
			return m, cmd
		}
		return m, nil

	case StoreChangedMsg:
		m.refresh()
		cmds = append(cmds, waitForStore(m.updates))
		if m.snapshot.AnyLoading() && !m.spinning {
			m.spinning = true
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !m.snapshot.AnyLoading() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TaskSettledMsg:
		m.outcomes[msg.PanelID] = msg.TaskNotification
		return m, waitForSettle(m.settled)

	case BatchDoneMsg:
		m.handleBatchDone(msg)
		return m, nil

	case CommandDoneMsg:
		return m.handleCommandDone(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.layout()
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	store := m.app.Store

	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		m.layout()
		return m, nil

	case key.Matches(msg, m.keyMap.Dismiss):
		m.notice = ""
		m.status = ""
		m.layout()
		return m, nil

	case key.Matches(msg, m.keyMap.Send):
		return m.submit()

	case key.Matches(msg, m.keyMap.Newline):
		m.input.InsertString("\n")
		return m, nil

	case key.Matches(msg, m.keyMap.Complete) && m.completable():
		m.complete()
		return m, nil

	case key.Matches(msg, m.keyMap.FocusNext):
		if n := len(m.snapshot.Panels); n > 0 {
			m.focus = (m.focus + 1) % n
		}
		return m, nil

	case key.Matches(msg, m.keyMap.FocusPrev):
		if n := len(m.snapshot.Panels); n > 0 {
			m.focus = (m.focus - 1 + n) % n
		}
		return m, nil

	case key.Matches(msg, m.keyMap.CycleTarget):
		if m.running {
			m.setStatus("a command is still running", statusWarning)
			return m, nil
		}
		m.session.SetPolicy(nextPolicy(m.policy))
		m.syncSession()
		m.setStatus("target: "+m.policy.String(), statusInfo)
		return m, nil

	case key.Matches(msg, m.keyMap.Select):
		if p, ok := m.focused(); ok {
			if m.snapshot.Selected == p.ID {
				store.ClearSelection()
			} else {
				store.SetSelected(p.ID)
			}
			m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.ToggleMulti):
		if p, ok := m.focused(); ok {
			store.ToggleMultiSend(p.ID)
			m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.AddPanel):
		if n := store.PanelCount(); n < conversation.MaxPanels {
			store.SetPanelCount(n + 1)
			m.focus = n
			m.refresh()
		} else {
			m.setStatus(fmt.Sprintf("at most %d panels", conversation.MaxPanels), statusWarning)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.RemovePanel):
		if n := store.PanelCount(); n > conversation.MinPanels {
			store.SetPanelCount(n - 1)
			m.refresh()
		} else {
			m.setStatus("at least one panel is required", statusWarning)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.ClearPanel):
		if p, ok := m.focused(); ok {
			store.ClearMessages(p.ID)
			delete(m.outcomes, p.ID)
			m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp):
		if v := m.focusedView(); v != nil {
			v.viewport.ViewUp()
			v.follow = v.viewport.AtBottom()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		if v := m.focusedView(); v != nil {
			v.viewport.ViewDown()
			v.follow = v.viewport.AtBottom()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// SUBMIT
// =============================================================================

// submit runs a slash command or broadcasts the input to the target panels.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if m.running {
		m.setStatus("a command is still running", statusWarning)
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		m.running = true
		m.input.Reset()
		return m, runCommand(m.ctx, m.session, m.out, text)
	}

	batch, err := m.session.Submit(m.ctx, text)
	if err != nil {
		kind := statusError
		if errors.Is(err, cli.ErrSendDisabled) {
			kind = statusWarning
		}
		m.setStatus(err.Error(), kind)
		return m, nil
	}
	if batch.Len() == 0 {
		m.setStatus(fmt.Sprintf("no panels targeted by policy %q", m.policy), statusWarning)
		return m, nil
	}

	m.input.Reset()
	m.syncSession()
	m.setStatus(fmt.Sprintf("sent to %d panel(s)", batch.Len()), statusInfo)
	for _, v := range m.views {
		v.follow = true
	}
	return m, waitBatch(m.ctx, batch)
}

func (m *Model) handleBatchDone(msg BatchDoneMsg) {
	counts := make(map[dispatch.Outcome]int)
	for _, r := range msg.Results {
		counts[r.Outcome]++
	}
	text := fmt.Sprintf("replies: %d delivered", counts[dispatch.Delivered])
	kind := statusSuccess
	if n := counts[dispatch.Failed]; n > 0 {
		text += fmt.Sprintf(", %d failed", n)
		kind = statusWarning
	}
	if n := counts[dispatch.Skipped]; n > 0 {
		text += fmt.Sprintf(", %d skipped", n)
		kind = statusWarning
	}
	if counts[dispatch.Delivered] == 0 {
		kind = statusError
	}
	m.setStatus(text, kind)
}

func (m Model) handleCommandDone(msg CommandDoneMsg) (tea.Model, tea.Cmd) {
	m.running = false
	if msg.Quit {
		return m, tea.Quit
	}
	m.syncSession()
	m.notice = strings.TrimRight(msg.Output, "\n")
	if msg.Err != nil {
		slog.Debug("command failed", "command", msg.Line, "error", msg.Err)
		m.setStatus(msg.Err.Error(), statusError)
	} else {
		m.status = ""
	}
	m.refresh()
	return m, nil
}

// =============================================================================
// COMPLETION
// =============================================================================

// completable reports whether the input is a bare command name.
func (m Model) completable() bool {
	v := m.input.Value()
	return strings.HasPrefix(v, "/") && !strings.ContainsAny(v, " \n")
}

// complete extends the command name to the longest unambiguous prefix and
// lists the candidates when more than one remains.
func (m *Model) complete() {
	prefix := strings.ToLower(strings.TrimPrefix(m.input.Value(), "/"))
	var matches []string
	for _, name := range m.session.CommandNames() {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	sort.Strings(matches)

	switch len(matches) {
	case 0:
		if hint := cli.SuggestCommand(prefix, m.session.CommandNames()); hint != "" {
			m.setStatus("did you mean /"+hint+"?", statusInfo)
		} else {
			m.setStatus("no matching command", statusWarning)
		}
	case 1:
		m.input.SetValue("/" + matches[0] + " ")
		m.input.CursorEnd()
	default:
		common := matches[0]
		for _, name := range matches[1:] {
			for !strings.HasPrefix(name, common) {
				common = common[:len(common)-1]
			}
		}
		m.input.SetValue("/" + common)
		m.input.CursorEnd()
		m.setStatus("/"+strings.Join(matches, "  /"), statusInfo)
	}
}
