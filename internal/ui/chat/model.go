// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/koharyou1215/multi-chat/internal/cli"
	"github.com/koharyou1215/multi-chat/internal/conversation"
	"github.com/koharyou1215/multi-chat/internal/dispatch"
	"github.com/koharyou1215/multi-chat/internal/tasks"
	"github.com/koharyou1215/multi-chat/internal/ui/styles"
)

const (
	inputHeight = 3

	// noticeMaxLines caps the command output box.
	noticeMaxLines = 10

	placeholderReady    = "Type a message, or /help for commands..."
	placeholderDisabled = "No API key: use /key set <key> to enable sending"
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the panel grid.
type Model struct {
	ctx     context.Context
	app     *cli.App
	session *cli.Session
	out     *syncBuffer

	theme  *styles.Theme
	keyMap KeyMap
	help   help.Model

	// Store subscription.
	updates     <-chan struct{}
	unsubscribe func()

	// Task ledger subscription and the last settled cycle per panel.
	settled     <-chan tasks.TaskNotification
	stopSettled func()
	outcomes    map[string]tasks.TaskNotification

	snapshot conversation.Snapshot
	views    map[string]*panelView
	focus    int
	md       *markdownCache

	input   textarea.Model
	spinner spinner.Model

	width  int
	height int

	// Cached session state. The session is not read while a command runs.
	policy dispatch.Policy
	staged int

	notice     string
	status     string
	statusKind statusKind

	running  bool // a slash command is executing
	spinning bool
	showHelp bool
}

// panelView is the scroll state of one panel.
type panelView struct {
	viewport viewport.Model

	// follow keeps the view pinned to the newest message.
	follow bool

	// Rendered for this content width and transcript.
	width   int
	version string
}

// New creates the grid model over app. Call Close once the program exits.
func New(ctx context.Context, app *cli.App, theme *styles.Theme) Model {
	out := &syncBuffer{}
	session := cli.NewSession(app, out)

	ta := textarea.New()
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 16000
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	h := help.New()
	h.Styles.ShortKey = theme.ShortcutKey
	h.Styles.ShortDesc = theme.ShortcutDesc
	h.Styles.FullKey = theme.ShortcutKey
	h.Styles.FullDesc = theme.ShortcutDesc

	updates, unsubscribe := app.Store.Subscribe()
	settled, stopSettled := app.Queue.Subscribe()

	m := Model{
		ctx:         ctx,
		app:         app,
		session:     session,
		out:         out,
		theme:       theme,
		keyMap:      DefaultKeyMap(),
		help:        h,
		updates:     updates,
		unsubscribe: unsubscribe,
		settled:     settled,
		stopSettled: stopSettled,
		outcomes:    make(map[string]tasks.TaskNotification),
		views:       make(map[string]*panelView),
		md:          newMarkdownCache(theme.GlamourStyle(), app.Config.UI.WordWrap),
		input:       ta,
		spinner:     sp,
		policy:      session.Policy(),
	}
	m.refresh()
	if sel := m.snapshot.Selected; sel != "" {
		for i, p := range m.snapshot.Panels {
			if p.ID == sel {
				m.focus = i
			}
		}
	}
	return m
}

// Close releases the store and task subscriptions.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if m.stopSettled != nil {
		m.stopSettled()
	}
}

// Init starts listening for store changes and settled cycles.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, waitForStore(m.updates), waitForSettle(m.settled)}
	if m.snapshot.AnyLoading() {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// STATE HELPERS
// =============================================================================

// refresh re-reads the store and rebuilds every panel view whose transcript
// changed.
func (m *Model) refresh() {
	m.snapshot = m.app.Store.Snapshot()

	live := make(map[string]bool, len(m.snapshot.Panels))
	for _, p := range m.snapshot.Panels {
		live[p.ID] = true
		if _, ok := m.views[p.ID]; !ok {
			m.views[p.ID] = &panelView{viewport: viewport.New(0, 0), follow: true}
		}
	}
	for id := range m.views {
		if !live[id] {
			delete(m.views, id)
		}
	}
	for id := range m.outcomes {
		if !live[id] {
			delete(m.outcomes, id)
		}
	}
	if m.focus >= len(m.snapshot.Panels) {
		m.focus = len(m.snapshot.Panels) - 1
	}
	if m.focus < 0 {
		m.focus = 0
	}

	if m.app.Gate.Configured() {
		m.input.Placeholder = placeholderReady
	} else {
		m.input.Placeholder = placeholderDisabled
	}
	m.layout()
}

// focused returns the panel holding keyboard focus.
func (m Model) focused() (conversation.Panel, bool) {
	if m.focus < 0 || m.focus >= len(m.snapshot.Panels) {
		return conversation.Panel{}, false
	}
	return m.snapshot.Panels[m.focus], true
}

func (m *Model) focusedView() *panelView {
	p, ok := m.focused()
	if !ok {
		return nil
	}
	return m.views[p.ID]
}

func (m *Model) setStatus(text string, kind statusKind) {
	m.status = text
	m.statusKind = kind
}

// syncSession copies the session state shown in the header.
func (m *Model) syncSession() {
	m.policy = m.session.Policy()
	m.staged = len(m.session.Staged())
}

// nextPolicy cycles all, selected, multi.
func nextPolicy(p dispatch.Policy) dispatch.Policy {
	switch p {
	case dispatch.All:
		return dispatch.Selected
	case dispatch.Selected:
		return dispatch.Multi
	default:
		return dispatch.All
	}
}
