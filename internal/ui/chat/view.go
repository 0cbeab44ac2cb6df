// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/koharyou1215/multi-chat/internal/conversation"
	"github.com/koharyou1215/multi-chat/internal/credential"
	"github.com/koharyou1215/multi-chat/internal/dispatch"
	"github.com/koharyou1215/multi-chat/internal/model"
	"github.com/koharyou1215/multi-chat/internal/tasks"
)

// minGridHeight keeps the panels usable on short terminals.
const minGridHeight = 6

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	sections := []string{m.renderHeader(), m.renderGrid()}
	if m.notice != "" {
		sections = append(sections, m.renderNotice())
	}
	sections = append(sections,
		m.renderInput(),
		m.renderStatusBar(),
		m.help.View(m.keyMap),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// LAYOUT
// =============================================================================

// gridShape picks columns and rows for n panels. Narrow terminals stack
// panels vertically.
func gridShape(n, width int) (cols, rows int) {
	switch {
	case n <= 1:
		return 1, 1
	case n == 4 && width >= 60:
		return 2, 2
	case width >= 30*n:
		return n, 1
	default:
		return 1, n
	}
}

// span splits total into parts and returns the size of part i. The last
// part absorbs the remainder.
func span(total, parts, i int) int {
	size := total / parts
	if i == parts-1 {
		size += total % parts
	}
	return size
}

// cellSize returns the outer size of panel slot i.
func (m Model) cellSize(i int) (w, h int) {
	cols, rows := gridShape(len(m.snapshot.Panels), m.width)
	return span(m.width, cols, i%cols), span(m.gridHeight(), rows, i/cols)
}

// gridHeight is what remains after the fixed sections.
func (m Model) gridHeight() int {
	used := 1 + // header
		inputHeight + m.theme.InputContainer.GetVerticalFrameSize() +
		1 + // status bar
		lipgloss.Height(m.help.View(m.keyMap))
	if m.notice != "" {
		used += lipgloss.Height(m.renderNotice())
	}
	return max(m.height-used, minGridHeight)
}

// layout sizes every viewport and re-renders transcripts that changed.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.input.SetWidth(m.width - m.theme.InputContainer.GetHorizontalFrameSize())
	m.help.Width = m.width

	frame := m.theme.Panel
	for i, p := range m.snapshot.Panels {
		v := m.views[p.ID]
		cw, ch := m.cellSize(i)
		w := max(cw-frame.GetHorizontalFrameSize(), 1)
		h := max(ch-frame.GetVerticalFrameSize()-2, 1) // title and footer lines

		v.viewport.Width = w
		v.viewport.Height = h
		if version := transcriptVersion(p); v.width != w || v.version != version {
			v.viewport.SetContent(m.renderTranscript(p, w))
			v.width = w
			v.version = version
		}
		if v.follow {
			v.viewport.GotoBottom()
		}
	}
}

// =============================================================================
// SECTIONS
// =============================================================================

func (m Model) renderHeader() string {
	snap := m.snapshot
	target := m.policy.String()
	switch m.policy {
	case dispatch.Selected:
		if n, ok := conversation.PanelOrdinal(snap.Selected); ok {
			target += fmt.Sprintf(" (%d)", n)
		} else {
			target += " (none)"
		}
	case dispatch.Multi:
		target += fmt.Sprintf(" (%d)", len(snap.MultiSend))
	}

	left := m.theme.HeaderBrand.Render("multichat") +
		m.theme.HeaderInfo.Render(fmt.Sprintf("  panels: %d · target: %s", len(snap.Panels), target))

	status := m.app.Gate.Status()
	var key string
	switch {
	case !status.Configured:
		key = m.theme.WarningStyle.Render("key: not set")
	case status.State == credential.Invalid:
		key = m.theme.ErrorStyle.Render("key: invalid")
	default:
		key = m.theme.HeaderInfo.Render("key: " + status.State.String())
	}
	right := key
	if m.staged > 0 {
		right = m.theme.Attachment.Render(fmt.Sprintf("%d staged", m.staged)) + "  " + right
	}

	inner := m.width - m.theme.Header.GetHorizontalFrameSize()
	gap := max(inner-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderGrid() string {
	n := len(m.snapshot.Panels)
	if n == 0 {
		return ""
	}
	cols, rows := gridShape(n, m.width)

	rendered := make([]string, 0, rows)
	for r := 0; r < rows; r++ {
		var row []string
		for c := 0; c < cols; c++ {
			i := r*cols + c
			if i >= n {
				break
			}
			row = append(row, m.renderPanel(i))
		}
		rendered = append(rendered, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rendered...)
}

func (m Model) renderPanel(i int) string {
	p := m.snapshot.Panels[i]
	v := m.views[p.ID]
	selected := p.ID == m.snapshot.Selected
	multi := m.snapshot.InMultiSend(p.ID)

	style := m.theme.PanelStyle(selected, multi, i == m.focus)
	cw, ch := m.cellSize(i)
	inner := max(cw-style.GetHorizontalFrameSize(), 1)
	style = style.
		Width(cw - style.GetHorizontalBorderSize()).
		Height(ch - style.GetVerticalBorderSize())

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.renderPanelTitle(p, selected, multi, inner),
		v.viewport.View(),
		m.renderPanelFooter(p, v, inner),
	)
	return style.Render(body)
}

func (m Model) renderPanelTitle(p conversation.Panel, selected, multi bool, width int) string {
	var badges []string
	if selected {
		badges = append(badges, m.theme.SelectedBadge.Render("SEL"))
	}
	if multi {
		badges = append(badges, m.theme.PanelBadge.Render("MULTI"))
	}
	right := strings.Join(badges, " ")

	avail := width - lipgloss.Width(right)
	if right != "" {
		avail--
	}
	title := m.theme.PanelTitle.Render(runewidth.Truncate(p.Title(), max(avail, 1), "…"))
	gap := max(width-lipgloss.Width(title)-lipgloss.Width(right), 0)
	return title + strings.Repeat(" ", gap) + right
}

func (m Model) renderPanelFooter(p conversation.Panel, v *panelView, width int) string {
	var text string
	if p.Loading {
		text = m.spinner.View() + m.theme.PanelModel.Render(" waiting for "+model.DisplayName(p.ModelID))
	} else {
		text = m.theme.Timestamp.Render(fmt.Sprintf("%d messages", len(p.Messages)))
		if n, ok := m.outcomes[p.ID]; ok {
			text += "  " + m.renderOutcome(n)
		}
	}
	if !v.viewport.AtBottom() {
		text += m.theme.Timestamp.Render(fmt.Sprintf("  %3.f%%", v.viewport.ScrollPercent()*100))
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(text)
}

// renderOutcome summarizes the panel's last settled cycle.
func (m Model) renderOutcome(n tasks.TaskNotification) string {
	switch n.Status {
	case tasks.TaskStatusComplete:
		return m.theme.Timestamp.Render(fmt.Sprintf("replied in %.1fs", n.Duration.Seconds()))
	case tasks.TaskStatusFailed:
		return m.theme.ErrorStyle.Render(fmt.Sprintf("failed after %.1fs", n.Duration.Seconds()))
	case tasks.TaskStatusSkipped:
		return m.theme.WarningStyle.Render("skipped")
	}
	return ""
}

// renderNotice shows the tail of the last command's output.
func (m Model) renderNotice() string {
	lines := strings.Split(m.notice, "\n")
	if len(lines) > noticeMaxLines {
		lines = append([]string{fmt.Sprintf("... %d more lines", len(lines)-noticeMaxLines)}, lines[len(lines)-noticeMaxLines:]...)
	}
	style := m.theme.Notice
	return style.Width(m.width - style.GetHorizontalBorderSize()).Render(strings.Join(lines, "\n"))
}

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.running:
		left = m.theme.InfoStyle.Render("running command...")
	case m.status == "":
		left = m.theme.ShortcutDesc.Render(fmt.Sprintf("%d in flight", m.app.Queue.RunningCount()))
	default:
		left = m.theme.Status(m.statusKind, m.status)
	}
	right := m.theme.ShortcutDesc.Render(m.app.Queue.Summary())

	inner := m.width - m.theme.StatusBar.GetHorizontalFrameSize()
	if lipgloss.Width(left)+lipgloss.Width(right)+1 > inner {
		right = ""
	}
	gap := max(inner-lipgloss.Width(left)-lipgloss.Width(right), 0)
	return m.theme.StatusBar.Width(m.width).MaxHeight(1).Render(left + strings.Repeat(" ", gap) + right)
}
