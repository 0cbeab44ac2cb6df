// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/koharyou1215/multi-chat/internal/conversation"
	"github.com/koharyou1215/multi-chat/internal/model"
)

// maxCachedRenders bounds the markdown cache; it is reset when exceeded.
const maxCachedRenders = 512

// =============================================================================
// MARKDOWN
// =============================================================================

// markdownCache renders assistant replies once per message and width.
// Replies never change after they are appended, so the id is a stable key.
type markdownCache struct {
	style     string
	wrap      int
	renderers map[int]*glamour.TermRenderer
	rendered  map[string]string
}

func newMarkdownCache(style string, wrap int) *markdownCache {
	return &markdownCache{
		style:     style,
		wrap:      wrap,
		renderers: make(map[int]*glamour.TermRenderer),
		rendered:  make(map[string]string),
	}
}

// Render returns content as styled markdown fitting width. Rendering
// failures fall back to plain wrapped text.
func (c *markdownCache) Render(id, content string, width int) string {
	if c.wrap > 0 && c.wrap < width {
		width = c.wrap
	}
	key := fmt.Sprintf("%s:%d", id, width)
	if s, ok := c.rendered[key]; ok {
		return s
	}

	out, err := c.render(content, width)
	if err != nil {
		out = lipgloss.NewStyle().Width(width).Render(content)
	}
	if len(c.rendered) >= maxCachedRenders {
		c.rendered = make(map[string]string)
	}
	c.rendered[key] = out
	return out
}

func (c *markdownCache) render(content string, width int) (string, error) {
	r, ok := c.renderers[width]
	if !ok {
		var err error
		// The standard styles add a two-column margin on each side.
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle(c.style),
			glamour.WithWordWrap(max(width-4, 10)),
		)
		if err != nil {
			return "", err
		}
		c.renderers[width] = r
	}
	s, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return strings.Trim(s, "\n"), nil
}

// =============================================================================
// TRANSCRIPTS
// =============================================================================

// transcriptVersion changes whenever a panel's messages do.
func transcriptVersion(p conversation.Panel) string {
	last, ok := p.LastMessage()
	if !ok {
		return "0"
	}
	return fmt.Sprintf("%d:%s", len(p.Messages), last.ID)
}

// renderTranscript lays out every message of p for a viewport of width.
func (m Model) renderTranscript(p conversation.Panel, width int) string {
	if len(p.Messages) == 0 {
		hint := "No messages yet."
		if info, ok := model.ByID(p.ModelID); ok {
			hint += fmt.Sprintf("\n\n%s\ncontext %s · %s", info.Name, info.ContextString(), info.CostString())
		}
		return m.theme.PanelEmpty.Width(width).Render(hint)
	}

	blocks := make([]string, 0, len(p.Messages))
	for _, msg := range p.Messages {
		blocks = append(blocks, m.renderMessage(msg, width))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderMessage(msg model.Message, width int) string {
	var label string
	if msg.Role == model.RoleUser {
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	} else {
		label = m.theme.AssistantLabel.Render(model.DisplayName(msg.ModelID))
	}
	lines := []string{label + " " + m.theme.Timestamp.Render(msg.Timestamp.Local().Format("15:04"))}

	switch {
	case msg.IsError:
		errStyle := m.theme.ErrorBody
		lines = append(lines, errStyle.Width(width-errStyle.GetHorizontalBorderSize()).Render(msg.Content))
	case msg.Role == model.RoleAssistant:
		lines = append(lines, m.md.Render(msg.ID, msg.Content, width))
	case msg.Content != "":
		lines = append(lines, m.theme.MessageBody.Width(width).Render(msg.Content))
	}

	for _, a := range msg.Attachments {
		lines = append(lines, m.theme.Attachment.Render(fmt.Sprintf("[%s] %s", a.Kind, a.Name)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
