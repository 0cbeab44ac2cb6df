// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/koharyou1215/multi-chat/internal/conversation"
	"github.com/koharyou1215/multi-chat/internal/model"
	"github.com/koharyou1215/multi-chat/internal/util"
)

// =============================================================================
// TRANSCRIPT TYPES
// =============================================================================

// Transcript is an exportable copy of one panel. Attachment content is
// session-bound and is never written; only its metadata is kept.
type Transcript struct {
	PanelID     string              `json:"panel_id"`
	ModelID     string              `json:"model_id"`
	ModelName   string              `json:"model_name"`
	PromptTitle string              `json:"prompt_title,omitempty"`
	Prompt      string              `json:"system_prompt,omitempty"`
	ExportedAt  time.Time           `json:"exported_at"`
	Messages    []TranscriptMessage `json:"messages"`
}

// TranscriptMessage is one exported turn.
type TranscriptMessage struct {
	ID          string               `json:"id"`
	Role        string               `json:"role"`
	Content     string               `json:"content"`
	Timestamp   time.Time            `json:"timestamp"`
	ModelID     string               `json:"model_id,omitempty"`
	IsError     bool                 `json:"is_error,omitempty"`
	Attachments []TranscriptFileMeta `json:"attachments,omitempty"`
}

// TranscriptFileMeta describes an attachment without its content.
type TranscriptFileMeta struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	MIMEType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size"`
}

// Format is an export file format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
)

// ParseFormat accepts "md", "markdown" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "md", "markdown", "":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want md or json)", s)
	}
}

// NewTranscript copies p into a Transcript.
func NewTranscript(p conversation.Panel) Transcript {
	t := Transcript{
		PanelID:    p.ID,
		ModelID:    p.ModelID,
		ModelName:  model.DisplayName(p.ModelID),
		ExportedAt: time.Now(),
		Messages:   make([]TranscriptMessage, 0, len(p.Messages)),
	}
	if p.Prompt != nil {
		t.PromptTitle = p.Prompt.Title
		t.Prompt = p.Prompt.Content
	}
	for _, m := range p.Messages {
		tm := TranscriptMessage{
			ID:        m.ID,
			Role:      m.Role.String(),
			Content:   m.Content,
			Timestamp: m.Timestamp,
			ModelID:   m.ModelID,
			IsError:   m.IsError,
		}
		for _, a := range m.Attachments {
			tm.Attachments = append(tm.Attachments, TranscriptFileMeta{
				Name: a.Name, Kind: string(a.Kind), MIMEType: a.MIMEType, Size: a.Size,
			})
		}
		t.Messages = append(t.Messages, tm)
	}
	return t
}

// =============================================================================
// RENDERING
// =============================================================================

// Markdown renders the transcript as Markdown.
func (t Transcript) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# " + t.PanelID + " · " + t.ModelName + "\n\n")
	sb.WriteString("Model: `" + t.ModelID + "`  \n")
	sb.WriteString("Exported: " + t.ExportedAt.Format(time.RFC3339) + "\n\n")
	if t.Prompt != "" {
		sb.WriteString("> **Prompt: " + t.PromptTitle + "**\n>\n")
		for _, line := range strings.Split(t.Prompt, "\n") {
			sb.WriteString("> " + line + "\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("---\n\n")

	for _, m := range t.Messages {
		role := "**" + model.Role(m.Role).DisplayName() + "**"
		if m.IsError {
			role = "**Error**"
		}
		sb.WriteString(role + " (" + m.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
		for _, a := range m.Attachments {
			sb.WriteString(fmt.Sprintf("\n- 📎 %s (%s, %d bytes)", a.Name, a.MIMEType, a.Size))
		}
		if len(m.Attachments) > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("\n---\n\n")
	}
	return sb.String()
}

// JSON renders the transcript as indented JSON.
func (t Transcript) JSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// Render encodes the transcript in format.
func (t Transcript) Render(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return t.JSON()
	case FormatMarkdown:
		return []byte(t.Markdown()), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// =============================================================================
// EXPORT
// =============================================================================

// Export writes the transcript to dir as <panel>-chat-<timestamp>.<ext>
// and returns the file path.
func Export(dir string, t Transcript, format Format) (string, error) {
	data, err := t.Render(format)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-chat-%s.%s", t.PanelID, t.ExportedAt.Format("20060102-150405"), format)
	path := filepath.Join(dir, name)
	if err := util.WritePrivateFile(path, data); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}
	return path, nil
}

// =============================================================================
// PROMPT LIST FORMATTING
// =============================================================================

// FormatPromptList formats prompts as a plain table.
func FormatPromptList(prompts []model.Prompt) string {
	if len(prompts) == 0 {
		return "No prompts saved."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("ID", 10) + " " + util.PadRight("Title", 28) + " " + util.PadRight("Updated", 16) + " Tags\n")
	sb.WriteString(strings.Repeat("-", 70) + "\n")
	for _, p := range prompts {
		tags := ""
		if len(p.Tags) > 0 {
			tags = "#" + strings.Join(p.Tags, " #")
		}
		sb.WriteString(util.PadRight(p.ID[:min(8, len(p.ID))], 10) + " " +
			util.PadRight(util.TruncateWidth(p.Title, 28), 28) + " " +
			util.PadRight(p.UpdatedAt.Format("2006-01-02 15:04"), 16) + " " +
			tags + "\n")
	}
	return sb.String()
}
