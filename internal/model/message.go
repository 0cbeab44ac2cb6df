// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/koharyou1215/multi-chat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem only appears on the wire; panels never store system turns.
	RoleSystem Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// ErrorPrefix starts the content of every error turn.
const ErrorPrefix = "Error: "

// Message is one turn of a panel transcript. Messages are immutable once
// appended; stores hand out copies.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Owning panel and the model bound to it when the turn was created.
	PanelID string `json:"panel_id"`
	ModelID string `json:"model_id,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`

	// IsError marks assistant turns produced by a failed send cycle.
	IsError bool `json:"is_error,omitempty"`
}

// NewMessageID returns a new lexically sortable message id.
func NewMessageID() string {
	return ulid.Make().String()
}

// NewUserMessage creates a user turn. The attachment slice is copied.
func NewUserMessage(panelID, modelID, content string, attachments []Attachment) Message {
	return Message{
		ID:          NewMessageID(),
		Role:        RoleUser,
		Content:     content,
		Timestamp:   time.Now(),
		PanelID:     panelID,
		ModelID:     modelID,
		Attachments: cloneAttachments(attachments),
	}
}

// NewAssistantMessage creates an assistant turn carrying a model reply.
func NewAssistantMessage(panelID, modelID, content string) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
		PanelID:   panelID,
		ModelID:   modelID,
	}
}

// NewErrorMessage creates an assistant-role turn describing a failed cycle.
func NewErrorMessage(panelID, modelID string, err error) Message {
	msg := NewAssistantMessage(panelID, modelID, ErrorPrefix+describe(err))
	msg.IsError = true
	return msg
}

func describe(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.Attachments = cloneAttachments(m.Attachments)
	return m
}

// ImageAttachments returns the attachments that are sent to the model as
// image parts: image MIME type and a non-empty locator.
func (m Message) ImageAttachments() []Attachment {
	var out []Attachment
	for _, a := range m.Attachments {
		if a.IsImage() && a.Locator.URL != "" {
			out = append(out, a)
		}
	}
	return out
}

// Preview returns the content on one line, cut to at most maxLen runes.
func (m Message) Preview(maxLen int) string {
	return util.TruncateRunes(util.SingleLine(m.Content), maxLen)
}

// CloneMessages deep-copies a message slice.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
