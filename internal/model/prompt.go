// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// Prompt is a reusable system prompt from the library. Panels hold copies,
// so library edits never reach an already-bound panel.
type Prompt struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Tags            []string  `json:"tags,omitempty"`
	IsOptimized     bool      `json:"is_optimized,omitempty"`
	OriginalContent string    `json:"original_content,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewPrompt creates a prompt with a fresh id and timestamps.
func NewPrompt(title, content string, tags []string) Prompt {
	now := time.Now()
	return Prompt{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Tags:      append([]string(nil), tags...),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the prompt.
func (p Prompt) Clone() Prompt {
	p.Tags = append([]string(nil), p.Tags...)
	return p
}

// MaxPromptHistory caps the prompt usage history.
const MaxPromptHistory = 100

// PromptUsage records one application of a prompt to a set of panels.
type PromptUsage struct {
	ID        string    `json:"id"`
	PromptID  string    `json:"prompt_id"`
	Title     string    `json:"title"`
	PanelIDs  []string  `json:"panel_ids"`
	AppliedAt time.Time `json:"applied_at"`
}

// NewPromptUsage creates a history entry for prompt applied to panelIDs now.
func NewPromptUsage(p Prompt, panelIDs []string) PromptUsage {
	return PromptUsage{
		ID:        uuid.NewString(),
		PromptID:  p.ID,
		Title:     p.Title,
		PanelIDs:  append([]string(nil), panelIDs...),
		AppliedAt: time.Now(),
	}
}
