// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// MODEL TYPE
// =============================================================================

// DefaultModelID is bound to every freshly created panel unless configured
// otherwise.
const DefaultModelID = "anthropic/claude-sonnet-4"

// Model describes one catalog entry. The remote service is authoritative for
// which ids actually exist; the catalog is display metadata only.
type Model struct {
	// ID is the model identifier sent on the wire
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Group is the provider family label used for grouping in pickers
	Group string `json:"group"`

	Description string `json:"description,omitempty"`

	// ContextWindow is the maximum context size in tokens
	ContextWindow int `json:"context_window"`

	// CostPer1K is the advertised cost per 1000 tokens in dollars
	CostPer1K float64 `json:"cost_per_1k"`
}

// Group is a provider family and its models, in catalog order.
type Group struct {
	Name   string
	Models []Model
}

// =============================================================================
// CATALOG
// =============================================================================

const (
	groupGoogle      = "Google (Direct)"
	groupAnthropic   = "Anthropic (OpenRouter)"
	groupXAI         = "xAI (OpenRouter)"
	groupOpenAI      = "OpenAI (OpenRouter)"
	groupDeepSeek    = "DeepSeek (OpenRouter)"
	groupStandard    = "Standard (OpenRouter)"
	groupSpecialized = "Specialized (OpenRouter)"
)

var catalog = []Model{
	// Google
	{ID: "google/gemini-2.5-pro", Name: "Gemini 2.5 Pro", Group: groupGoogle,
		Description: "Google's most capable model", ContextWindow: 1048576, CostPer1K: 7.0},
	{ID: "google/gemini-2.5-flash", Name: "Gemini 2.5 Flash", Group: groupGoogle,
		Description: "Fast responses", ContextWindow: 1048576, CostPer1K: 0.3},
	{ID: "google/gemini-2.5-flash-lite", Name: "Gemini 2.5 Flash Lite", Group: groupGoogle,
		Description: "Lightweight and efficient", ContextWindow: 1048576, CostPer1K: 0.075},

	// Anthropic
	{ID: "anthropic/claude-opus-4", Name: "Claude Opus 4", Group: groupAnthropic,
		Description: "Most capable Claude", ContextWindow: 200000, CostPer1K: 60.0},
	{ID: "anthropic/claude-sonnet-4", Name: "Claude Sonnet 4", Group: groupAnthropic,
		Description: "Balanced Claude", ContextWindow: 200000, CostPer1K: 15.0},

	// xAI
	{ID: "x-ai/grok-4", Name: "Grok-4", Group: groupXAI,
		Description: "xAI's latest model", ContextWindow: 131072, CostPer1K: 15.0},
	{ID: "z-ai/glm-4.5", Name: "GLM-4.5", Group: groupXAI,
		Description: "High-performance GLM model", ContextWindow: 32768, CostPer1K: 5.0},
	{ID: "x-ai/grok-code-fast-1", Name: "Grok Code Fast", Group: groupXAI,
		Description: "Fast model tuned for coding", ContextWindow: 32768, CostPer1K: 5.0},

	// OpenAI
	{ID: "openai/gpt-5-chat", Name: "GPT-5", Group: groupOpenAI,
		Description: "OpenAI's latest model", ContextWindow: 128000, CostPer1K: 30.0},
	{ID: "openai/gpt-5-mini", Name: "GPT-5 Mini", Group: groupOpenAI,
		Description: "Lightweight GPT-5", ContextWindow: 128000, CostPer1K: 3.0},

	// DeepSeek
	{ID: "deepseek/deepseek-chat-v3.1", Name: "DeepSeek Chat v3", Group: groupDeepSeek,
		Description: "Conversation-focused DeepSeek", ContextWindow: 64000, CostPer1K: 0.55},
	{ID: "deepcogito/cogito-v2-preview-deepseek-671b", Name: "DeepSeek 671B", Group: groupDeepSeek,
		Description: "Large DeepSeek model", ContextWindow: 64000, CostPer1K: 7.5},

	// Standard
	{ID: "mistralai/mistral-medium-3.1", Name: "Mistral Medium 3.1", Group: groupStandard,
		Description: "Mid-size Mistral", ContextWindow: 128000, CostPer1K: 2.7},
	{ID: "meta-llama/llama-4-maverick", Name: "Llama 4 Maverick", Group: groupStandard,
		Description: "Meta's latest Llama", ContextWindow: 131072, CostPer1K: 0.27},

	// Specialized
	{ID: "qwen/qwen3-30b-a3b-thinking-2507", Name: "Qwen3 30B A3B Thinking", Group: groupSpecialized,
		Description: "Reasoning-focused model", ContextWindow: 32768, CostPer1K: 0.90},
	{ID: "qwen/qwen3-30b-a3b-instruct-2507", Name: "Qwen3 30B A3B", Group: groupSpecialized,
		Description: "Instruction-following model", ContextWindow: 32768, CostPer1K: 0.90},
	{ID: "moonshotai/kimi-k2", Name: "Kimi K2", Group: groupSpecialized,
		Description: "Moonshot's knowledge model", ContextWindow: 200000, CostPer1K: 0.80},
}

// All returns every catalog entry in catalog order. The slice is a copy.
func All() []Model {
	out := make([]Model, len(catalog))
	copy(out, catalog)
	return out
}

// ByID looks up a catalog entry.
func ByID(id string) (Model, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// GroupedByProvider returns the catalog grouped by provider family. Groups
// appear in order of first occurrence; models keep catalog order inside a
// group.
func GroupedByProvider() []Group {
	var groups []Group
	index := make(map[string]int)
	for _, m := range catalog {
		i, ok := index[m.Group]
		if !ok {
			i = len(groups)
			index[m.Group] = i
			groups = append(groups, Group{Name: m.Group})
		}
		groups[i].Models = append(groups[i].Models, m)
	}
	return groups
}

// DisplayName returns the display name for id, or id itself when unknown.
func DisplayName(id string) string {
	if m, ok := ByID(id); ok {
		return m.Name
	}
	return id
}

// Known reports whether id is in the catalog.
func Known(id string) bool {
	_, ok := ByID(id)
	return ok
}

// =============================================================================
// DISPLAY HELPERS
// =============================================================================

// CostString formats the advertised cost for display.
func (m Model) CostString() string {
	if m.CostPer1K == 0 {
		return "free"
	}
	return fmt.Sprintf("$%.3f/1K", m.CostPer1K)
}

// ContextString formats the context window ("200K", "1M").
func (m Model) ContextString() string {
	switch {
	case m.ContextWindow >= 1000000:
		return fmt.Sprintf("%dM", m.ContextWindow/1000000)
	case m.ContextWindow >= 1000:
		return fmt.Sprintf("%dK", m.ContextWindow/1000)
	case m.ContextWindow > 0:
		return fmt.Sprintf("%d", m.ContextWindow)
	default:
		return "?"
	}
}

// Vendor returns the vendor prefix of the model id ("anthropic" for
// "anthropic/claude-sonnet-4").
func (m Model) Vendor() string {
	if i := strings.IndexByte(m.ID, '/'); i > 0 {
		return m.ID[:i]
	}
	return ""
}
