// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"strings"

	"github.com/koharyou1215/multi-chat/internal/model"
)

// Fixed generation parameters.
const (
	Temperature = 0.7
	MaxTokens   = 4000
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is one wire turn. Content is either a string or a slice of
// ContentPart.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of a multi-part user turn.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references image content by URL (data: or http(s)).
type ImageURL struct {
	URL string `json:"url"`
}

// Content part types.
const (
	PartText  = "text"
	PartImage = "image_url"
)

// Text returns the content when it is a plain string.
func (m ChatMessage) Text() (string, bool) {
	s, ok := m.Content.(string)
	return s, ok
}

// Parts returns the content when it is multi-part.
func (m ChatMessage) Parts() ([]ContentPart, bool) {
	p, ok := m.Content.([]ContentPart)
	return p, ok
}

// ChatRequest is the chat-completions request body.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// chatResponse is the subset of the reply the client consumes. Content is a
// pointer so a null or missing content is distinguishable from "".
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// =============================================================================
// REQUEST CONSTRUCTION
// =============================================================================

// BuildMessages converts a panel transcript into wire turns. A non-empty
// system prompt is prepended as a system turn. A user turn with image
// attachments becomes multi-part: a text part if the body is not blank,
// then one image part per image attachment in order. Every other turn is
// plain text; non-image attachments are not sent.
func BuildMessages(history []model.Message, systemPrompt string) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, ChatMessage{Role: string(model.RoleSystem), Content: systemPrompt})
	}

	for _, m := range history {
		images := m.ImageAttachments()
		if m.Role != model.RoleUser || len(images) == 0 {
			msgs = append(msgs, ChatMessage{Role: string(m.Role), Content: m.Content})
			continue
		}

		parts := make([]ContentPart, 0, len(images)+1)
		if strings.TrimSpace(m.Content) != "" {
			parts = append(parts, ContentPart{Type: PartText, Text: m.Content})
		}
		for _, a := range images {
			parts = append(parts, ContentPart{Type: PartImage, ImageURL: &ImageURL{URL: a.Locator.URL}})
		}
		msgs = append(msgs, ChatMessage{Role: string(model.RoleUser), Content: parts})
	}
	return msgs
}

// NewChatRequest builds the request body with the fixed parameters.
func NewChatRequest(modelID string, messages []ChatMessage) ChatRequest {
	return ChatRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		Stream:      false,
	}
}

// =============================================================================
// RESPONSE VALIDATION
// =============================================================================

// decodeChatResponse validates a 2xx body and returns the first choice's
// content. Undecodable bodies fail closed as ProviderError; an empty choice
// list or null content is ErrEmptyResponse.
func decodeChatResponse(status int, body []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", newProviderError(status, body)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", ErrEmptyResponse
	}
	return *resp.Choices[0].Message.Content, nil
}
