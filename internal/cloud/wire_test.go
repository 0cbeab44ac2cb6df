// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koharyou1215/multi-chat/internal/config"
	"github.com/koharyou1215/multi-chat/internal/model"
)

func configFor(backend string) config.CloudConfig {
	cfg := config.Default().Cloud
	cfg.Backend = backend
	return cfg
}

func image(name, url string) model.Attachment {
	return model.Attachment{ID: name, Kind: model.KindImage, Name: name, MIMEType: "image/png", Locator: model.Locator{URL: url}}
}

func TestBuildMessages(t *testing.T) {
	pdf := model.Attachment{Name: "doc.pdf", Kind: model.KindFile, MIMEType: "application/pdf", Locator: model.Locator{URL: "data:application/pdf;base64,AA=="}}

	tests := []struct {
		name    string
		history []model.Message
		system  string
		want    string
	}{
		{
			name:    "plain text turn",
			history: []model.Message{{Role: model.RoleUser, Content: "hello"}},
			want:    `[{"role":"user","content":"hello"}]`,
		},
		{
			name:    "system prompt prepended",
			history: []model.Message{{Role: model.RoleUser, Content: "hello"}},
			system:  "be brief",
			want:    `[{"role":"system","content":"be brief"},{"role":"user","content":"hello"}]`,
		},
		{
			name:    "image only has no text part",
			history: []model.Message{{Role: model.RoleUser, Content: "", Attachments: []model.Attachment{image("a", "data:image/png;base64,AA==")}}},
			want:    `[{"role":"user","content":[{"type":"image_url","image_url":{"url":"data:image/png;base64,AA=="}}]}]`,
		},
		{
			name:    "blank text is dropped",
			history: []model.Message{{Role: model.RoleUser, Content: "  \n", Attachments: []model.Attachment{image("a", "https://x/a.png")}}},
			want:    `[{"role":"user","content":[{"type":"image_url","image_url":{"url":"https://x/a.png"}}]}]`,
		},
		{
			name: "text then images in order",
			history: []model.Message{{Role: model.RoleUser, Content: "compare", Attachments: []model.Attachment{
				image("a", "https://x/a.png"), pdf, image("b", "https://x/b.png"),
			}}},
			want: `[{"role":"user","content":[{"type":"text","text":"compare"},{"type":"image_url","image_url":{"url":"https://x/a.png"}},{"type":"image_url","image_url":{"url":"https://x/b.png"}}]}]`,
		},
		{
			name:    "non-image attachments omitted",
			history: []model.Message{{Role: model.RoleUser, Content: "read this", Attachments: []model.Attachment{pdf}}},
			want:    `[{"role":"user","content":"read this"}]`,
		},
		{
			name:    "image without locator is not an image part",
			history: []model.Message{{Role: model.RoleUser, Content: "look", Attachments: []model.Attachment{image("a", "")}}},
			want:    `[{"role":"user","content":"look"}]`,
		},
		{
			name: "assistant turns stay plain",
			history: []model.Message{
				{Role: model.RoleUser, Content: "q"},
				{Role: model.RoleAssistant, Content: "a", Attachments: []model.Attachment{image("a", "https://x/a.png")}},
			},
			want: `[{"role":"user","content":"q"},{"role":"assistant","content":"a"}]`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(BuildMessages(tc.history, tc.system))
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(data))
		})
	}
}

func TestBuildMessages_DoesNotMutateHistory(t *testing.T) {
	history := []model.Message{{Role: model.RoleUser, Content: "x", Attachments: []model.Attachment{image("a", "https://x/a.png")}}}
	_ = BuildMessages(history, "sys")
	assert.Len(t, history, 1)
	assert.Equal(t, "x", history[0].Content)
}

func TestNewChatRequest_FixedParameters(t *testing.T) {
	data, err := json.Marshal(NewChatRequest("m", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"m","messages":null,"temperature":0.7,"max_tokens":4000,"stream":false}`, string(data))
}

func TestDecodeChatResponse(t *testing.T) {
	got, err := decodeChatResponse(200, []byte(`{"choices":[{"message":{"content":"first"}},{"message":{"content":"second"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	_, err = decodeChatResponse(200, []byte(`<html>`))
	var pe *ProviderError
	assert.ErrorAs(t, err, &pe)
}

func TestProviderError_Message(t *testing.T) {
	err := newProviderError(429, []byte(`{"error":{"code":"rate_limit","message":"slow down"}}`))
	assert.Equal(t, "provider error [rate_limit] (HTTP 429): slow down", err.Error())

	err = newProviderError(500, []byte("boom"))
	assert.Equal(t, "provider error (HTTP 500): boom", err.Error())
}
