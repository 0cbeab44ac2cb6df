// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/koharyou1215/multi-chat/internal/credential"
	"github.com/koharyou1215/multi-chat/internal/model"
)

// SDKClient implements Client through the official OpenAI Go SDK pointed at
// an OpenAI-compatible endpoint. SDK retries are disabled.
type SDKClient struct {
	keys   KeySource
	client openai.Client
	pacer  *pacer
}

var _ Client = (*SDKClient)(nil)

// NewSDKClient creates an SDK-backed client. The key is attached per request
// so key changes apply immediately.
func NewSDKClient(keys KeySource, opts Options) *SDKClient {
	reqOpts := []option.RequestOption{
		option.WithBaseURL(opts.baseURL() + "/"),
		option.WithHTTPClient(opts.httpClient()),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", userAgent),
	}
	if opts.SiteURL != "" {
		reqOpts = append(reqOpts, option.WithHeader("HTTP-Referer", opts.SiteURL))
	}
	if opts.SiteName != "" {
		reqOpts = append(reqOpts, option.WithHeader("X-Title", opts.SiteName))
	}

	return &SDKClient{
		keys:   keys,
		client: openai.NewClient(reqOpts...),
		pacer:  newPacer(opts.RequestsPerSecond),
	}
}

// GenerateResponse implements Provider.
func (c *SDKClient) GenerateResponse(ctx context.Context, modelID string, history []model.Message, systemPrompt string) (string, error) {
	key := c.keys.APIKey()
	if key == "" {
		return "", credential.ErrMissingCredential
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Model:       modelID,
		Messages:    toSDKMessages(BuildMessages(history, systemPrompt)),
		Temperature: openai.Float(Temperature),
		MaxTokens:   openai.Int(MaxTokens),
	}

	start := time.Now()
	var raw *http.Response
	resp, err := c.client.Chat.Completions.New(ctx, params, option.WithAPIKey(key), option.WithResponseInto(&raw))
	if err != nil {
		return "", mapSDKError("POST /chat/completions", raw, err)
	}
	slog.DebugContext(ctx, "provider response", "backend", "openai-sdk", "model", modelID, "duration", time.Since(start))

	if len(resp.Choices) == 0 || !resp.Choices[0].Message.JSON.Content.Valid() {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// ValidateCredential implements Provider.
func (c *SDKClient) ValidateCredential(ctx context.Context) bool {
	key := c.keys.APIKey()
	if key == "" {
		return false
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return false
	}
	if _, err := c.client.Models.List(ctx, option.WithAPIKey(key)); err != nil {
		slog.DebugContext(ctx, "credential probe failed", "backend", "openai-sdk", "error", err)
		return false
	}
	return true
}

// ListModels returns the provider's model listing. The SDK model type only
// carries ids, so names mirror ids.
func (c *SDKClient) ListModels(ctx context.Context) ([]RemoteModel, error) {
	key := c.keys.APIKey()
	if key == "" {
		return nil, credential.ErrMissingCredential
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	var raw *http.Response
	page, err := c.client.Models.List(ctx, option.WithAPIKey(key), option.WithResponseInto(&raw))
	if err != nil {
		return nil, mapSDKError("GET /models", raw, err)
	}
	models := make([]RemoteModel, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, RemoteModel{ID: m.ID, Name: m.ID})
	}
	return models, nil
}

// toSDKMessages converts wire turns to SDK message params.
func toSDKMessages(msgs []ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if parts, ok := m.Parts(); ok {
			sdkParts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(parts))
			for _, p := range parts {
				switch p.Type {
				case PartText:
					sdkParts = append(sdkParts, openai.TextContentPart(p.Text))
				case PartImage:
					sdkParts = append(sdkParts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: p.ImageURL.URL}))
				}
			}
			out = append(out, openai.UserMessage(sdkParts))
			continue
		}

		text, _ := m.Text()
		switch m.Role {
		case string(model.RoleSystem):
			out = append(out, openai.SystemMessage(text))
		case string(model.RoleAssistant):
			out = append(out, openai.AssistantMessage(text))
		default:
			out = append(out, openai.UserMessage(text))
		}
	}
	return out
}

// mapSDKError maps a failed SDK call. Any call that produced a response
// becomes a ProviderError carrying its status and body; the SDK only builds
// *openai.Error for JSON error envelopes, so raw covers plain-text bodies
// and undecodable 2xx replies. Calls without a response are TransportErrors.
func mapSDKError(op string, raw *http.Response, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		pe := &ProviderError{
			Status:  apiErr.StatusCode,
			Body:    apiErr.RawJSON(),
			Code:    apiErr.Code,
			Message: apiErr.Message,
		}
		if body := drainBody(raw); body != "" {
			pe.Body = body
		}
		return pe
	}
	if raw != nil && raw.StatusCode != 0 {
		pe := newProviderError(raw.StatusCode, []byte(drainBody(raw)))
		if pe.Body == "" {
			pe.Body = err.Error()
		}
		return pe
	}
	return &TransportError{Op: op, Err: err}
}

// drainBody reads what is left of a response body, bounded by
// MaxResponseSize.
func drainBody(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	resp.Body.Close()
	return string(data)
}
