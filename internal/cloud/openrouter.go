// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/koharyou1215/multi-chat/internal/credential"
	"github.com/koharyou1215/multi-chat/internal/model"
)

// OpenRouterClient talks to an OpenRouter-compatible chat-completions API
// with hand-built JSON.
type OpenRouterClient struct {
	keys       KeySource
	baseURL    string
	httpClient *http.Client
	siteURL    string
	siteName   string
	pacer      *pacer
}

var _ Client = (*OpenRouterClient)(nil)

// NewOpenRouterClient creates a client reading its key from keys on every
// request.
func NewOpenRouterClient(keys KeySource, opts Options) *OpenRouterClient {
	return &OpenRouterClient{
		keys:       keys,
		baseURL:    opts.baseURL(),
		httpClient: opts.httpClient(),
		siteURL:    opts.SiteURL,
		siteName:   opts.SiteName,
		pacer:      newPacer(opts.RequestsPerSecond),
	}
}

// BaseURL returns the API root in use.
func (c *OpenRouterClient) BaseURL() string {
	return c.baseURL
}

// setHeaders sets the headers every request carries.
func (c *OpenRouterClient) setHeaders(req *http.Request, key string) {
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

// =============================================================================
// CHAT COMPLETIONS
// =============================================================================

// GenerateResponse implements Provider.
func (c *OpenRouterClient) GenerateResponse(ctx context.Context, modelID string, history []model.Message, systemPrompt string) (string, error) {
	key := c.keys.APIKey()
	if key == "" {
		return "", credential.ErrMissingCredential
	}

	payload, err := json.Marshal(NewChatRequest(modelID, BuildMessages(history, systemPrompt)))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := c.pacer.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, key)

	slog.DebugContext(ctx, "provider request", "method", req.Method, "path", req.URL.Path, "model", modelID, "turns", len(history))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Op: "POST /chat/completions", Err: err}
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return "", err
	}
	slog.DebugContext(ctx, "provider response", "status", resp.StatusCode, "duration", time.Since(start), "bytes", len(body))

	if !isSuccess(resp.StatusCode) {
		return "", newProviderError(resp.StatusCode, body)
	}
	return decodeChatResponse(resp.StatusCode, body)
}

// =============================================================================
// MODELS ENDPOINT
// =============================================================================

// ValidateCredential implements Provider with an authenticated GET /models.
func (c *OpenRouterClient) ValidateCredential(ctx context.Context) bool {
	key := c.keys.APIKey()
	if key == "" {
		return false
	}
	resp, err := c.getModels(ctx, key)
	if err != nil {
		slog.DebugContext(ctx, "credential probe failed", "error", err)
		return false
	}
	resp.Body.Close()
	return isSuccess(resp.StatusCode)
}

// ListModels returns the provider's model listing.
func (c *OpenRouterClient) ListModels(ctx context.Context) ([]RemoteModel, error) {
	key := c.keys.APIKey()
	if key == "" {
		return nil, credential.ErrMissingCredential
	}
	resp, err := c.getModels(ctx, key)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, newProviderError(resp.StatusCode, body)
	}

	var listing struct {
		Data []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			ContextLength int    `json:"context_length"`
			Pricing       *struct {
				Prompt     string `json:"prompt"`
				Completion string `json:"completion"`
			} `json:"pricing"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, newProviderError(resp.StatusCode, body)
	}

	models := make([]RemoteModel, 0, len(listing.Data))
	for _, m := range listing.Data {
		rm := RemoteModel{ID: m.ID, Name: m.Name, ContextLength: m.ContextLength}
		if m.Pricing != nil {
			rm.PromptPrice = m.Pricing.Prompt
			rm.CompletionPrice = m.Pricing.Completion
		}
		models = append(models, rm)
	}
	return models, nil
}

func (c *OpenRouterClient) getModels(ctx context.Context, key string) (*http.Response, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "GET /models", Err: err}
	}
	return resp, nil
}
