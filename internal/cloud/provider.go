// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/koharyou1215/multi-chat/internal/config"
	"github.com/koharyou1215/multi-chat/internal/model"
)

const (
	// DefaultBaseURL is the OpenRouter API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "multichat/1.0"
)

// =============================================================================
// INTERFACES
// =============================================================================

// Provider generates one assistant reply for a panel transcript.
type Provider interface {
	// GenerateResponse sends history (ending with the new user turn) to
	// modelID and returns the reply text. Exactly one attempt is made.
	GenerateResponse(ctx context.Context, modelID string, history []model.Message, systemPrompt string) (string, error)

	// ValidateCredential probes the provider with the current key. Every
	// failure, transport included, is reported as false.
	ValidateCredential(ctx context.Context) bool
}

// Client is a Provider that can also list the remote model catalog.
type Client interface {
	Provider
	ListModels(ctx context.Context) ([]RemoteModel, error)
}

// KeySource supplies the bearer key at request time.
type KeySource interface {
	APIKey() string
}

// StaticKey is a fixed KeySource.
type StaticKey string

// APIKey returns the key.
func (k StaticKey) APIKey() string { return string(k) }

// RemoteModel is one entry of the provider's model listing.
type RemoteModel struct {
	ID              string
	Name            string
	ContextLength   int
	PromptPrice     string
	CompletionPrice string
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configure either backend.
type Options struct {
	BaseURL  string
	SiteURL  string
	SiteName string

	// Timeout bounds one HTTP exchange; 0 means none.
	Timeout time.Duration

	// RequestsPerSecond paces outbound calls; 0 disables pacing.
	RequestsPerSecond float64

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// OptionsFromConfig maps the [cloud] config section to Options.
func OptionsFromConfig(cfg config.CloudConfig) Options {
	return Options{
		BaseURL:           cfg.BaseURL,
		SiteURL:           cfg.SiteURL,
		SiteName:          cfg.SiteName,
		Timeout:           time.Duration(cfg.TimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}

func (o Options) baseURL() string {
	if o.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(o.BaseURL, "/")
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{
		Timeout: o.Timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// New builds the backend named by cfg.Backend.
func New(cfg config.CloudConfig, keys KeySource) (Client, error) {
	opts := OptionsFromConfig(cfg)
	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendOpenRouter:
		return NewOpenRouterClient(keys, opts), nil
	case config.BackendOpenAISDK:
		return NewSDKClient(keys, opts), nil
	default:
		return nil, fmt.Errorf("unknown cloud backend %q", cfg.Backend)
	}
}

// =============================================================================
// PACING
// =============================================================================

// pacer spaces requests with a token bucket. A nil pacer never waits.
type pacer struct {
	limiter *rate.Limiter
}

func newPacer(rps float64) *pacer {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &pacer{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (p *pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return &TransportError{Op: "pace request", Err: err}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// readResponse reads at most MaxResponseSize bytes of the body. A body that
// reaches the limit is rejected rather than truncated.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, &TransportError{Op: "read response", Err: err}
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, &TransportError{Op: "read response", Err: fmt.Errorf("%w of %d bytes", ErrResponseTooLarge, MaxResponseSize)}
	}
	return body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
