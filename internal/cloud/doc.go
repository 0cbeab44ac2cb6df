// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud is the provider client: it turns a panel transcript into a
// chat-completions request, performs exactly one call, and validates the
// reply.
//
// Two backends implement Client:
//   - OpenRouterClient: hand-built JSON over net/http (default)
//   - SDKClient: the same contract through github.com/openai/openai-go
//
// # Errors
//
//   - credential.ErrMissingCredential: no API key
//   - *ProviderError: non-2xx status or an undecodable 2xx body (status + body)
//   - *TransportError: the exchange failed before a usable status
//   - ErrEmptyResponse: 2xx with no usable choice
//
// Nothing is retried. Optional pacing (requests per second) only spaces
// calls out.
//
// # Usage
//
//	client, err := cloud.New(cfg.Cloud, gate)
//	reply, err := client.GenerateResponse(ctx, "x-ai/grok-4", history, "Be terse.")
package cloud
