// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/koharyou1215/multi-chat/internal/util"
)

var (
	// ErrEmptyResponse indicates a successful status with no usable choice.
	ErrEmptyResponse = errors.New("no response from provider")

	// ErrResponseTooLarge indicates the body exceeded MaxResponseSize.
	ErrResponseTooLarge = errors.New("response exceeded maximum size")
)

// ProviderError is returned when the provider answered with a non-success
// status, or with a success status and a body that does not decode.
type ProviderError struct {
	Status int
	Body   string

	// Code and Message are filled when Body is a JSON error envelope.
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = strings.TrimSpace(e.Body)
	}
	detail = util.TruncateRunes(detail, 500)
	if e.Code != "" {
		return fmt.Sprintf("provider error [%s] (HTTP %d): %s", e.Code, e.Status, detail)
	}
	return fmt.Sprintf("provider error (HTTP %d): %s", e.Status, detail)
}

// newProviderError builds a ProviderError, parsing the common
// {"error":{"code","message"}} envelope when present.
func newProviderError(status int, body []byte) *ProviderError {
	pe := &ProviderError{Status: status, Body: string(body)}

	var envelope struct {
		Error struct {
			Code    json.RawMessage `json:"code"`
			Message string          `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		pe.Message = envelope.Error.Message
		// OpenRouter sends numeric codes, OpenAI string codes.
		pe.Code = strings.Trim(string(envelope.Error.Code), `"`)
		if pe.Code == "null" {
			pe.Code = ""
		}
	}
	return pe
}

// TransportError is returned when the exchange failed before a status was
// obtained (DNS, connect, TLS, timeout, body read).
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not a
// ProviderError.
func StatusCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Status
	}
	return 0
}
