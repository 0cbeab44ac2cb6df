// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display and exit codes for multichat commands.
//
// Commands always return errors; Execute displays them once and maps them
// to an exit code.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/koharyou1215/multi-chat/internal/cloud"
	"github.com/koharyou1215/multi-chat/internal/credential"
	"github.com/koharyou1215/multi-chat/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "prompts", "key")
	Action  string // Action being performed (e.g., "add", "validate")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)

	exit int
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err to stderr, or as JSON to stdout in JSON mode.
func DisplayError(err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayErrorJSON(os.Stdout, err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(os.Stderr, DimStyle.Render(hint))
	}
}

// DisplayErrorJSON writes err as a JSON object.
func DisplayErrorJSON(w io.Writer, err error) {
	output := map[string]interface{}{
		"error":     err.Error(),
		"success":   false,
		"exit_code": GetExitCode(err),
	}

	var (
		cmdErr   *CommandError
		valErr   *ValidationError
		provErr  *cloud.ProviderError
		transErr *cloud.TransportError
	)
	switch {
	case errors.As(err, &valErr):
		output["error_type"] = "validation_error"
		output["field"] = valErr.Field
		output["reason"] = valErr.Reason
	case errors.As(err, &provErr):
		output["error_type"] = "provider_error"
		output["status"] = provErr.Status
	case errors.As(err, &transErr):
		output["error_type"] = "transport_error"
	case errors.Is(err, credential.ErrMissingCredential):
		output["error_type"] = "missing_credential"
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
	default:
		output["error_type"] = "generic_error"
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(output)
}

// errorHint suggests a fix for errors the user can act on.
func errorHint(err error) string {
	switch {
	case errors.Is(err, credential.ErrMissingCredential):
		return "Set a key with 'multichat key set' or the MULTICHAT_API_KEY environment variable."
	case cloud.StatusCode(err) == http.StatusUnauthorized:
		return "The API key was rejected. Check it with 'multichat key validate'."
	case errors.Is(err, storage.ErrPromptNotFound):
		return "List saved prompts with 'multichat prompts list'."
	}
	return ""
}

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.exit != 0 {
		return cmdErr.exit
	}

	var (
		valErr   *ValidationError
		ttyErr   *NotTerminalError
		transErr *cloud.TransportError
	)
	switch {
	case errors.As(err, &valErr), errors.As(err, &ttyErr):
		return ExitUsageError
	case errors.Is(err, credential.ErrMissingCredential):
		return ExitAuthError
	case cloud.StatusCode(err) == http.StatusUnauthorized, cloud.StatusCode(err) == http.StatusForbidden:
		return ExitAuthError
	case errors.Is(err, storage.ErrPromptNotFound):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &transErr):
		return ExitNetworkError
	}
	return ExitGeneralError
}
