// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

// ErrPromptNotFound is returned when a prompt id does not exist.
// Use errors.Is(err, ErrPromptNotFound) to check for this error.
var ErrPromptNotFound = &NotFoundError{Message: "prompt not found"}

// NotFoundError reports a missing record. It can be compared using
// errors.Is.
type NotFoundError struct {
	Message string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return e.Message
}

// Is implements errors.Is support.
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
