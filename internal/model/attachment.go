// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"github.com/google/uuid"
)

// AttachmentKind classifies how an attachment was captured.
type AttachmentKind string

const (
	KindFile       AttachmentKind = "file"
	KindImage      AttachmentKind = "image"
	KindScreenshot AttachmentKind = "screenshot"
)

// sessionID identifies this process. Data locators minted here are only
// dereferenceable while it runs.
var sessionID = uuid.NewString()

// SessionID returns the id of the current process session.
func SessionID() string {
	return sessionID
}

// Locator points at attachment content. Data URLs live in process memory and
// are bound to the session that produced them; http(s) URLs are durable.
type Locator struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

// Valid reports whether the locator can still be dereferenced in session.
func (l Locator) Valid(session string) bool {
	if l.URL == "" {
		return false
	}
	if l.IsRemote() {
		return true
	}
	return l.SessionID != "" && l.SessionID == session
}

// IsRemote reports whether the locator is an http(s) URL.
func (l Locator) IsRemote() bool {
	return strings.HasPrefix(l.URL, "https://") || strings.HasPrefix(l.URL, "http://")
}

// Attachment is a file or image staged alongside a user turn.
type Attachment struct {
	ID       string         `json:"id"`
	Kind     AttachmentKind `json:"kind"`
	Name     string         `json:"name"`
	Size     int64          `json:"size"`
	MIMEType string         `json:"mime_type,omitempty"`
	Locator  Locator        `json:"locator"`
}

// NewAttachmentID returns a fresh attachment id.
func NewAttachmentID() string {
	return uuid.NewString()
}

// IsImage reports whether the attachment has an image MIME type.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(a.MIMEType), "image/")
}

func cloneAttachments(in []Attachment) []Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]Attachment, len(in))
	copy(out, in)
	return out
}
