// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attachment stages local files and remote images for a user turn.
package attachment

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/koharyou1215/multi-chat/internal/model"
)

// MaxSize caps the size of a staged file.
const MaxSize = 20 * 1024 * 1024

var (
	// ErrTooLarge is returned for files above MaxSize.
	ErrTooLarge = errors.New("attachment too large")

	// ErrNotRegular is returned for directories and special files.
	ErrNotRegular = errors.New("not a regular file")
)

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Load reads the file at p and returns an attachment whose locator is a
// data: URL bound to the current session. Image files become KindImage,
// everything else KindFile.
func Load(p string) (model.Attachment, error) {
	p = expandHome(p)

	info, err := os.Stat(p)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("failed to stat attachment: %w", err)
	}
	if !info.Mode().IsRegular() {
		return model.Attachment{}, fmt.Errorf("%s: %w", p, ErrNotRegular)
	}
	if info.Size() > MaxSize {
		return model.Attachment{}, fmt.Errorf("%s is %d bytes: %w", filepath.Base(p), info.Size(), ErrTooLarge)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("failed to read attachment: %w", err)
	}
	return FromBytes(filepath.Base(p), data), nil
}

// LoadScreenshot is Load for a captured screen image.
func LoadScreenshot(p string) (model.Attachment, error) {
	a, err := Load(p)
	if err != nil {
		return a, err
	}
	if !a.IsImage() {
		return model.Attachment{}, fmt.Errorf("%s is %s, not an image", a.Name, a.MIMEType)
	}
	a.Kind = model.KindScreenshot
	return a, nil
}

// FromBytes builds an attachment from in-memory content.
func FromBytes(name string, data []byte) model.Attachment {
	mimeType := DetectMIME(name, data)
	kind := model.KindFile
	if strings.HasPrefix(mimeType, "image/") {
		kind = model.KindImage
	}
	return model.Attachment{
		ID:       model.NewAttachmentID(),
		Kind:     kind,
		Name:     name,
		Size:     int64(len(data)),
		MIMEType: mimeType,
		Locator: model.Locator{
			URL:       DataURL(mimeType, data),
			SessionID: model.SessionID(),
		},
	}
}

// FromURL references a remote http(s) image without downloading it. The
// MIME type is inferred from the path extension.
func FromURL(raw string) (model.Attachment, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.Attachment{}, fmt.Errorf("invalid attachment URL %q", raw)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = u.Host
	}
	mimeType := typeByExtension(name)
	kind := model.KindFile
	if strings.HasPrefix(mimeType, "image/") {
		kind = model.KindImage
	}
	return model.Attachment{
		ID:       model.NewAttachmentID(),
		Kind:     kind,
		Name:     name,
		MIMEType: mimeType,
		Locator:  model.Locator{URL: u.String()},
	}, nil
}

// DetectMIME picks a MIME type from the file extension, falling back to
// content sniffing.
func DetectMIME(name string, data []byte) string {
	if t := typeByExtension(name); t != "" {
		return t
	}
	t := http.DetectContentType(data)
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return "application/octet-stream"
}

func typeByExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := imageTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
	}
	return ""
}

// DataURL encodes data as a base64 data: URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}
