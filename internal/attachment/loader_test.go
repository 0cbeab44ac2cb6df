// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attachment

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koharyou1215/multi-chat/internal/model"
)

// 1x1 transparent PNG header bytes, enough for content sniffing.
var pngMagic = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestLoad_Image(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(p, pngMagic, 0o600))

	a, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, model.KindImage, a.Kind)
	assert.Equal(t, "cat.png", a.Name)
	assert.Equal(t, "image/png", a.MIMEType)
	assert.Equal(t, int64(len(pngMagic)), a.Size)
	assert.True(t, strings.HasPrefix(a.Locator.URL, "data:image/png;base64,"))
	assert.True(t, a.Locator.Valid(model.SessionID()))
	assert.False(t, a.Locator.Valid("another-session"))
	assert.NotEmpty(t, a.ID)
}

func TestLoad_SniffsUnknownExtension(t *testing.T) {
	p := filepath.Join(t.TempDir(), "capture")
	require.NoError(t, os.WriteFile(p, pngMagic, 0o600))

	a, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "image/png", a.MIMEType)
	assert.Equal(t, model.KindImage, a.Kind)
}

func TestLoad_TextFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(p, []byte("# notes"), 0o600))

	a, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, model.KindFile, a.Kind)
	assert.False(t, a.IsImage())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(dir)
	assert.ErrorIs(t, err, ErrNotRegular)

	big := filepath.Join(dir, "big.bin")
	f, err := os.Create(big)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(MaxSize+1))
	require.NoError(t, f.Close())
	_, err = Load(big)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLoadScreenshot(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "shot.png")
	require.NoError(t, os.WriteFile(img, pngMagic, 0o600))

	a, err := LoadScreenshot(img)
	require.NoError(t, err)
	assert.Equal(t, model.KindScreenshot, a.Kind)
	assert.True(t, a.IsImage())

	txt := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hi"), 0o600))
	_, err = LoadScreenshot(txt)
	assert.Error(t, err)
}

func TestFromURL(t *testing.T) {
	a, err := FromURL("https://example.com/img/photo.JPG?size=large")
	require.NoError(t, err)
	assert.Equal(t, "photo.JPG", a.Name)
	assert.Equal(t, "image/jpeg", a.MIMEType)
	assert.Equal(t, model.KindImage, a.Kind)
	assert.True(t, a.Locator.IsRemote())
	assert.True(t, a.Locator.Valid("any-session"))

	for _, bad := range []string{"ftp://x/a.png", "not a url", "https://"} {
		_, err := FromURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestDataURL(t *testing.T) {
	assert.Equal(t, "data:text/plain;base64,aGk=", DataURL("text/plain", []byte("hi")))
}
