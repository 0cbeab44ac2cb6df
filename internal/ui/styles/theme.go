// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles of the panel grid, derived from one Palette.
type Theme struct {
	Palette Palette
	dark    bool

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderInfo  lipgloss.Style

	Panel         lipgloss.Style
	PanelSelected lipgloss.Style
	PanelMulti    lipgloss.Style
	PanelTitle    lipgloss.Style
	PanelModel    lipgloss.Style
	PanelBadge    lipgloss.Style
	SelectedBadge lipgloss.Style
	PanelEmpty    lipgloss.Style

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	ErrorBody      lipgloss.Style
	Timestamp      lipgloss.Style
	Attachment     lipgloss.Style

	InputContainer lipgloss.Style
	Notice         lipgloss.Style
	StatusBar      lipgloss.Style
	ShortcutKey    lipgloss.Style
	ShortcutDesc   lipgloss.Style
	Spinner        lipgloss.Style

	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style

	levels [4]lipgloss.Style
}

// NewTheme creates a theme. mode is "auto", "dark" or "light"; auto asks the
// terminal for its background.
func NewTheme(mode string) *Theme {
	var dark bool
	switch strings.ToLower(mode) {
	case "dark":
		dark = true
	case "light":
	default:
		dark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(dark)

	p := LightPalette
	if dark {
		p = DarkPalette
	}
	return newTheme(p, dark)
}

func newTheme(p Palette, dark bool) *Theme {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	bar := lipgloss.NewStyle().Background(p.Surface).Foreground(p.Subtle).Padding(0, 1)
	box := lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(p.Border).Padding(0, 1)
	badge := lipgloss.NewStyle().Foreground(p.Inverse).Padding(0, 1)

	t := &Theme{
		Palette: p,
		dark:    dark,

		Header:      bar,
		HeaderBrand: fg(p.Brand).Bold(true),
		HeaderInfo:  fg(p.Subtle),

		Panel:         box,
		PanelSelected: box.BorderForeground(p.Selected),
		PanelMulti:    box.BorderForeground(p.Multi),
		PanelTitle:    fg(p.Text).Bold(true),
		PanelModel:    fg(p.Subtle),
		PanelBadge:    badge.Background(p.Multi),
		SelectedBadge: badge.Background(p.Selected),
		PanelEmpty:    fg(p.Faint).Italic(true),

		UserLabel:      fg(p.User).Bold(true),
		AssistantLabel: fg(p.Assistant).Bold(true),
		MessageBody:    fg(p.Text),
		ErrorBody: fg(p.Fail).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(p.Fail).
			PaddingLeft(1),
		Timestamp:  fg(p.Faint),
		Attachment: fg(p.Brand).Italic(true),

		InputContainer: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(p.Border).
			Padding(0, 1),
		Notice:       box,
		StatusBar:    bar,
		ShortcutKey:  fg(p.Brand).Bold(true),
		ShortcutDesc: fg(p.Faint),
		Spinner:      fg(p.Multi),

		ErrorStyle:   fg(p.Fail).Bold(true),
		WarningStyle: fg(p.Warn).Bold(true),
		InfoStyle:    fg(p.Brand),
	}
	t.levels = [4]lipgloss.Style{
		LevelInfo:    t.InfoStyle,
		LevelSuccess: fg(p.OK).Bold(true),
		LevelWarning: t.WarningStyle,
		LevelError:   t.ErrorStyle,
	}
	return t
}

// IsDark reports whether the theme targets a dark background.
func (t *Theme) IsDark() bool { return t.dark }

// GlamourStyle names the glamour standard style matching the background.
func (t *Theme) GlamourStyle() string {
	if t.dark {
		return "dark"
	}
	return "light"
}

// PanelStyle picks the border for a panel. Selection outranks multi-send
// membership; focus thickens whichever border applies.
func (t *Theme) PanelStyle(selected, multi, focused bool) lipgloss.Style {
	s := t.Panel
	if selected {
		s = t.PanelSelected
	} else if multi {
		s = t.PanelMulti
	}
	if focused {
		s = s.BorderStyle(lipgloss.ThickBorder())
	}
	return s
}

// Status renders msg in the color of level, prefixed with a text marker.
func (t *Theme) Status(level Level, msg string) string {
	if level < LevelInfo || level > LevelError {
		level = LevelInfo
	}
	return t.levels[level].Render(level.marker() + " " + msg)
}
