// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/koharyou1215/multi-chat/internal/ui/styles"
)

// Command output follows the terminal: plain text when colors are off.
func init() {
	lipgloss.SetColorProfile(ColorProfile())
	color.NoColor = !ColorsEnabled()
}

// adaptive pairs a palette role from the light and dark grid palettes, so
// command output and the grid agree on colors.
func adaptive(role func(styles.Palette) lipgloss.Color) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{
		Light: string(role(styles.LightPalette)),
		Dark:  string(role(styles.DarkPalette)),
	}
}

var (
	colorBrand  = adaptive(func(p styles.Palette) lipgloss.Color { return p.Brand })
	colorText   = adaptive(func(p styles.Palette) lipgloss.Color { return p.Text })
	colorSubtle = adaptive(func(p styles.Palette) lipgloss.Color { return p.Subtle })
	colorFaint  = adaptive(func(p styles.Palette) lipgloss.Color { return p.Faint })
	colorFail   = adaptive(func(p styles.Palette) lipgloss.Color { return p.Fail })
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorBrand).MarginBottom(1)
	SectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	LabelStyle   = lipgloss.NewStyle().Foreground(colorSubtle).Width(20)
	ValueStyle   = lipgloss.NewStyle().Foreground(colorText)
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorFail)
	DimStyle     = lipgloss.NewStyle().Foreground(colorFaint)
	PromptStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorBrand)
)

// RenderSeparator draws a rule of width columns, 70 when width is omitted.
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return DimStyle.Render(strings.Repeat("─", w))
}

// RenderStatus renders a bracketed status tag colored by outcome.
func RenderStatus(status string) string {
	tag := "[" + strings.ToUpper(status) + "]"
	switch strings.ToLower(status) {
	case "ok", "valid", "delivered":
		return color.GreenString("[OK]")
	case "fail", "failed", "invalid", "error":
		return color.RedString("[FAIL]")
	case "skipped", "warn", "pending":
		return color.YellowString(tag)
	}
	return color.HiBlackString(tag)
}

// RenderLabel pads label to the label column, or to width when given.
func RenderLabel(label string, width ...int) string {
	s := LabelStyle
	if len(width) > 0 && width[0] > 0 {
		s = s.Width(width[0])
	}
	return s.Render(label)
}

// markdown is built on first use; nil means plain text.
var markdown = sync.OnceValue(func() *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(min(OutputWidth()-4, 100)),
	)
	if err != nil {
		return nil
	}
	return r
})

// renderMarkdown styles a reply for the terminal. Piped output and renderer
// failures get the raw text.
func renderMarkdown(content string) string {
	if !StdoutIsTerminal() {
		return content
	}
	r := markdown()
	if r == nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n") + "\n"
}
