// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// Palette assigns a color to every role the grid draws with.
type Palette struct {
	Brand    lipgloss.Color // header name, focus hints
	Selected lipgloss.Color // border of the selected panel
	Multi    lipgloss.Color // border and badge of multi-send members
	Border   lipgloss.Color // idle borders, separators
	Surface  lipgloss.Color // header and status bar background

	Text    lipgloss.Color
	Subtle  lipgloss.Color
	Faint   lipgloss.Color
	Inverse lipgloss.Color // text on Multi and Selected backgrounds

	User      lipgloss.Color
	Assistant lipgloss.Color

	OK   lipgloss.Color
	Warn lipgloss.Color
	Fail lipgloss.Color
}

// DarkPalette is tuned for dark terminal backgrounds.
var DarkPalette = Palette{
	Brand:     "#22D3EE",
	Selected:  "#22D3EE",
	Multi:     "#A78BFA",
	Border:    "#45475A",
	Surface:   "#181825",
	Text:      "#CDD6F4",
	Subtle:    "#A6ADC8",
	Faint:     "#6C7086",
	Inverse:   "#1E1E2E",
	User:      "#93C5FD",
	Assistant: "#C4B5FD",
	OK:        "#34D399",
	Warn:      "#FBBF24",
	Fail:      "#FB7185",
}

// LightPalette is tuned for light terminal backgrounds.
var LightPalette = Palette{
	Brand:     "#0891B2",
	Selected:  "#0891B2",
	Multi:     "#7C3AED",
	Border:    "#D4D4D4",
	Surface:   "#F5F5F5",
	Text:      "#1F2937",
	Subtle:    "#6B7280",
	Faint:     "#9CA3AF",
	Inverse:   "#FFFFFF",
	User:      "#1E40AF",
	Assistant: "#5B4B8A",
	OK:        "#059669",
	Warn:      "#D97706",
	Fail:      "#E11D48",
}

// Level tags a status line.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// marker keeps a level readable without color.
func (l Level) marker() string {
	switch l {
	case LevelSuccess:
		return "[OK]"
	case LevelWarning:
		return "[!]"
	case LevelError:
		return "[X]"
	}
	return "[i]"
}
