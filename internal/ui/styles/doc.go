// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the multichat panel grid.

A Theme is derived from one Palette, DarkPalette or LightPalette, picked by the
ui.theme setting ("auto", "dark", "light"). In auto mode the terminal is asked
for its background color.

# Panel Borders

	Border   - idle panel
	Selected - the selected panel
	Multi    - a panel in the multi-send set
	Thick    - the panel holding keyboard focus

Status lines rendered through Theme.Status carry a text marker ([OK], [!],
[X], [i]) so they read correctly on monochrome terminals.
*/
package styles
