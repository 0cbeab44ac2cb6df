// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui starts the full-screen panel grid.
package ui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/koharyou1215/multi-chat/internal/cli"
	"github.com/koharyou1215/multi-chat/internal/ui/chat"
	"github.com/koharyou1215/multi-chat/internal/ui/styles"
)

// Run shows the panel grid over app until the user quits or ctx is done.
func Run(ctx context.Context, app *cli.App) error {
	theme := styles.NewTheme(app.Config.UI.Theme)
	m := chat.New(ctx, app, theme)
	defer m.Close()

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("panel grid: %w", err)
	}
	return nil
}
