// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"bytes"
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/koharyou1215/multi-chat/internal/cli"
	"github.com/koharyou1215/multi-chat/internal/dispatch"
	"github.com/koharyou1215/multi-chat/internal/tasks"
)

// =============================================================================
// ASYNC COMMANDS
// =============================================================================

// waitForStore blocks until the store signals a change. A closed channel
// ends the subscription.
func waitForStore(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return StoreChangedMsg{}
	}
}

// waitForSettle delivers the next settled cycle from the task ledger.
func waitForSettle(ch <-chan tasks.TaskNotification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return TaskSettledMsg{n}
	}
}

// runCommand executes a slash command off the update loop and collects what
// it printed.
func runCommand(ctx context.Context, s *cli.Session, out *syncBuffer, line string) tea.Cmd {
	return func() tea.Msg {
		quit, err := s.Execute(ctx, line)
		return CommandDoneMsg{Line: line, Output: out.Drain(), Quit: quit, Err: err}
	}
}

// waitBatch reports when every cycle of b has settled.
func waitBatch(ctx context.Context, b *dispatch.Batch) tea.Cmd {
	return func() tea.Msg {
		if err := b.WaitContext(ctx); err != nil {
			return nil
		}
		return BatchDoneMsg{Results: b.Results()}
	}
}

// syncBuffer is the session's output. Commands write from a tea.Cmd
// goroutine while the update loop drains.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Drain returns and discards everything written so far.
func (b *syncBuffer) Drain() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	b.buf.Reset()
	return s
}
