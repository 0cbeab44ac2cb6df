// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/koharyou1215/multi-chat/internal/dispatch"
	"github.com/koharyou1215/multi-chat/internal/tasks"
	"github.com/koharyou1215/multi-chat/internal/ui/styles"
)

// StoreChangedMsg is delivered after the conversation store mutates.
type StoreChangedMsg struct{}

// TaskSettledMsg reports one panel's cycle reaching a final status.
type TaskSettledMsg struct {
	tasks.TaskNotification
}

// BatchDoneMsg reports that every cycle of a broadcast has settled.
type BatchDoneMsg struct {
	Results []dispatch.Result
}

// CommandDoneMsg carries the outcome of a slash command.
type CommandDoneMsg struct {
	Line   string
	Output string
	Quit   bool
	Err    error
}

// statusKind colors the status bar.
type statusKind = styles.Level

const (
	statusInfo    = styles.LevelInfo
	statusSuccess = styles.LevelSuccess
	statusWarning = styles.LevelWarning
	statusError   = styles.LevelError
)
