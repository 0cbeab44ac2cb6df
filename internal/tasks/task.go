// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is where a send cycle is in its life.
type TaskStatus string

const (
	TaskStatusQueued   TaskStatus = "Queued"   // created, provider not called yet
	TaskStatusRunning  TaskStatus = "Running"  // provider call in flight
	TaskStatusComplete TaskStatus = "Complete" // reply appended
	TaskStatusFailed   TaskStatus = "Failed"   // error turn appended
	TaskStatusSkipped  TaskStatus = "Skipped"  // panel could not take the cycle
)

func (s TaskStatus) String() string { return string(s) }

// Terminal reports whether no further transitions are allowed.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusComplete, TaskStatusFailed, TaskStatusSkipped:
		return true
	}
	return false
}

// next lists the statuses reachable from each non-terminal status.
var next = map[TaskStatus][]TaskStatus{
	TaskStatusQueued:  {TaskStatusRunning, TaskStatusSkipped},
	TaskStatusRunning: {TaskStatusComplete, TaskStatusFailed},
}

func canMove(from, to TaskStatus) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Task records one panel's send cycle within a broadcast batch. Exported
// fields other than the identifiers are only safe to read on a Clone.
type Task struct {
	ID      string
	BatchID string // shared by the cycles of one broadcast
	PanelID string
	ModelID string // model bound to the panel at launch

	Status    TaskStatus
	StartTime time.Time // provider call start
	EndTime   time.Time // settlement
	Error     string    // set for Failed and Skipped

	mu sync.RWMutex
}

// NewTask creates a queued cycle record for panelID in batchID.
func NewTask(batchID, panelID, modelID string) *Task {
	return &Task{
		ID:      uuid.NewString(),
		BatchID: batchID,
		PanelID: panelID,
		ModelID: modelID,
		Status:  TaskStatusQueued,
	}
}

// advance moves the task to status, stamping the start or end time. err is
// recorded when non-nil.
func (t *Task) advance(status TaskStatus, err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !canMove(t.Status, status) {
		return fmt.Errorf("task %s: cannot move from %s to %s", t.ID, t.Status, status)
	}
	t.Status = status
	now := time.Now()
	if status == TaskStatusRunning {
		t.StartTime = now
	} else {
		t.EndTime = now
	}
	if err != nil {
		t.Error = err.Error()
	}
	return nil
}

func (t *Task) markStarted() bool { return t.advance(TaskStatusRunning, nil) == nil }

func (t *Task) settle(status TaskStatus, err error) bool {
	return status.Terminal() && t.advance(status, err) == nil
}

// GetStatus returns the current status.
func (t *Task) GetStatus() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// IsComplete reports whether the cycle has settled.
func (t *Task) IsComplete() bool { return t.GetStatus().Terminal() }

// Duration is how long the provider call has run so far, or took. Tasks that
// never started report zero.
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch {
	case t.StartTime.IsZero():
		return 0
	case t.EndTime.IsZero():
		return time.Since(t.StartTime)
	}
	return t.EndTime.Sub(t.StartTime)
}

// Clone returns an unshared copy for reading.
func (t *Task) Clone() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Task{
		ID:        t.ID,
		BatchID:   t.BatchID,
		PanelID:   t.PanelID,
		ModelID:   t.ModelID,
		Status:    t.Status,
		StartTime: t.StartTime,
		EndTime:   t.EndTime,
		Error:     t.Error,
	}
}
