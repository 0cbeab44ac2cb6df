// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// notifyBuffer is each subscriber's channel capacity. A subscriber that
// falls further behind misses settlements; cycles never block on it.
const notifyBuffer = 64

// =============================================================================
// TASK QUEUE
// =============================================================================

// Queue is the ledger of send cycles. It does not run anything; the
// dispatcher owns execution and reports transitions here.
type Queue struct {
	mu       sync.RWMutex
	tasks    []*Task          // launch order, in flight and settled
	inflight map[string]*Task // by task id
	keep     int              // settled tasks retained, 0 = all

	subs    map[int]chan TaskNotification
	nextSub int
}

// TaskNotification describes a settled cycle.
type TaskNotification struct {
	TaskID   string
	BatchID  string
	PanelID  string
	Status   TaskStatus
	Error    string
	Duration time.Duration
}

// NewQueue creates a queue retaining at most keep settled tasks (0 keeps
// all of them).
func NewQueue(keep int) *Queue {
	return &Queue{
		inflight: make(map[string]*Task),
		keep:     keep,
		subs:     make(map[int]chan TaskNotification),
	}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Add records a new queued task.
func (q *Queue) Add(task *Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// MarkRunning records that the provider call for task has started.
func (q *Queue) MarkRunning(task *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if task.markStarted() {
		q.inflight[task.ID] = task
	}
}

// MarkComplete records a delivered reply.
func (q *Queue) MarkComplete(task *Task) { q.settle(task, TaskStatusComplete, nil) }

// MarkFailed records a cycle that ended with an error turn.
func (q *Queue) MarkFailed(task *Task, err error) { q.settle(task, TaskStatusFailed, err) }

// MarkSkipped records a target that never started.
func (q *Queue) MarkSkipped(task *Task, err error) { q.settle(task, TaskStatusSkipped, err) }

// settle applies a terminal status once; later calls for the same task are
// ignored.
func (q *Queue) settle(task *Task, status TaskStatus, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !task.settle(status, err) {
		return
	}
	delete(q.inflight, task.ID)

	n := TaskNotification{
		TaskID:   task.ID,
		BatchID:  task.BatchID,
		PanelID:  task.PanelID,
		Status:   status,
		Duration: task.Duration(),
	}
	if err != nil {
		n.Error = err.Error()
	}
	for _, ch := range q.subs {
		select {
		case ch <- n:
		default:
			slog.Debug("task subscriber behind, settlement skipped", "task_id", n.TaskID, "panel_id", n.PanelID)
		}
	}

	q.trimLocked()
}

// trimLocked drops the oldest settled tasks beyond keep.
func (q *Queue) trimLocked() {
	if q.keep <= 0 {
		return
	}
	settled := 0
	for _, t := range q.tasks {
		if t.IsComplete() {
			settled++
		}
	}
	excess := settled - q.keep
	if excess <= 0 {
		return
	}
	kept := q.tasks[:0:0]
	for _, t := range q.tasks {
		if excess > 0 && t.IsComplete() {
			excess--
			continue
		}
		kept = append(kept, t)
	}
	q.tasks = kept
}

// =============================================================================
// QUERIES
// =============================================================================

// Batch returns copies of the tasks recorded for one broadcast, in launch
// order.
func (q *Queue) Batch(batchID string) []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []*Task
	for _, t := range q.tasks {
		if t.BatchID == batchID {
			out = append(out, t.Clone())
		}
	}
	return out
}

// RunningCount returns the number of provider calls in flight.
func (q *Queue) RunningCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.inflight)
}

// Subscribe registers for settlements from now on. Nothing is buffered
// for a queue without subscribers. The cancel func unregisters and closes
// the channel; it is safe to call more than once.
func (q *Queue) Subscribe() (<-chan TaskNotification, func()) {
	ch := make(chan TaskNotification, notifyBuffer)

	q.mu.Lock()
	id := q.nextSub
	q.nextSub++
	q.subs[id] = ch
	q.mu.Unlock()

	return ch, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if _, ok := q.subs[id]; ok {
			delete(q.subs, id)
			close(ch)
		}
	}
}

// Summary is a one-line count of tasks by status.
func (q *Queue) Summary() string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	counts := make(map[TaskStatus]int)
	for _, t := range q.tasks {
		counts[t.GetStatus()]++
	}
	return fmt.Sprintf("Running: %d | Queued: %d | Completed: %d | Failed: %d | Skipped: %d",
		len(q.inflight),
		counts[TaskStatusQueued],
		counts[TaskStatusComplete],
		counts[TaskStatusFailed],
		counts[TaskStatusSkipped])
}
