// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks records send cycles as they move through their lifecycle.
//
// Every panel targeted by a broadcast gets a Task. The dispatcher reports
// transitions to a Queue, which keeps a bounded history and publishes a
// notification whenever a task settles.
//
// # Key Types
//
//   - Task: one panel's cycle within a batch
//   - Queue: thread-safe record of in-flight and settled tasks
//   - TaskStatus: Queued, Running, Complete, Failed, Skipped
//
// # Usage
//
//	queue := tasks.NewQueue(200)
//	task := tasks.NewTask(batchID, "panel-1", "x-ai/grok-4")
//	queue.Add(task)
//	queue.MarkRunning(task)
//	...
//	queue.MarkComplete(task)
package tasks
