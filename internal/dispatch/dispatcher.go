// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/koharyou1215/multi-chat/internal/cloud"
	"github.com/koharyou1215/multi-chat/internal/conversation"
	"github.com/koharyou1215/multi-chat/internal/logger"
	"github.com/koharyou1215/multi-chat/internal/model"
	"github.com/koharyou1215/multi-chat/internal/tasks"
)

var (
	// ErrPanelBusy marks a target skipped because its previous cycle has
	// not settled.
	ErrPanelBusy = conversation.ErrPanelBusy

	// ErrEmptyMessage rejects a broadcast with blank text and no
	// attachments.
	ErrEmptyMessage = errors.New("message is empty")
)

// Gate reports whether a credential is configured.
type Gate interface {
	Check() error
}

// UsageRecorder persists prompt usage entries.
type UsageRecorder interface {
	AddPromptUsage(ctx context.Context, u model.PromptUsage) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueue records cycles in q instead of a private queue.
func WithQueue(q *tasks.Queue) Option {
	return func(d *Dispatcher) { d.queue = q }
}

// WithUsageRecorder persists prompt usage through r.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithPromptHistory seeds the in-memory usage history, newest first.
func WithPromptHistory(h []model.PromptUsage) Option {
	return func(d *Dispatcher) {
		if len(h) > model.MaxPromptHistory {
			h = h[:model.MaxPromptHistory]
		}
		d.history = append([]model.PromptUsage(nil), h...)
	}
}

// Dispatcher fans user messages out to panels.
type Dispatcher struct {
	store    *conversation.Store
	provider cloud.Provider
	gate     Gate
	queue    *tasks.Queue
	recorder UsageRecorder

	mu      sync.Mutex
	history []model.PromptUsage
}

// New creates a dispatcher over store.
func New(store *conversation.Store, provider cloud.Provider, gate Gate, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		provider: provider,
		gate:     gate,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.queue == nil {
		d.queue = tasks.NewQueue(200)
	}
	return d
}

// Queue returns the cycle record.
func (d *Dispatcher) Queue() *tasks.Queue {
	return d.queue
}

// =============================================================================
// BROADCAST
// =============================================================================

// Broadcast sends text and attachments to the panels policy selects.
//
// The user turn is appended and loading set on every target before
// Broadcast returns; provider calls then run concurrently, one goroutine
// per target, and settle independently. Cycles are detached from ctx
// cancellation. A closed gate or an empty message fails the whole call
// before anything is mutated.
func (d *Dispatcher) Broadcast(ctx context.Context, policy Policy, text string, attachments []model.Attachment) (*Batch, error) {
	if err := d.gate.Check(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return nil, ErrEmptyMessage
	}

	targets := ResolveTargets(d.store.Snapshot(), policy)
	batch := newBatch(policy, len(targets))
	ctx = logger.WithLogFields(context.WithoutCancel(ctx), logger.LogFields{
		BatchID:   batch.ID,
		Component: "multichat.dispatch",
	})

	slog.InfoContext(ctx, "broadcast", "policy", policy.String(), "targets", len(targets), "attachments", len(attachments))

	for i, p := range targets {
		task := tasks.NewTask(batch.ID, p.ID, p.ModelID)
		d.queue.Add(task)

		c, err := d.store.BeginCycle(p.ID, text, attachments)
		if err != nil {
			d.queue.MarkSkipped(task, err)
			batch.set(i, Result{PanelID: p.ID, ModelID: p.ModelID, TaskID: task.ID, Outcome: Skipped, Err: err})
			slog.WarnContext(ctx, "target skipped", "panel_id", p.ID, "reason", err)
			continue
		}

		batch.set(i, Result{PanelID: c.PanelID, ModelID: c.ModelID, TaskID: task.ID, Outcome: Pending})
		batch.wg.Add(1)
		go func(i int, c conversation.Cycle, task *tasks.Task) {
			defer batch.wg.Done()
			batch.set(i, d.runCycle(ctx, c, task))
		}(i, c, task)
	}

	batch.seal()
	return batch, nil
}

// runCycle calls the provider for one launched cycle and writes the result
// back. The panel's loading flag is always cleared.
func (d *Dispatcher) runCycle(ctx context.Context, c conversation.Cycle, task *tasks.Task) (res Result) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{PanelID: c.PanelID, ModelID: c.ModelID})
	sc := logger.StartSpan(ctx, "dispatch.cycle", trace.WithAttributes(
		attribute.String("multichat.panel_id", c.PanelID),
		attribute.String("multichat.model", c.ModelID),
		attribute.Int("multichat.history_len", len(c.History)),
	))
	defer sc.End()
	ctx = sc.Context()

	res = Result{PanelID: c.PanelID, ModelID: c.ModelID, TaskID: task.ID}
	d.queue.MarkRunning(task)
	start := time.Now()

	var (
		reply string
		err   error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panicked: %v", r)
		}
		res = d.settle(ctx, sc, c, task, reply, err, time.Since(start))
	}()

	reply, err = d.provider.GenerateResponse(ctx, c.ModelID, c.History, c.SystemPrompt)
	return res
}

func (d *Dispatcher) settle(ctx context.Context, sc *logger.SpanContext, c conversation.Cycle, task *tasks.Task, reply string, err error, elapsed time.Duration) Result {
	res := Result{PanelID: c.PanelID, ModelID: c.ModelID, TaskID: task.ID}

	var msg model.Message
	if err != nil {
		msg = model.NewErrorMessage(c.PanelID, c.ModelID, err)
		res.Outcome, res.Err = Failed, err
		sc.RecordError(err)
		d.queue.MarkFailed(task, err)
		slog.WarnContext(ctx, "cycle failed", "error", err, "status", cloud.StatusCode(err), "duration", elapsed)
	} else {
		msg = model.NewAssistantMessage(c.PanelID, c.ModelID, reply)
		res.Outcome, res.Reply = Delivered, reply
		d.queue.MarkComplete(task)
		slog.InfoContext(ctx, "cycle delivered", "reply_chars", len(reply), "duration", elapsed)
	}

	if !d.store.FinishCycle(c, msg) {
		slog.DebugContext(ctx, "panel discarded before cycle settled")
	}
	return res
}

// =============================================================================
// PROMPTS
// =============================================================================

// ApplyPrompt binds a copy of prompt to the multi-send panels, or the
// selected panel, or every panel, and records the application in the
// usage history. It returns the ids it bound.
func (d *Dispatcher) ApplyPrompt(ctx context.Context, prompt model.Prompt) []string {
	targets := PromptTargets(d.store.Snapshot())
	ids := make([]string, 0, len(targets))
	for _, p := range targets {
		d.store.BindPrompt(p.ID, prompt)
		ids = append(ids, p.ID)
	}
	if len(ids) == 0 {
		return ids
	}

	usage := model.NewPromptUsage(prompt, ids)
	d.mu.Lock()
	d.history = append([]model.PromptUsage{usage}, d.history...)
	if len(d.history) > model.MaxPromptHistory {
		d.history = d.history[:model.MaxPromptHistory]
	}
	d.mu.Unlock()

	if d.recorder != nil {
		if err := d.recorder.AddPromptUsage(ctx, usage); err != nil {
			slog.WarnContext(ctx, "failed to persist prompt usage", "error", err)
		}
	}
	slog.InfoContext(ctx, "prompt applied", "prompt_id", prompt.ID, "panels", ids)
	return ids
}

// ClearPrompt unbinds prompts from the panels ApplyPrompt would target.
func (d *Dispatcher) ClearPrompt() []string {
	targets := PromptTargets(d.store.Snapshot())
	ids := make([]string, 0, len(targets))
	for _, p := range targets {
		d.store.UnbindPrompt(p.ID)
		ids = append(ids, p.ID)
	}
	return ids
}

// PromptHistory returns the usage history, newest first.
func (d *Dispatcher) PromptHistory() []model.PromptUsage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.PromptUsage(nil), d.history...)
}
