// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Outcome is how one target's cycle ended.
type Outcome int

const (
	// Pending means the cycle has not settled yet.
	Pending Outcome = iota
	// Delivered means a reply was appended.
	Delivered
	// Failed means an error turn was appended.
	Failed
	// Skipped means the panel was not touched.
	Skipped
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is one target's outcome.
type Result struct {
	PanelID string
	ModelID string
	TaskID  string
	Outcome Outcome

	// Err is the cycle's failure or skip reason.
	Err error

	// Reply is the appended reply text for Delivered cycles.
	Reply string
}

// Batch tracks the cycles launched by one Broadcast.
type Batch struct {
	ID     string
	Policy Policy

	mu      sync.Mutex
	results []Result
	wg      sync.WaitGroup
	done    chan struct{}
}

func newBatch(policy Policy, n int) *Batch {
	return &Batch{
		ID:      uuid.NewString(),
		Policy:  policy,
		results: make([]Result, n),
		done:    make(chan struct{}),
	}
}

func (b *Batch) set(i int, r Result) {
	b.mu.Lock()
	b.results[i] = r
	b.mu.Unlock()
}

// seal closes done once every launched cycle has settled.
func (b *Batch) seal() {
	go func() {
		b.wg.Wait()
		close(b.done)
	}()
}

// Done is closed when every cycle has settled.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until every cycle has settled.
func (b *Batch) Wait() {
	<-b.done
}

// WaitContext is Wait bounded by ctx. The cycles keep running if ctx ends
// first.
func (b *Batch) WaitContext(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of targets.
func (b *Batch) Len() int {
	return len(b.results)
}

// Results returns a copy of the per-target outcomes in target order.
// Unsettled targets report Pending.
func (b *Batch) Results() []Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Result(nil), b.results...)
}

// Counts tallies the outcomes.
func (b *Batch) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, 4)
	for _, r := range b.Results() {
		counts[r.Outcome]++
	}
	return counts
}
