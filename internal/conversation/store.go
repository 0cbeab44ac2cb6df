// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"slices"
	"sync"

	"github.com/koharyou1215/multi-chat/internal/model"
)

// Panel count bounds.
const (
	MinPanels = 1
	MaxPanels = 4
)

var (
	// ErrPanelNotFound is returned by BeginCycle for an id outside the
	// active range.
	ErrPanelNotFound = errors.New("panel not found")

	// ErrPanelBusy is returned by BeginCycle when the panel already has a
	// cycle in flight.
	ErrPanelBusy = errors.New("panel is waiting for a response")
)

// =============================================================================
// STORE
// =============================================================================

// panelState is the mutable record behind a Panel. epoch changes whenever
// the slot is recreated so that writes from a cycle launched against a
// discarded panel can be recognised and dropped.
type panelState struct {
	Panel
	epoch uint64
}

// Store owns every panel's conversation state. All methods are safe for
// concurrent use; reads return copies.
type Store struct {
	mu sync.RWMutex

	defaultModel string
	panels       []*panelState
	selected     string
	multiSend    []string
	nextEpoch    uint64

	subMu sync.Mutex
	subs  map[int]chan struct{}
	subID int
}

// New creates a store with count panels (clamped to 1..4), each bound to
// defaultModel. panel-1 starts selected.
func New(count int, defaultModel string) *Store {
	if defaultModel == "" {
		defaultModel = model.DefaultModelID
	}
	s := &Store{
		defaultModel: defaultModel,
		selected:     PanelID(1),
		subs:         make(map[int]chan struct{}),
	}
	s.resizeLocked(clamp(count))
	return s
}

func clamp(n int) int {
	return max(MinPanels, min(MaxPanels, n))
}

// DefaultModel returns the model new panels are created with.
func (s *Store) DefaultModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultModel
}

// SetDefaultModel changes the model used for panels created by later grows.
func (s *Store) SetDefaultModel(modelID string) {
	if modelID == "" {
		return
	}
	s.mu.Lock()
	s.defaultModel = modelID
	s.mu.Unlock()
}

// find returns the live record for id. Caller holds mu.
func (s *Store) find(id string) *panelState {
	for _, p := range s.panels {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// mutate runs fn on the panel under the write lock and notifies observers
// if the panel exists.
func (s *Store) mutate(id string, fn func(p *panelState)) {
	s.mu.Lock()
	p := s.find(id)
	if p != nil {
		fn(p)
	}
	s.mu.Unlock()
	if p != nil {
		s.notify()
	}
}

// =============================================================================
// PANEL COUNT
// =============================================================================

// SetPanelCount grows or shrinks the active panel set. Growing appends
// fresh panels with the default model; shrinking discards the tail. A
// selection that falls out of range resets to panel-1 and removed ids are
// pruned from the multi-select set.
func (s *Store) SetPanelCount(n int) {
	s.mu.Lock()
	changed := s.resizeLocked(clamp(n))
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Store) resizeLocked(n int) bool {
	cur := len(s.panels)
	if n == cur {
		return false
	}
	if n < cur {
		s.panels = s.panels[:n:n]
	}
	for i := cur; i < n; i++ {
		s.nextEpoch++
		s.panels = append(s.panels, &panelState{
			Panel: Panel{ID: PanelID(i + 1), ModelID: s.defaultModel},
			epoch: s.nextEpoch,
		})
	}

	if s.selected != "" && s.find(s.selected) == nil {
		s.selected = PanelID(1)
	}
	s.multiSend = slices.DeleteFunc(s.multiSend, func(id string) bool {
		return s.find(id) == nil
	})
	return true
}

// PanelCount returns the number of active panels.
func (s *Store) PanelCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.panels)
}

// =============================================================================
// PANEL MUTATIONS
// =============================================================================

// AppendMessage appends msg to the panel's transcript.
func (s *Store) AppendMessage(id string, msg model.Message) {
	msg = msg.Clone()
	msg.PanelID = id
	s.mutate(id, func(p *panelState) {
		p.Messages = append(p.Messages, msg)
	})
}

// SetLoading sets the panel's in-flight flag.
func (s *Store) SetLoading(id string, loading bool) {
	s.mutate(id, func(p *panelState) {
		p.Loading = loading
	})
}

// SetModel binds a model to the panel. Existing turns keep the model id
// they were created with.
func (s *Store) SetModel(id, modelID string) {
	if modelID == "" {
		return
	}
	s.mutate(id, func(p *panelState) {
		p.ModelID = modelID
	})
}

// ClearMessages empties the panel's transcript.
func (s *Store) ClearMessages(id string) {
	s.mutate(id, func(p *panelState) {
		p.Messages = nil
	})
}

// ClearAll empties every panel's transcript.
func (s *Store) ClearAll() {
	s.mu.Lock()
	for _, p := range s.panels {
		p.Messages = nil
	}
	s.mu.Unlock()
	s.notify()
}

// BindPrompt binds a copy of prompt to the panel. Later edits to the
// library entry do not reach the bound copy.
func (s *Store) BindPrompt(id string, prompt model.Prompt) {
	cp := prompt.Clone()
	s.mutate(id, func(p *panelState) {
		p.Prompt = &cp
	})
}

// UnbindPrompt removes the panel's prompt binding.
func (s *Store) UnbindPrompt(id string) {
	s.mutate(id, func(p *panelState) {
		p.Prompt = nil
	})
}

// =============================================================================
// SELECTION
// =============================================================================

// SetSelected focuses the panel. Unknown ids are ignored.
func (s *Store) SetSelected(id string) {
	s.mutate(id, func(p *panelState) {
		s.selected = p.ID
	})
}

// ClearSelection unfocuses every panel.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = ""
	s.mu.Unlock()
	s.notify()
}

// ToggleMultiSend adds the panel to the multi-select set, or removes it if
// already present.
func (s *Store) ToggleMultiSend(id string) {
	s.mutate(id, func(p *panelState) {
		if i := slices.Index(s.multiSend, p.ID); i >= 0 {
			s.multiSend = slices.Delete(s.multiSend, i, i+1)
			return
		}
		s.multiSend = append(s.multiSend, p.ID)
	})
}

// ClearMultiSend empties the multi-select set.
func (s *Store) ClearMultiSend() {
	s.mu.Lock()
	s.multiSend = nil
	s.mu.Unlock()
	s.notify()
}

// =============================================================================
// READS
// =============================================================================

// Snapshot returns a consistent copy of all state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Panels:    make([]Panel, len(s.panels)),
		Selected:  s.selected,
		MultiSend: slices.Clone(s.multiSend),
	}
	for i, p := range s.panels {
		snap.Panels[i] = p.clone()
	}
	return snap
}

// Panel returns a copy of one panel.
func (s *Store) Panel(id string) (Panel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.find(id)
	if p == nil {
		return Panel{}, false
	}
	return p.clone(), true
}

// Panels returns copies of the active panels in slot order.
func (s *Store) Panels() []Panel {
	return s.Snapshot().Panels
}

// Selected returns the focused panel id, or "".
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// MultiSendIDs returns the multi-select set in insertion order.
func (s *Store) MultiSendIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.multiSend)
}

// AnyLoading reports whether any panel has a cycle in flight.
func (s *Store) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.panels {
		if p.Loading {
			return true
		}
	}
	return false
}

// =============================================================================
// SEND CYCLES
// =============================================================================

// Cycle is the launch snapshot of one send cycle. History already ends with
// the new user turn.
type Cycle struct {
	PanelID      string
	ModelID      string
	SystemPrompt string
	History      []model.Message
	UserMessage  model.Message

	epoch uint64
}

// BeginCycle appends a user turn and sets loading in one critical section.
// It fails with ErrPanelBusy, leaving the transcript untouched, when the
// panel already has a cycle in flight.
func (s *Store) BeginCycle(id, content string, attachments []model.Attachment) (Cycle, error) {
	s.mu.Lock()
	p := s.find(id)
	if p == nil {
		s.mu.Unlock()
		return Cycle{}, ErrPanelNotFound
	}
	if p.Loading {
		s.mu.Unlock()
		return Cycle{}, ErrPanelBusy
	}

	msg := model.NewUserMessage(p.ID, p.ModelID, content, attachments)
	p.Messages = append(p.Messages, msg)
	p.Loading = true

	c := Cycle{
		PanelID:      p.ID,
		ModelID:      p.ModelID,
		SystemPrompt: p.SystemPrompt(),
		History:      model.CloneMessages(p.Messages),
		UserMessage:  msg.Clone(),
		epoch:        p.epoch,
	}
	s.mu.Unlock()

	s.notify()
	return c, nil
}

// FinishCycle appends the cycle's result turn and clears loading. It
// reports false when the panel was discarded after the cycle began, in
// which case nothing is written.
func (s *Store) FinishCycle(c Cycle, result model.Message) bool {
	result = result.Clone()
	result.PanelID = c.PanelID

	s.mu.Lock()
	p := s.find(c.PanelID)
	if p == nil || p.epoch != c.epoch {
		s.mu.Unlock()
		return false
	}
	p.Messages = append(p.Messages, result)
	p.Loading = false
	s.mu.Unlock()

	s.notify()
	return true
}

// =============================================================================
// VIEW STATE
// =============================================================================

// ViewState is the part of the store that survives restarts.
type ViewState struct {
	PanelCount int
	Selected   string
	MultiSend  []string
}

// ViewState returns the current view state.
func (s *Store) ViewState() ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ViewState{
		PanelCount: len(s.panels),
		Selected:   s.selected,
		MultiSend:  slices.Clone(s.multiSend),
	}
}

// RestoreViewState applies a saved view state. Ids that do not name an
// active panel are dropped.
func (s *Store) RestoreViewState(v ViewState) {
	s.mu.Lock()
	if v.PanelCount > 0 {
		s.resizeLocked(clamp(v.PanelCount))
	}
	if v.Selected == "" || s.find(v.Selected) != nil {
		s.selected = v.Selected
	} else {
		s.selected = PanelID(1)
	}
	s.multiSend = nil
	for _, id := range v.MultiSend {
		if s.find(id) != nil && !slices.Contains(s.multiSend, id) {
			s.multiSend = append(s.multiSend, id)
		}
	}
	s.mu.Unlock()
	s.notify()
}

// =============================================================================
// OBSERVERS
// =============================================================================

// Subscribe registers an observer. The returned channel receives a value
// after mutations; notifications coalesce while the observer is behind.
// The cancel func unregisters and closes the channel.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.subID
	s.subID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
