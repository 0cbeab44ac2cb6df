// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koharyou1215/multi-chat/internal/model"
)

const testModel = "openai/gpt-5-mini"

func ids(panels []Panel) []string {
	out := make([]string, len(panels))
	for i, p := range panels {
		out[i] = p.ID
	}
	return out
}

// =============================================================================
// PANEL IDS
// =============================================================================

func TestPanelOrdinal(t *testing.T) {
	n, ok := PanelOrdinal("panel-3")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	for _, bad := range []string{"", "panel-", "panel-0", "panel-x", "3"} {
		_, ok := PanelOrdinal(bad)
		assert.False(t, ok, bad)
	}
	assert.Equal(t, "panel-4", PanelID(4))
}

// =============================================================================
// PANEL COUNT
// =============================================================================

func TestNew(t *testing.T) {
	s := New(2, testModel)
	snap := s.Snapshot()
	assert.Equal(t, []string{"panel-1", "panel-2"}, ids(snap.Panels))
	assert.Equal(t, "panel-1", snap.Selected)
	assert.Empty(t, snap.MultiSend)
	for _, p := range snap.Panels {
		assert.Equal(t, testModel, p.ModelID)
		assert.Empty(t, p.Messages)
		assert.False(t, p.Loading)
		assert.Nil(t, p.Prompt)
	}

	assert.Equal(t, model.DefaultModelID, New(1, "").DefaultModel())
}

func TestSetPanelCount_Clamps(t *testing.T) {
	tests := []struct{ in, want int }{{0, 1}, {-3, 1}, {1, 1}, {3, 3}, {4, 4}, {9, 4}}
	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.in), func(t *testing.T) {
			s := New(1, testModel)
			s.SetPanelCount(tc.in)
			assert.Equal(t, tc.want, s.PanelCount())
		})
	}
}

func TestSetPanelCount_GrowKeepsExisting(t *testing.T) {
	s := New(1, testModel)
	s.SetModel("panel-1", "x-ai/grok-4")
	s.AppendMessage("panel-1", model.NewUserMessage("panel-1", "x-ai/grok-4", "hi", nil))
	s.SetDefaultModel("google/gemini-2.5-pro")

	s.SetPanelCount(3)
	panels := s.Panels()
	require.Len(t, panels, 3)
	assert.Equal(t, "x-ai/grok-4", panels[0].ModelID)
	assert.Len(t, panels[0].Messages, 1)
	assert.Equal(t, "google/gemini-2.5-pro", panels[1].ModelID)
	assert.Equal(t, "google/gemini-2.5-pro", panels[2].ModelID)
}

func TestSetPanelCount_ShrinkResetsSelectionAndPrunesMulti(t *testing.T) {
	s := New(4, testModel)
	s.SetSelected("panel-4")
	s.ToggleMultiSend("panel-1")
	s.ToggleMultiSend("panel-3")
	s.ToggleMultiSend("panel-4")

	s.SetPanelCount(2)
	assert.Equal(t, "panel-1", s.Selected())
	assert.Equal(t, []string{"panel-1"}, s.MultiSendIDs())
}

func TestSetPanelCount_ShrinkKeepsInRangeSelection(t *testing.T) {
	s := New(4, testModel)
	s.SetSelected("panel-2")
	s.SetPanelCount(2)
	assert.Equal(t, "panel-2", s.Selected())

	s.ClearSelection()
	s.SetPanelCount(1)
	assert.Equal(t, "", s.Selected())
}

func TestSetPanelCount_RegrowIsFresh(t *testing.T) {
	s := New(2, testModel)
	s.AppendMessage("panel-2", model.NewUserMessage("panel-2", testModel, "old", nil))
	s.SetPanelCount(1)
	s.SetPanelCount(2)

	p, ok := s.Panel("panel-2")
	require.True(t, ok)
	assert.Empty(t, p.Messages)
}

// =============================================================================
// MUTATIONS
// =============================================================================

func TestUnknownPanelIsNoOp(t *testing.T) {
	s := New(2, testModel)
	before := s.Snapshot()

	s.AppendMessage("panel-9", model.NewUserMessage("panel-9", testModel, "x", nil))
	s.SetLoading("panel-9", true)
	s.SetModel("panel-9", "x-ai/grok-4")
	s.ClearMessages("panel-9")
	s.BindPrompt("panel-9", model.NewPrompt("t", "c", nil))
	s.UnbindPrompt("panel-9")
	s.SetSelected("panel-9")
	s.ToggleMultiSend("panel-9")

	assert.Equal(t, before, s.Snapshot())
	_, ok := s.Panel("panel-9")
	assert.False(t, ok)
}

func TestAppendAndClear(t *testing.T) {
	s := New(2, testModel)
	s.AppendMessage("panel-1", model.NewUserMessage("other", testModel, "a", nil))
	s.AppendMessage("panel-1", model.NewAssistantMessage("panel-1", testModel, "b"))

	p, _ := s.Panel("panel-1")
	require.Len(t, p.Messages, 2)
	assert.Equal(t, "panel-1", p.Messages[0].PanelID)
	assert.Equal(t, "b", p.Messages[1].Content)

	s.ClearMessages("panel-1")
	p, _ = s.Panel("panel-1")
	assert.Empty(t, p.Messages)

	s.AppendMessage("panel-2", model.NewAssistantMessage("panel-2", testModel, "c"))
	s.ClearAll()
	assert.Empty(t, s.Panels()[1].Messages)
}

func TestReadsAreCopies(t *testing.T) {
	s := New(1, testModel)
	att := model.Attachment{ID: "a", Name: "x.png", MIMEType: "image/png"}
	s.AppendMessage("panel-1", model.NewUserMessage("panel-1", testModel, "a", []model.Attachment{att}))
	s.BindPrompt("panel-1", model.NewPrompt("Terse", "Be terse.", []string{"style"}))

	p, _ := s.Panel("panel-1")
	p.Messages[0].Content = "mutated"
	p.Messages[0].Attachments[0].Name = "mutated"
	p.Prompt.Content = "mutated"
	p.Prompt.Tags[0] = "mutated"

	again, _ := s.Panel("panel-1")
	assert.Equal(t, "a", again.Messages[0].Content)
	assert.Equal(t, "x.png", again.Messages[0].Attachments[0].Name)
	assert.Equal(t, "Be terse.", again.Prompt.Content)
	assert.Equal(t, "style", again.Prompt.Tags[0])
}

func TestBindPromptIsCopy(t *testing.T) {
	s := New(1, testModel)
	prompt := model.NewPrompt("Reviewer", "Review code.", []string{"code"})
	s.BindPrompt("panel-1", prompt)

	prompt.Content = "edited in library"
	prompt.Tags[0] = "edited"

	p, _ := s.Panel("panel-1")
	require.NotNil(t, p.Prompt)
	assert.Equal(t, "Review code.", p.SystemPrompt())
	assert.Equal(t, []string{"code"}, p.Prompt.Tags)

	s.UnbindPrompt("panel-1")
	p, _ = s.Panel("panel-1")
	assert.Nil(t, p.Prompt)
	assert.Equal(t, "", p.SystemPrompt())
}

func TestToggleMultiSend(t *testing.T) {
	s := New(3, testModel)
	s.ToggleMultiSend("panel-3")
	s.ToggleMultiSend("panel-1")
	assert.Equal(t, []string{"panel-3", "panel-1"}, s.MultiSendIDs())

	s.ToggleMultiSend("panel-3")
	assert.Equal(t, []string{"panel-1"}, s.MultiSendIDs())

	s.ClearMultiSend()
	assert.Empty(t, s.MultiSendIDs())
}

func TestAnyLoading(t *testing.T) {
	s := New(2, testModel)
	assert.False(t, s.AnyLoading())
	s.SetLoading("panel-2", true)
	assert.True(t, s.AnyLoading())
	assert.True(t, s.Snapshot().AnyLoading())
	s.SetLoading("panel-2", false)
	assert.False(t, s.AnyLoading())
}

// =============================================================================
// SEND CYCLES
// =============================================================================

func TestBeginCycle(t *testing.T) {
	s := New(2, testModel)
	s.AppendMessage("panel-1", model.NewUserMessage("panel-1", testModel, "earlier", nil))
	s.AppendMessage("panel-1", model.NewAssistantMessage("panel-1", testModel, "reply"))
	s.BindPrompt("panel-1", model.NewPrompt("Sys", "be nice", nil))

	c, err := s.BeginCycle("panel-1", "now", nil)
	require.NoError(t, err)
	assert.Equal(t, "panel-1", c.PanelID)
	assert.Equal(t, testModel, c.ModelID)
	assert.Equal(t, "be nice", c.SystemPrompt)
	require.Len(t, c.History, 3)
	assert.Equal(t, "now", c.History[2].Content)
	assert.Equal(t, model.RoleUser, c.History[2].Role)
	assert.Equal(t, c.UserMessage.ID, c.History[2].ID)

	p, _ := s.Panel("panel-1")
	assert.True(t, p.Loading)
	assert.Len(t, p.Messages, 3)
}

func TestBeginCycle_Busy(t *testing.T) {
	s := New(1, testModel)
	_, err := s.BeginCycle("panel-1", "first", nil)
	require.NoError(t, err)

	_, err = s.BeginCycle("panel-1", "second", nil)
	assert.ErrorIs(t, err, ErrPanelBusy)

	p, _ := s.Panel("panel-1")
	assert.Len(t, p.Messages, 1)

	_, err = s.BeginCycle("panel-7", "x", nil)
	assert.ErrorIs(t, err, ErrPanelNotFound)
}

func TestFinishCycle(t *testing.T) {
	s := New(1, testModel)
	c, err := s.BeginCycle("panel-1", "q", nil)
	require.NoError(t, err)

	ok := s.FinishCycle(c, model.NewAssistantMessage(c.PanelID, c.ModelID, "a"))
	assert.True(t, ok)

	p, _ := s.Panel("panel-1")
	assert.False(t, p.Loading)
	require.Len(t, p.Messages, 2)
	assert.Equal(t, model.RoleAssistant, p.Messages[1].Role)
}

func TestFinishCycle_DiscardedPanel(t *testing.T) {
	s := New(2, testModel)
	c, err := s.BeginCycle("panel-2", "q", nil)
	require.NoError(t, err)

	s.SetPanelCount(1)
	assert.False(t, s.FinishCycle(c, model.NewAssistantMessage(c.PanelID, c.ModelID, "late")))

	s.SetPanelCount(2)
	assert.False(t, s.FinishCycle(c, model.NewAssistantMessage(c.PanelID, c.ModelID, "late")))
	p, _ := s.Panel("panel-2")
	assert.Empty(t, p.Messages)
	assert.False(t, p.Loading)
}

func TestCyclesOnDifferentPanelsDoNotInterfere(t *testing.T) {
	s := New(4, testModel)
	var wg sync.WaitGroup
	for i := 1; i <= 4; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				c, err := s.BeginCycle(id, fmt.Sprint(j), nil)
				if !assert.NoError(t, err) {
					return
				}
				s.FinishCycle(c, model.NewAssistantMessage(id, c.ModelID, "r"))
			}
		}(PanelID(i))
	}
	wg.Wait()

	for _, p := range s.Panels() {
		require.Len(t, p.Messages, 50)
		for j, m := range p.Messages {
			assert.Equal(t, p.ID, m.PanelID)
			if j%2 == 0 {
				assert.Equal(t, model.RoleUser, m.Role)
			} else {
				assert.Equal(t, model.RoleAssistant, m.Role)
			}
		}
		assert.False(t, p.Loading)
	}
}

// =============================================================================
// VIEW STATE / OBSERVERS
// =============================================================================

func TestRestoreViewState(t *testing.T) {
	s := New(1, testModel)
	s.RestoreViewState(ViewState{
		PanelCount: 3,
		Selected:   "panel-2",
		MultiSend:  []string{"panel-3", "panel-9", "panel-3", "panel-1"},
	})

	v := s.ViewState()
	assert.Equal(t, 3, v.PanelCount)
	assert.Equal(t, "panel-2", v.Selected)
	assert.Equal(t, []string{"panel-3", "panel-1"}, v.MultiSend)

	s.RestoreViewState(ViewState{PanelCount: 2, Selected: "panel-4"})
	assert.Equal(t, "panel-1", s.Selected())
}

func TestSubscribe(t *testing.T) {
	s := New(1, testModel)
	ch, cancel := s.Subscribe()

	s.SetLoading("panel-1", true)
	s.SetLoading("panel-1", false)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	// Coalesced: at most one pending notification.
	select {
	case <-ch:
		t.Fatal("notifications should coalesce")
	default:
	}

	s.SetLoading("panel-9", true)
	select {
	case <-ch:
		t.Fatal("no-op mutation should not notify")
	default:
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	s.SetLoading("panel-1", true)
}
