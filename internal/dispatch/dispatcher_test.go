// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/koharyou1215/multi-chat/internal/cloud"
	"github.com/koharyou1215/multi-chat/internal/conversation"
	"github.com/koharyou1215/multi-chat/internal/credential"
	"github.com/koharyou1215/multi-chat/internal/dispatch"
	"github.com/koharyou1215/multi-chat/internal/model"
	"github.com/koharyou1215/multi-chat/internal/tasks"
)

const (
	modelA = "model/a"
	modelB = "model/b"
)

// call records one GenerateResponse invocation.
type call struct {
	modelID string
	history []model.Message
	system  string
}

// fakeProvider answers per model. A model listed in hold blocks until its
// channel is closed.
type fakeProvider struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	hold    map[string]chan struct{}
	calls   []call
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		replies: map[string]string{},
		errs:    map[string]error{},
		hold:    map[string]chan struct{}{},
	}
}

func (f *fakeProvider) GenerateResponse(ctx context.Context, modelID string, history []model.Message, systemPrompt string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{modelID, history, systemPrompt})
	wait := f.hold[modelID]
	reply, err := f.replies[modelID], f.errs[modelID]
	f.mu.Unlock()

	if wait != nil {
		<-wait
	}
	if err != nil {
		return "", err
	}
	if reply == "" {
		reply = "reply from " + modelID
	}
	return reply, nil
}

func (f *fakeProvider) ValidateCredential(ctx context.Context) bool { return true }

func (f *fakeProvider) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

type usageSink struct {
	mu    sync.Mutex
	saved []model.PromptUsage
}

func (s *usageSink) AddPromptUsage(ctx context.Context, u model.PromptUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, u)
	return nil
}

func roles(msgs []model.Message) []model.Role {
	out := make([]model.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func panel(store *conversation.Store, id string) conversation.Panel {
	p, ok := store.Panel(id)
	Expect(ok).To(BeTrue(), "panel %s should exist", id)
	return p
}

var _ = Describe("Dispatcher", func() {
	var (
		ctx      context.Context
		store    *conversation.Store
		provider *fakeProvider
		gate     *credential.Gate
		queue    *tasks.Queue
		d        *dispatch.Dispatcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = conversation.New(2, modelA)
		store.SetModel("panel-2", modelB)
		provider = newFakeProvider()
		gate = credential.NewGate("sk-or-test")
		queue = tasks.NewQueue(0)
		d = dispatch.New(store, provider, gate, dispatch.WithQueue(queue))
	})

	broadcast := func(policy dispatch.Policy, text string, atts []model.Attachment) *dispatch.Batch {
		GinkgoHelper()
		batch, err := d.Broadcast(ctx, policy, text, atts)
		Expect(err).NotTo(HaveOccurred())
		batch.Wait()
		return batch
	}

	Describe("target resolution", func() {
		DescribeTable("appends one user and one result turn to each target only",
			func(count int, policy dispatch.Policy, setup func(*conversation.Store), want []string) {
				store.SetPanelCount(count)
				if setup != nil {
					setup(store)
				}
				batch := broadcast(policy, "ping", nil)

				got := []string{}
				for _, r := range batch.Results() {
					got = append(got, r.PanelID)
				}
				Expect(got).To(Equal(want))

				for _, p := range store.Panels() {
					if strings.Contains(strings.Join(want, ","), p.ID) {
						Expect(roles(p.Messages)).To(Equal([]model.Role{model.RoleUser, model.RoleAssistant}), p.ID)
					} else {
						Expect(p.Messages).To(BeEmpty(), p.ID)
					}
					Expect(p.Loading).To(BeFalse())
				}
			},
			Entry("all, 1 panel", 1, dispatch.All, nil, []string{"panel-1"}),
			Entry("all, 3 panels", 3, dispatch.All, nil, []string{"panel-1", "panel-2", "panel-3"}),
			Entry("all, 4 panels", 4, dispatch.All, nil, []string{"panel-1", "panel-2", "panel-3", "panel-4"}),
			Entry("selected", 4, dispatch.Selected, func(s *conversation.Store) { s.SetSelected("panel-3") }, []string{"panel-3"}),
			Entry("multi", 4, dispatch.Multi, func(s *conversation.Store) {
				s.ToggleMultiSend("panel-4")
				s.ToggleMultiSend("panel-2")
			}, []string{"panel-2", "panel-4"}),
			Entry("selected with no selection", 3, dispatch.Selected, func(s *conversation.Store) { s.ClearSelection() }, []string{}),
			Entry("multi with empty set", 3, dispatch.Multi, nil, []string{}),
		)

		It("performs no mutation and calls nothing for zero targets", func() {
			store.ClearSelection()
			before := store.Snapshot()

			batch, err := d.Broadcast(ctx, dispatch.Selected, "hello", nil)
			Expect(err).NotTo(HaveOccurred())
			Eventually(batch.Done()).Should(BeClosed())
			Expect(batch.Len()).To(BeZero())
			Expect(store.Snapshot()).To(Equal(before))
			Expect(provider.Calls()).To(BeEmpty())
			Expect(queue.Batch(batch.ID)).To(BeEmpty())
		})

		It("resolves targets once, at call time", func() {
			hold := make(chan struct{})
			provider.hold[modelA] = hold
			store.ToggleMultiSend("panel-1")

			batch, err := d.Broadcast(ctx, dispatch.Multi, "hello", nil)
			Expect(err).NotTo(HaveOccurred())
			store.ToggleMultiSend("panel-2")
			close(hold)
			batch.Wait()

			Expect(batch.Len()).To(Equal(1))
			Expect(panel(store, "panel-2").Messages).To(BeEmpty())
		})
	})

	Describe("send cycle", func() {
		It("delivers each model's reply to its own panel", func() {
			provider.replies[modelA] = "Hi from A"
			provider.replies[modelB] = "Hi from B"

			batch := broadcast(dispatch.All, "Hello", nil)

			for id, want := range map[string]string{"panel-1": "Hi from A", "panel-2": "Hi from B"} {
				p := panel(store, id)
				Expect(p.Loading).To(BeFalse())
				Expect(p.Messages).To(HaveLen(2))
				Expect(p.Messages[0].Role).To(Equal(model.RoleUser))
				Expect(p.Messages[0].Content).To(Equal("Hello"))
				Expect(p.Messages[1].Role).To(Equal(model.RoleAssistant))
				Expect(p.Messages[1].Content).To(Equal(want))
				Expect(p.Messages[1].IsError).To(BeFalse())
			}
			Expect(batch.Counts()[dispatch.Delivered]).To(Equal(2))
		})

		It("tags the user turn with the panel's model and attachments", func() {
			img := model.Attachment{ID: "img", Kind: model.KindImage, Name: "a.png", MIMEType: "image/png",
				Locator: model.Locator{URL: "data:image/png;base64,AA==", SessionID: model.SessionID()}}
			broadcast(dispatch.All, "", []model.Attachment{img})

			user := panel(store, "panel-2").Messages[0]
			Expect(user.ModelID).To(Equal(modelB))
			Expect(user.PanelID).To(Equal("panel-2"))
			Expect(user.Attachments).To(HaveLen(1))
			Expect(user.Attachments[0].Name).To(Equal("a.png"))
		})

		It("sends the post-append history and the bound prompt body", func() {
			store.AppendMessage("panel-1", model.NewUserMessage("panel-1", modelA, "earlier", nil))
			store.AppendMessage("panel-1", model.NewAssistantMessage("panel-1", modelA, "sure"))
			store.BindPrompt("panel-1", model.NewPrompt("Pirate", "Talk like a pirate.", nil))

			broadcast(dispatch.Selected, "now", nil)

			calls := provider.Calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].modelID).To(Equal(modelA))
			Expect(calls[0].system).To(Equal("Talk like a pirate."))
			Expect(calls[0].history).To(HaveLen(3))
			Expect(calls[0].history[2].Content).To(Equal("now"))
		})

		It("uses the model and prompt bound at launch", func() {
			hold := make(chan struct{})
			provider.hold[modelA] = hold
			store.BindPrompt("panel-1", model.NewPrompt("Old", "old prompt", nil))

			batch, err := d.Broadcast(ctx, dispatch.Selected, "q", nil)
			Expect(err).NotTo(HaveOccurred())
			store.SetModel("panel-1", modelB)
			store.BindPrompt("panel-1", model.NewPrompt("New", "new prompt", nil))
			close(hold)
			batch.Wait()

			Expect(provider.Calls()[0].system).To(Equal("old prompt"))
			reply := panel(store, "panel-1").Messages[1]
			Expect(reply.ModelID).To(Equal(modelA))
		})

		It("shows the user turn and loading before the reply arrives", func() {
			hold := make(chan struct{})
			provider.hold[modelA] = hold
			provider.hold[modelB] = hold

			batch, err := d.Broadcast(ctx, dispatch.All, "wait", nil)
			Expect(err).NotTo(HaveOccurred())

			for _, p := range store.Panels() {
				Expect(p.Loading).To(BeTrue())
				Expect(p.Messages).To(HaveLen(1))
				Expect(p.Messages[0].Role).To(Equal(model.RoleUser))
			}
			Expect(store.AnyLoading()).To(BeTrue())
			Consistently(batch.Done(), 50*time.Millisecond).ShouldNot(BeClosed())

			close(hold)
			Eventually(batch.Done()).Should(BeClosed())
			Expect(store.AnyLoading()).To(BeFalse())
		})

		It("is not idempotent", func() {
			broadcast(dispatch.All, "same", nil)
			broadcast(dispatch.All, "same", nil)
			Expect(panel(store, "panel-1").Messages).To(HaveLen(4))
		})

		It("records every cycle in the queue", func() {
			provider.errs[modelB] = errors.New("boom")
			batch := broadcast(dispatch.All, "x", nil)

			recorded := queue.Batch(batch.ID)
			Expect(recorded).To(HaveLen(2))
			statuses := map[string]tasks.TaskStatus{}
			for _, t := range recorded {
				statuses[t.PanelID] = t.Status
			}
			Expect(statuses).To(Equal(map[string]tasks.TaskStatus{
				"panel-1": tasks.TaskStatusComplete,
				"panel-2": tasks.TaskStatusFailed,
			}))
		})
	})

	Describe("long sessions", func() {
		It("logs no warnings across more cycles than a subscriber buffers", func() {
			var logs bytes.Buffer
			prev := slog.Default()
			slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
			DeferCleanup(func() { slog.SetDefault(prev) })

			queue = tasks.NewQueue(200)
			d = dispatch.New(store, provider, gate, dispatch.WithQueue(queue))
			store.SetPanelCount(1)

			for i := 0; i < 105; i++ {
				broadcast(dispatch.All, fmt.Sprintf("turn %d", i), nil)
			}

			Expect(logs.String()).NotTo(ContainSubstring("level=WARN"))
			Expect(queue.Summary()).To(HavePrefix("Running: 0 | Queued: 0 | Completed: 105 |"))
		})
	})

	Describe("failure isolation", func() {
		It("turns a provider failure into an error turn in that panel only", func() {
			provider.errs[modelA] = &cloud.ProviderError{Status: 401, Body: `{"error":{"message":"No auth credentials found","code":401}}`}
			provider.replies[modelB] = "fine"

			batch := broadcast(dispatch.All, "hello", nil)

			a := panel(store, "panel-1")
			Expect(a.Loading).To(BeFalse())
			last, _ := a.LastMessage()
			Expect(last.Role).To(Equal(model.RoleAssistant))
			Expect(last.IsError).To(BeTrue())
			Expect(last.Content).To(HavePrefix(model.ErrorPrefix))
			Expect(last.Content).To(ContainSubstring("401"))

			b := panel(store, "panel-2")
			last, _ = b.LastMessage()
			Expect(last.Content).To(Equal("fine"))
			Expect(last.IsError).To(BeFalse())

			results := batch.Results()
			Expect(results[0].Outcome).To(Equal(dispatch.Failed))
			Expect(cloud.StatusCode(results[0].Err)).To(Equal(401))
			Expect(results[1].Outcome).To(Equal(dispatch.Delivered))
		})

		It("does not hold fast panels behind a slow one", func() {
			hold := make(chan struct{})
			defer close(hold)
			provider.hold[modelA] = hold

			_, err := d.Broadcast(ctx, dispatch.All, "race", nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() bool { return panel(store, "panel-2").Loading }).Should(BeFalse())
			Expect(panel(store, "panel-2").Messages).To(HaveLen(2))
			Expect(panel(store, "panel-1").Loading).To(BeTrue())
		})

		It("survives caller cancellation", func() {
			hold := make(chan struct{})
			provider.hold[modelA] = hold
			cctx, cancel := context.WithCancel(ctx)

			batch, err := d.Broadcast(cctx, dispatch.Selected, "x", nil)
			Expect(err).NotTo(HaveOccurred())
			cancel()
			close(hold)
			batch.Wait()

			Expect(batch.Results()[0].Outcome).To(Equal(dispatch.Delivered))
		})

		It("clears loading when the provider panics", func() {
			d = dispatch.New(store, panicky{}, gate)
			batch := broadcast(dispatch.Selected, "x", nil)

			p := panel(store, "panel-1")
			Expect(p.Loading).To(BeFalse())
			Expect(p.Messages[1].IsError).To(BeTrue())
			Expect(batch.Results()[0].Outcome).To(Equal(dispatch.Failed))
		})
	})

	Describe("same-panel guard", func() {
		It("skips a panel whose previous cycle is still in flight", func() {
			hold := make(chan struct{})
			provider.hold[modelA] = hold

			first, err := d.Broadcast(ctx, dispatch.Selected, "first", nil)
			Expect(err).NotTo(HaveOccurred())

			second, err := d.Broadcast(ctx, dispatch.All, "second", nil)
			Expect(err).NotTo(HaveOccurred())
			second.Wait()

			results := second.Results()
			Expect(results[0].Outcome).To(Equal(dispatch.Skipped))
			Expect(results[0].Err).To(MatchError(dispatch.ErrPanelBusy))
			Expect(results[1].Outcome).To(Equal(dispatch.Delivered))

			close(hold)
			first.Wait()
			msgs := panel(store, "panel-1").Messages
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Content).To(Equal("first"))
		})
	})

	Describe("panel resizing", func() {
		It("drops a late reply for a panel removed while in flight", func() {
			store.SetPanelCount(4)
			hold := make(chan struct{})
			provider.hold[modelA] = hold

			batch, err := d.Broadcast(ctx, dispatch.All, "x", nil)
			Expect(err).NotTo(HaveOccurred())
			store.SetPanelCount(2)
			store.SetPanelCount(4)
			close(hold)
			batch.Wait()

			for _, id := range []string{"panel-3", "panel-4"} {
				p := panel(store, id)
				Expect(p.Messages).To(BeEmpty())
				Expect(p.Loading).To(BeFalse())
			}
			Expect(panel(store, "panel-1").Messages).To(HaveLen(2))
		})

		It("discards history on shrink and grows fresh panels", func() {
			store.SetPanelCount(4)
			broadcast(dispatch.All, "fill", nil)
			store.SetPanelCount(2)
			Expect(store.Panels()).To(HaveLen(2))
			store.SetPanelCount(4)

			Expect(panel(store, "panel-3").Messages).To(BeEmpty())
			Expect(panel(store, "panel-4").Messages).To(BeEmpty())
			Expect(panel(store, "panel-1").Messages).To(HaveLen(2))
		})
	})

	Describe("preconditions", func() {
		It("is a no-op without a credential", func() {
			gate.Set("")
			before := store.Snapshot()

			batch, err := d.Broadcast(ctx, dispatch.All, "Hello", nil)
			Expect(err).To(MatchError(credential.ErrMissingCredential))
			Expect(batch).To(BeNil())
			Expect(store.Snapshot()).To(Equal(before))
			Expect(provider.Calls()).To(BeEmpty())
		})

		It("rejects blank text without attachments", func() {
			_, err := d.Broadcast(ctx, dispatch.All, "  \n", nil)
			Expect(err).To(MatchError(dispatch.ErrEmptyMessage))
			Expect(panel(store, "panel-1").Messages).To(BeEmpty())
		})
	})

	Describe("ApplyPrompt", func() {
		var prompt model.Prompt

		BeforeEach(func() {
			store.SetPanelCount(3)
			prompt = model.NewPrompt("Reviewer", "Review the code.", []string{"code"})
		})

		It("prefers the multi-send set", func() {
			store.ToggleMultiSend("panel-3")
			Expect(d.ApplyPrompt(ctx, prompt)).To(Equal([]string{"panel-3"}))
			Expect(panel(store, "panel-1").Prompt).To(BeNil())
		})

		It("falls back to the selected panel, then to all", func() {
			store.SetSelected("panel-2")
			Expect(d.ApplyPrompt(ctx, prompt)).To(Equal([]string{"panel-2"}))

			store.ClearSelection()
			Expect(d.ApplyPrompt(ctx, prompt)).To(Equal([]string{"panel-1", "panel-2", "panel-3"}))
		})

		It("binds a copy that later library edits do not reach", func() {
			d.ApplyPrompt(ctx, prompt)
			prompt.Content = "edited"
			Expect(panel(store, "panel-1").SystemPrompt()).To(Equal("Review the code."))
		})

		It("records usage newest first, capped", func() {
			sink := &usageSink{}
			d = dispatch.New(store, provider, gate, dispatch.WithUsageRecorder(sink))

			for i := 0; i < model.MaxPromptHistory+5; i++ {
				d.ApplyPrompt(ctx, model.NewPrompt(fmt.Sprint(i), "c", nil))
			}
			history := d.PromptHistory()
			Expect(history).To(HaveLen(model.MaxPromptHistory))
			Expect(history[0].Title).To(Equal(fmt.Sprint(model.MaxPromptHistory + 4)))
			Expect(sink.saved).To(HaveLen(model.MaxPromptHistory + 5))
		})

		It("clears bindings with the same targeting rule", func() {
			store.ClearSelection()
			d.ApplyPrompt(ctx, prompt)
			store.SetSelected("panel-1")
			Expect(d.ClearPrompt()).To(Equal([]string{"panel-1"}))
			Expect(panel(store, "panel-1").Prompt).To(BeNil())
			Expect(panel(store, "panel-2").Prompt).NotTo(BeNil())
		})
	})

	Describe("over HTTP", func() {
		It("normalizes an image-only turn and reports per-panel status", func() {
			var mu sync.Mutex
			bodies := map[string]map[string]any{}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				data, _ := io.ReadAll(r.Body)
				var body map[string]any
				_ = json.Unmarshal(data, &body)
				modelID := body["model"].(string)
				mu.Lock()
				bodies[modelID] = body
				mu.Unlock()

				if modelID == modelA {
					w.WriteHeader(http.StatusUnauthorized)
					w.Write([]byte(`{"error":{"code":401,"message":"User not found."}}`))
					return
				}
				w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"I see a cat"}}]}`))
			}))
			defer server.Close()

			client := cloud.NewOpenRouterClient(gate, cloud.Options{BaseURL: server.URL})
			d = dispatch.New(store, client, gate)

			img := model.Attachment{ID: "i", Kind: model.KindImage, Name: "cat.png", MIMEType: "image/png",
				Locator: model.Locator{URL: "data:image/png;base64,AA==", SessionID: model.SessionID()}}
			broadcast(dispatch.All, "", []model.Attachment{img})

			msgs := bodies[modelB]["messages"].([]any)
			Expect(msgs).To(HaveLen(1))
			content := msgs[0].(map[string]any)["content"].([]any)
			Expect(content).To(HaveLen(1))
			Expect(content[0].(map[string]any)["type"]).To(Equal("image_url"))

			last, _ := panel(store, "panel-1").LastMessage()
			Expect(last.IsError).To(BeTrue())
			Expect(last.Content).To(ContainSubstring("401"))
			last, _ = panel(store, "panel-2").LastMessage()
			Expect(last.Content).To(Equal("I see a cat"))
		})
	})
})

type panicky struct{}

func (panicky) GenerateResponse(context.Context, string, []model.Message, string) (string, error) {
	panic("boom")
}

func (panicky) ValidateCredential(context.Context) bool { return false }

var _ = Describe("ParsePolicy", func() {
	DescribeTable("parses names",
		func(in string, want dispatch.Policy, ok bool) {
			got, err := dispatch.ParsePolicy(in)
			if !ok {
				Expect(err).To(HaveOccurred())
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("all", "all", dispatch.All, true),
		Entry("empty", "", dispatch.All, true),
		Entry("selected", "Selected", dispatch.Selected, true),
		Entry("multi", " multi ", dispatch.Multi, true),
		Entry("bogus", "some", dispatch.All, false),
	)
})
