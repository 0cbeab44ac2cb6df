// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/koharyou1215/multi-chat/internal/attachment"
	"github.com/koharyou1215/multi-chat/internal/conversation"
	"github.com/koharyou1215/multi-chat/internal/credential"
	"github.com/koharyou1215/multi-chat/internal/dispatch"
	"github.com/koharyou1215/multi-chat/internal/model"
	"github.com/koharyou1215/multi-chat/internal/storage"
	"github.com/koharyou1215/multi-chat/internal/util"
)

// ErrSendDisabled is reported instead of sending while no key is configured.
var ErrSendDisabled = errors.New("sending is disabled until an API key is configured (use /key set <key> or 'multichat key set')")

// errQuit ends the chat loop.
var errQuit = errors.New("quit")

// Session is the line-mode front end over an App: it parses slash commands,
// stages attachments and broadcasts plain lines.
type Session struct {
	app    *App
	out    io.Writer
	policy dispatch.Policy
	staged []model.Attachment

	// render formats a reply for display.
	render func(string) string

	commands map[string]sessionCommand
}

type sessionCommand struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string) error
}

// NewSession creates a session writing to out. Replies are rendered as
// markdown when out is a terminal.
func NewSession(app *App, out io.Writer) *Session {
	s := &Session{
		app:    app,
		out:    out,
		policy: dispatch.All,
		render: func(s string) string { return s },
	}
	s.commands = map[string]sessionCommand{
		"help":       {"/help", "show this help", s.cmdHelp},
		"quit":       {"/quit", "leave the chat", func(context.Context, []string) error { return errQuit }},
		"panels":     {"/panels [1-4]", "list panels or change their count", s.cmdPanels},
		"model":      {"/model [panel] <model-id>", "bind a model to a panel (default: the selected one)", s.cmdModel},
		"models":     {"/models", "list the model catalog", s.cmdModels},
		"select":     {"/select <panel|none>", "focus a panel", s.cmdSelect},
		"multi":      {"/multi [panel...|clear]", "toggle panels in the multi-send set", s.cmdMulti},
		"target":     {"/target <all|selected|multi>", "choose which panels receive messages", s.cmdTarget},
		"attach":     {"/attach [path|url|clear]", "stage a file or image for the next message", s.cmdAttach},
		"screenshot": {"/screenshot <path>", "stage a screenshot image", s.cmdScreenshot},
		"prompt":     {"/prompt <apply ref|clear|list|search q|history>", "manage custom prompts", s.cmdPrompt},
		"clear":      {"/clear [panel|all]", "clear panel transcripts", s.cmdClear},
		"export":     {"/export <panel> [md|json]", "write a panel transcript to disk", s.cmdExport},
		"key":        {"/key <status|validate|set key>", "manage the API key", s.cmdKey},
		"status":     {"/status", "show panels, key and recent cycles", s.cmdStatus},
	}
	for alias, name := range map[string]string{"h": "help", "q": "quit", "exit": "quit", "p": "panels", "m": "model", "s": "status"} {
		s.commands[alias] = s.commands[name]
	}
	return s
}

// Policy returns the current target policy.
func (s *Session) Policy() dispatch.Policy {
	return s.policy
}

// SetPolicy changes which panels receive messages.
func (s *Session) SetPolicy(p dispatch.Policy) {
	s.policy = p
}

// Staged returns the attachments staged for the next message.
func (s *Session) Staged() []model.Attachment {
	return append([]model.Attachment(nil), s.staged...)
}

// CommandNames lists every slash command name and alias, sorted.
func (s *Session) CommandNames() []string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute handles one input line. It reports quit after /quit.
func (s *Session) Execute(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, s.Send(ctx, line)
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return false, s.cmdHelp(ctx, nil)
	}
	cmd, ok := s.commands[strings.ToLower(fields[0])]
	if !ok {
		if hint := SuggestCommand(fields[0], s.CommandNames()); hint != "" {
			return false, fmt.Errorf("unknown command /%s (did you mean /%s?)", fields[0], hint)
		}
		return false, fmt.Errorf("unknown command /%s (try /help)", fields[0])
	}
	err = cmd.run(ctx, fields[1:])
	if errors.Is(err, errQuit) {
		return true, nil
	}
	return false, err
}

// =============================================================================
// SENDING
// =============================================================================

// Submit broadcasts text with the staged attachments and returns without
// waiting for replies. Staging is cleared once the batch is started.
func (s *Session) Submit(ctx context.Context, text string) (*dispatch.Batch, error) {
	batch, err := s.app.Dispatcher.Broadcast(ctx, s.policy, text, s.staged)
	if errors.Is(err, credential.ErrMissingCredential) {
		return nil, ErrSendDisabled
	}
	if err != nil {
		return nil, err
	}
	if batch.Len() > 0 {
		s.staged = nil
	}
	return batch, nil
}

// Send submits text and prints every panel's outcome once all cycles have
// settled.
func (s *Session) Send(ctx context.Context, text string) error {
	batch, err := s.Submit(ctx, text)
	if err != nil {
		return err
	}
	if batch.Len() == 0 {
		fmt.Fprintln(s.out, color.YellowString("No panels targeted by policy %q.", s.policy))
		return nil
	}

	fmt.Fprintln(s.out, DimStyle.Render(fmt.Sprintf("Sent to %d panel(s), waiting for replies...", batch.Len())))
	if err := batch.WaitContext(ctx); err != nil {
		fmt.Fprintln(s.out, color.YellowString("Stopped waiting; replies will still land in their panels."))
		return nil
	}
	s.printResults(batch.Results())
	return nil
}

func (s *Session) printResults(results []dispatch.Result) {
	for _, r := range results {
		n, _ := conversation.PanelOrdinal(r.PanelID)
		header := fmt.Sprintf("── %d · %s ", n, model.DisplayName(r.ModelID))
		fmt.Fprintln(s.out, SectionStyle.Render(header)+RenderStatus(r.Outcome.String()))
		switch r.Outcome {
		case dispatch.Delivered:
			fmt.Fprintln(s.out, s.render(r.Reply))
		case dispatch.Failed:
			fmt.Fprintln(s.out, color.RedString(model.ErrorPrefix+r.Err.Error()))
		case dispatch.Skipped:
			fmt.Fprintln(s.out, color.YellowString("skipped: %v", r.Err))
		}
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func (s *Session) cmdHelp(context.Context, []string) error {
	names := make([]string, 0, len(s.commands))
	for name, c := range s.commands {
		if strings.Fields(c.usage)[0] == "/"+name {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	fmt.Fprintln(s.out, TitleStyle.Render("Commands"))
	for _, name := range names {
		c := s.commands[name]
		fmt.Fprintf(s.out, "  %s %s\n", util.PadRight(c.usage, 46), DimStyle.Render(c.help))
	}
	fmt.Fprintln(s.out, DimStyle.Render("Anything else is sent to the targeted panels."))
	return nil
}

func (s *Session) cmdPanels(_ context.Context, args []string) error {
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < conversation.MinPanels || n > conversation.MaxPanels {
			return NewValidationErrorWithExample("panel count", args[0], "must be between 1 and 4", "/panels 3")
		}
		s.app.Store.SetPanelCount(n)
	}
	s.printPanels()
	return nil
}

func (s *Session) printPanels() {
	snap := s.app.Store.Snapshot()
	for _, p := range snap.Panels {
		var tags []string
		if p.ID == snap.Selected {
			tags = append(tags, color.CyanString("selected"))
		}
		if snap.InMultiSend(p.ID) {
			tags = append(tags, color.MagentaString("multi"))
		}
		if p.Loading {
			tags = append(tags, color.YellowString("waiting"))
		}
		line := fmt.Sprintf("  %s  %d messages", util.PadRight(p.Title(), 40), len(p.Messages))
		if len(tags) > 0 {
			line += "  [" + strings.Join(tags, ", ") + "]"
		}
		fmt.Fprintln(s.out, line)
	}
	fmt.Fprintln(s.out, DimStyle.Render("target: "+s.policy.String()))
}

func (s *Session) cmdModel(_ context.Context, args []string) error {
	var id, modelID string
	switch len(args) {
	case 1:
		id, modelID = s.app.Store.Selected(), args[0]
		if id == "" {
			return errors.New("no panel selected; use /model <panel> <model-id>")
		}
	case 2:
		var err error
		if id, err = s.activePanel(args[0]); err != nil {
			return err
		}
		modelID = args[1]
	default:
		return ErrMissingArgument("model-id", "/model 2 x-ai/grok-4")
	}

	s.app.Store.SetModel(id, modelID)
	if !model.Known(modelID) {
		fmt.Fprintln(s.out, color.YellowString("%s is not in the local catalog; the provider decides whether it exists.", modelID))
	}
	fmt.Fprintf(s.out, "%s now uses %s\n", id, model.DisplayName(modelID))
	return nil
}

func (s *Session) cmdModels(context.Context, []string) error {
	printCatalog(s.out)
	return nil
}

func (s *Session) cmdSelect(_ context.Context, args []string) error {
	if len(args) != 1 {
		return ErrMissingArgument("panel", "/select 2")
	}
	if strings.EqualFold(args[0], "none") {
		s.app.Store.ClearSelection()
		fmt.Fprintln(s.out, "Selection cleared.")
		return nil
	}
	id, err := s.activePanel(args[0])
	if err != nil {
		return err
	}
	s.app.Store.SetSelected(id)
	fmt.Fprintf(s.out, "Selected %s.\n", id)
	return nil
}

func (s *Session) cmdMulti(_ context.Context, args []string) error {
	if len(args) == 1 && strings.EqualFold(args[0], "clear") {
		s.app.Store.ClearMultiSend()
	}
	for _, a := range args {
		if strings.EqualFold(a, "clear") {
			continue
		}
		id, err := s.activePanel(a)
		if err != nil {
			return err
		}
		s.app.Store.ToggleMultiSend(id)
	}
	ids := s.app.Store.MultiSendIDs()
	if len(ids) == 0 {
		fmt.Fprintln(s.out, "Multi-send set is empty.")
		return nil
	}
	fmt.Fprintf(s.out, "Multi-send: %s\n", strings.Join(ids, ", "))
	return nil
}

func (s *Session) cmdTarget(_ context.Context, args []string) error {
	if len(args) != 1 {
		return ErrMissingArgument("policy", "/target multi")
	}
	p, err := dispatch.ParsePolicy(args[0])
	if err != nil {
		return NewValidationError("policy", args[0], "must be all, selected or multi")
	}
	s.policy = p
	fmt.Fprintf(s.out, "Messages go to: %s\n", p)
	return nil
}

func (s *Session) cmdAttach(_ context.Context, args []string) error {
	if len(args) == 0 {
		if len(s.staged) == 0 {
			fmt.Fprintln(s.out, "Nothing staged.")
		}
		for _, a := range s.staged {
			fmt.Fprintf(s.out, "  %s (%s, %s)\n", a.Name, a.MIMEType, formatBytes(a.Size))
		}
		return nil
	}
	if strings.EqualFold(args[0], "clear") {
		s.staged = nil
		fmt.Fprintln(s.out, "Attachments cleared.")
		return nil
	}

	ref := strings.Join(args, " ")
	var (
		att model.Attachment
		err error
	)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		att, err = attachment.FromURL(ref)
	} else {
		att, err = attachment.Load(ref)
	}
	if err != nil {
		return err
	}
	s.stage(att)
	return nil
}

func (s *Session) cmdScreenshot(_ context.Context, args []string) error {
	if len(args) == 0 {
		return ErrMissingArgument("path", "/screenshot ~/Desktop/shot.png")
	}
	att, err := attachment.LoadScreenshot(strings.Join(args, " "))
	if err != nil {
		return err
	}
	s.stage(att)
	return nil
}

func (s *Session) stage(att model.Attachment) {
	s.staged = append(s.staged, att)
	fmt.Fprintf(s.out, "Staged %s (%s). %d attachment(s) go with the next message.\n", att.Name, att.MIMEType, len(s.staged))
}

func (s *Session) cmdPrompt(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrMissingArgument("action", "/prompt apply reviewer")
	}
	rest := strings.Join(args[1:], " ")
	switch strings.ToLower(args[0]) {
	case "apply":
		if rest == "" {
			return ErrMissingArgument("prompt", "/prompt apply reviewer")
		}
		p, err := s.app.DB.FindPrompt(ctx, rest)
		if err != nil {
			return err
		}
		ids := s.app.Dispatcher.ApplyPrompt(ctx, p)
		fmt.Fprintf(s.out, "Applied %q to %s.\n", p.Title, strings.Join(ids, ", "))
	case "clear":
		ids := s.app.Dispatcher.ClearPrompt()
		fmt.Fprintf(s.out, "Cleared prompts from %s.\n", strings.Join(ids, ", "))
	case "list", "search":
		prompts, err := s.app.DB.SearchPrompts(ctx, rest)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, storage.FormatPromptList(prompts))
	case "history":
		printPromptHistory(s.out, s.app.Dispatcher.PromptHistory())
	default:
		return NewValidationError("action", args[0], "must be apply, clear, list, search or history")
	}
	return nil
}

func (s *Session) cmdClear(_ context.Context, args []string) error {
	if len(args) == 0 || strings.EqualFold(args[0], "all") {
		s.app.Store.ClearAll()
		fmt.Fprintln(s.out, "All panels cleared.")
		return nil
	}
	id, err := s.activePanel(args[0])
	if err != nil {
		return err
	}
	s.app.Store.ClearMessages(id)
	fmt.Fprintf(s.out, "%s cleared.\n", id)
	return nil
}

func (s *Session) cmdExport(_ context.Context, args []string) error {
	if len(args) == 0 {
		return ErrMissingArgument("panel", "/export 1 json")
	}
	id, err := s.activePanel(args[0])
	if err != nil {
		return err
	}
	format := storage.FormatMarkdown
	if len(args) > 1 {
		if format, err = storage.ParseFormat(args[1]); err != nil {
			return err
		}
	}
	p, _ := s.app.Store.Panel(id)
	path, err := storage.Export(s.app.Config.Storage.TranscriptDir, storage.NewTranscript(p), format)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Exported %s to %s\n", id, path)
	return nil
}

func (s *Session) cmdKey(ctx context.Context, args []string) error {
	action := "status"
	if len(args) > 0 {
		action = strings.ToLower(args[0])
	}
	switch action {
	case "status":
		printKeyStatus(s.out, s.app.Gate.Status())
	case "validate":
		if err := s.app.Gate.Check(); err != nil {
			return err
		}
		if s.app.Gate.Validate(ctx) {
			fmt.Fprintln(s.out, RenderStatus("valid")+" The provider accepted the key.")
		} else {
			fmt.Fprintln(s.out, RenderStatus("invalid")+" The provider rejected the key or could not be reached.")
		}
	case "set":
		if len(args) != 2 {
			return ErrMissingArgument("key", "/key set sk-or-...")
		}
		if err := s.app.SaveKey(args[1]); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Key saved (%s).\n", credential.Masked(args[1]))
	default:
		return NewValidationError("action", action, "must be status, validate or set")
	}
	return nil
}

func (s *Session) cmdStatus(context.Context, []string) error {
	s.printPanels()
	printKeyStatus(s.out, s.app.Gate.Status())
	fmt.Fprintln(s.out, DimStyle.Render(s.app.Queue.Summary()))
	return nil
}

// activePanel resolves a panel reference to an active panel id.
func (s *Session) activePanel(ref string) (string, error) {
	id, err := parsePanelRef(ref)
	if err != nil {
		return "", err
	}
	if _, ok := s.app.Store.Panel(id); !ok {
		return "", fmt.Errorf("%s is not active (%d panel(s) open)", id, s.app.Store.PanelCount())
	}
	return id, nil
}
