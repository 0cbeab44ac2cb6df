// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot broadcast for multichat.
//
// Command: ask [message]
// Short:   Broadcast one message and print every reply
//
// Examples:
//   multichat ask "Explain CRDTs"
//   multichat ask -m x-ai/grok-4 -m openai/gpt-5-chat "Compare these"
//   multichat ask --attach diagram.png "What does this show?"
//   git diff | multichat ask --prompt reviewer
//
// The message is read from stdin when no argument is given and stdin is
// not a terminal. The exit status is non-zero only when every panel failed.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/koharyou1215/multi-chat/internal/attachment"
	"github.com/koharyou1215/multi-chat/internal/conversation"
	"github.com/koharyou1215/multi-chat/internal/dispatch"
	"github.com/koharyou1215/multi-chat/internal/model"
)

type askOptions struct {
	models  []string
	attach  []string
	target  string
	prompt  string
	timeout time.Duration
}

// askResult is the JSON form of one panel's outcome.
type askResult struct {
	Panel   string `json:"panel"`
	Model   string `json:"model"`
	Outcome string `json:"outcome"`
	Reply   string `json:"reply,omitempty"`
	Error   string `json:"error,omitempty"`
}

func askCmd(g *globalFlags) *cobra.Command {
	o := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Broadcast one message and print every reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" && !StdinIsTerminal() {
				b, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), attachment.MaxSize))
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(b)
			}
			if len(o.models) > conversation.MaxPanels {
				return NewValidationError("--model", fmt.Sprint(len(o.models)), "at most 4 models")
			}
			return withApp(cmd, g, OpenOptions{SetupLogging: true, Ephemeral: true}, func(ctx context.Context, app *App) error {
				return runAsk(ctx, app, o, text, cmd.OutOrStdout(), g.jsonOutput)
			})
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&o.models, "model", "m", nil, "model for the next panel (repeat for up to 4 panels)")
	f.StringArrayVarP(&o.attach, "attach", "a", nil, "file, image or image URL to attach (repeatable)")
	f.StringVarP(&o.target, "target", "t", "all", "panels that receive the message: all, selected or multi")
	f.StringVar(&o.prompt, "prompt", "", "saved prompt to apply before sending (id, id prefix or title)")
	f.DurationVar(&o.timeout, "timeout", 0, "stop waiting for replies after this long (0 waits forever)")
	return cmd
}

func runAsk(ctx context.Context, app *App, o *askOptions, text string, out io.Writer, jsonMode bool) error {
	policy, err := dispatch.ParsePolicy(o.target)
	if err != nil {
		return NewValidationError("--target", o.target, "must be all, selected or multi")
	}

	if len(o.models) > 0 {
		app.Store.SetPanelCount(len(o.models))
		for i, m := range o.models {
			app.Store.SetModel(conversation.PanelID(i+1), m)
		}
	}

	var atts []model.Attachment
	for _, ref := range o.attach {
		var a model.Attachment
		if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
			a, err = attachment.FromURL(ref)
		} else {
			a, err = attachment.Load(ref)
		}
		if err != nil {
			return err
		}
		atts = append(atts, a)
	}

	if o.prompt != "" {
		p, err := app.DB.FindPrompt(ctx, o.prompt)
		if err != nil {
			return err
		}
		app.Dispatcher.ApplyPrompt(ctx, p)
	}

	batch, err := app.Dispatcher.Broadcast(ctx, policy, text, atts)
	if err != nil {
		if errors.Is(err, dispatch.ErrEmptyMessage) {
			return ErrMissingArgument("message", `multichat ask "your question"`)
		}
		return err
	}
	if batch.Len() == 0 {
		return NewValidationError("--target", o.target, "no panel matches this target")
	}

	waitCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	if err := batch.WaitContext(waitCtx); err != nil {
		return &CommandError{Command: "ask", Action: "wait", Reason: "replies did not arrive in time", Err: err, exit: ExitTimeoutError}
	}

	results := batch.Results()
	if jsonMode {
		rows := make([]askResult, 0, len(results))
		for _, r := range results {
			row := askResult{Panel: r.PanelID, Model: r.ModelID, Outcome: r.Outcome.String(), Reply: r.Reply}
			if r.Err != nil {
				row.Error = r.Err.Error()
			}
			rows = append(rows, row)
		}
		if err := writeJSON(out, "ask", rows); err != nil {
			return err
		}
	} else {
		printAskResults(out, results)
	}

	if counts := batch.Counts(); counts[dispatch.Delivered] == 0 {
		for _, r := range results {
			if r.Err != nil {
				return r.Err
			}
		}
	}
	return nil
}

func printAskResults(out io.Writer, results []dispatch.Result) {
	single := len(results) == 1
	for _, r := range results {
		if !single {
			n, _ := conversation.PanelOrdinal(r.PanelID)
			fmt.Fprintln(out, SectionStyle.Render(fmt.Sprintf("── %d · %s ", n, model.DisplayName(r.ModelID)))+RenderStatus(r.Outcome.String()))
		}
		switch r.Outcome {
		case dispatch.Delivered:
			fmt.Fprintln(out, renderMarkdown(r.Reply))
		case dispatch.Failed:
			fmt.Fprintln(out, color.RedString(model.ErrorPrefix+r.Err.Error()))
		default:
			fmt.Fprintln(out, color.YellowString("%s: %v", r.Outcome, r.Err))
		}
	}
}
