// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// prompts.go - Custom prompt library commands.
//
// Examples:
//   multichat prompts add --title Reviewer --tag code --content "Review this diff."
//   multichat prompts add --title Translator --file translator.md
//   multichat prompts search "#code review"
//   multichat prompts show reviewer
//   multichat prompts edit reviewer --content "Review this diff carefully."
//   multichat prompts history
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/koharyou1215/multi-chat/internal/model"
	"github.com/koharyou1215/multi-chat/internal/storage"
)

type promptFlags struct {
	title     string
	content   string
	file      string
	tags      []string
	optimized bool
}

// body returns the prompt body from --content, --file or piped stdin.
func (f *promptFlags) body(in io.Reader) (string, bool, error) {
	switch {
	case f.content != "":
		return f.content, true, nil
	case f.file != "":
		b, err := os.ReadFile(f.file)
		if err != nil {
			return "", false, fmt.Errorf("failed to read %s: %w", f.file, err)
		}
		return string(b), true, nil
	case !StdinIsTerminal():
		b, err := io.ReadAll(in)
		if err != nil {
			return "", false, fmt.Errorf("failed to read stdin: %w", err)
		}
		if s := strings.TrimSpace(string(b)); s != "" {
			return s, true, nil
		}
	}
	return "", false, nil
}

func (f *promptFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.title, "title", "", "prompt title")
	fl.StringVar(&f.content, "content", "", "prompt body")
	fl.StringVar(&f.file, "file", "", "read the prompt body from a file")
	fl.StringArrayVar(&f.tags, "tag", nil, "tag (repeatable)")
}

func promptsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prompts",
		Aliases: []string{"prompt"},
		Short:   "Manage the custom prompt library",
	}

	run := func(fn func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, OpenOptions{Ephemeral: true}, func(ctx context.Context, app *App) error {
				return fn(ctx, app, cmd, args)
			})
		}
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved prompts, most recently updated first",
		Args:    cobra.NoArgs,
		RunE: run(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
			prompts, err := app.DB.ListPrompts(ctx)
			if err != nil {
				return err
			}
			return printPrompts(cmd.OutOrStdout(), prompts, g.jsonOutput)
		}),
	}

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Find prompts containing every term (#tag matches a tag)",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
			prompts, err := app.DB.SearchPrompts(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printPrompts(cmd.OutOrStdout(), prompts, g.jsonOutput)
		}),
	}

	show := &cobra.Command{
		Use:   "show <id|title>",
		Short: "Show one prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
			p, err := app.DB.FindPrompt(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), "prompts show", p)
			}
			printPrompt(cmd.OutOrStdout(), p)
			return nil
		}),
	}

	var addFlags promptFlags
	add := &cobra.Command{
		Use:   "add",
		Short: "Save a new prompt",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
			body, ok, err := addFlags.body(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if addFlags.title == "" {
				return ErrMissingArgument("--title", `multichat prompts add --title Reviewer --content "..."`)
			}
			if !ok {
				return ErrMissingArgument("--content", `multichat prompts add --title Reviewer --content "..."`)
			}
			p, err := app.DB.AddPrompt(ctx, model.NewPrompt(addFlags.title, body, addFlags.tags))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Saved %q (%s)\n", RenderStatus("ok"), p.Title, p.ID[:8])
			return nil
		}),
	}
	addFlags.bind(add)

	var editFlags promptFlags
	edit := &cobra.Command{
		Use:   "edit <id|title>",
		Short: "Change a prompt's title, body or tags",
		Long: `Change a prompt's title, body or tags. Panels that already use the
prompt keep the copy they were given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: run(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
			p, err := app.DB.FindPrompt(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			body, ok, err := editFlags.body(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if editFlags.title != "" {
				p.Title = editFlags.title
			}
			if ok {
				if editFlags.optimized && !p.IsOptimized {
					p.OriginalContent = p.Content
					p.IsOptimized = true
				}
				p.Content = body
			}
			if cmd.Flags().Changed("tag") {
				p.Tags = editFlags.tags
			}
			if _, err := app.DB.UpdatePrompt(ctx, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated %q\n", RenderStatus("ok"), p.Title)
			return nil
		}),
	}
	editFlags.bind(edit)
	edit.Flags().BoolVar(&editFlags.optimized, "optimized", false, "mark the new body as an optimized variant and keep the old one")

	var yesDelete bool
	del := &cobra.Command{
		Use:     "delete <id|title>",
		Aliases: []string{"rm"},
		Short:   "Delete a prompt",
		Args:    cobra.MinimumNArgs(1),
		RunE: run(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
			p, err := app.DB.FindPrompt(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			ok, err := RequireConfirmation(cmd, yesDelete, fmt.Sprintf("delete prompt %q", p.Title), g.jsonOutput)
			if err != nil {
				return err
			}
			if !ok {
				return cancelled(cmd)
			}
			if err := app.DB.DeletePrompt(ctx, p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %q\n", RenderStatus("ok"), p.Title)
			return nil
		}),
	}

	addYesFlag(del, &yesDelete)

	var clearHistory, yesClear bool
	history := &cobra.Command{
		Use:   "history",
		Short: "Show which prompts were applied to which panels",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
			if clearHistory {
				ok, err := RequireConfirmation(cmd, yesClear, "clear the prompt history", g.jsonOutput)
				if err != nil {
					return err
				}
				if !ok {
					return cancelled(cmd)
				}
				if err := app.DB.ClearPromptUsage(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Prompt history cleared.")
				return nil
			}
			h, err := app.DB.PromptUsage(ctx)
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), "prompts history", h)
			}
			printPromptHistory(cmd.OutOrStdout(), h)
			return nil
		}),
	}
	history.Flags().BoolVar(&clearHistory, "clear", false, "delete the history")
	addYesFlag(history, &yesClear)

	cmd.AddCommand(list, search, show, add, edit, del, history)
	return cmd
}

func printPrompts(out io.Writer, prompts []model.Prompt, jsonMode bool) error {
	if jsonMode {
		if prompts == nil {
			prompts = []model.Prompt{}
		}
		return writeJSON(out, "prompts", prompts)
	}
	fmt.Fprintln(out, storage.FormatPromptList(prompts))
	return nil
}

func printPrompt(out io.Writer, p model.Prompt) {
	fmt.Fprintln(out, TitleStyle.Render(p.Title))
	fmt.Fprintf(out, "%s%s\n", RenderLabel("ID"), p.ID)
	if len(p.Tags) > 0 {
		fmt.Fprintf(out, "%s%s\n", RenderLabel("Tags"), color.CyanString("#"+strings.Join(p.Tags, " #")))
	}
	fmt.Fprintf(out, "%s%s\n", RenderLabel("Updated"), p.UpdatedAt.Format("2006-01-02 15:04"))
	if p.IsOptimized {
		fmt.Fprintf(out, "%s%s\n", RenderLabel("Optimized"), "yes (original kept)")
	}
	fmt.Fprintln(out, RenderSeparator())
	fmt.Fprintln(out, p.Content)
}

func printPromptHistory(out io.Writer, h []model.PromptUsage) {
	if len(h) == 0 {
		fmt.Fprintln(out, "No prompts applied yet.")
		return
	}
	for _, u := range h {
		fmt.Fprintf(out, "%s  %s  %s\n",
			color.HiBlackString(u.AppliedAt.Format("2006-01-02 15:04")),
			u.Title,
			DimStyle.Render(strings.Join(u.PanelIDs, ", ")))
	}
}
